package timing

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EventQueueImpl", func() {
	var queue *EventQueueImpl

	BeforeEach(func() {
		queue = NewEventQueue()
	})

	It("should pop in trigger-time order", func() {
		numEvents := 100
		for i := 0; i < numEvents; i++ {
			queue.Push(Event{
				Time:     rand.Int63n(1000000),
				Sequence: uint64(i),
			})
		}

		prev := int64(-1)
		for i := 0; i < numEvents; i++ {
			evt := queue.Pop()
			Expect(evt.Time >= prev).To(BeTrue())
			prev = evt.Time
		}
	})

	It("should break trigger-time ties by sequence", func() {
		numEvents := 100
		for i := 0; i < numEvents; i++ {
			queue.Push(Event{
				Time:     int64(i % 4),
				Sequence: uint64(i),
			})
		}

		prevTime := int64(-1)
		prevSeq := uint64(0)
		for i := 0; i < numEvents; i++ {
			evt := queue.Pop()
			if evt.Time == prevTime {
				Expect(evt.Sequence > prevSeq).To(BeTrue())
			} else {
				Expect(evt.Time > prevTime).To(BeTrue())
			}
			prevTime = evt.Time
			prevSeq = evt.Sequence
		}
	})

	It("should peek without removing", func() {
		queue.Push(Event{Time: 200, Sequence: 0})
		queue.Push(Event{Time: 100, Sequence: 1})

		Expect(queue.Peek().Time).To(Equal(int64(100)))
		Expect(queue.Len()).To(Equal(2))
		Expect(queue.Pop().Time).To(Equal(int64(100)))
		Expect(queue.Len()).To(Equal(1))
	})

	It("should order past-due events before current ones", func() {
		queue.Push(Event{Time: 0, Sequence: 0})
		queue.Push(Event{Time: -1000, Sequence: 1})

		Expect(queue.Pop().Time).To(Equal(int64(-1000)))
		Expect(queue.Pop().Time).To(Equal(int64(0)))
	})
})
