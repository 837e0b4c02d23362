package main

import (
	stdlog "log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/tempolab/tempo/monitoring"
	"github.com/tempolab/tempo/recording"
	"github.com/tempolab/tempo/timing"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run a synthetic execution core against the scheduler.",
	Long: `Bench drives the scheduler with a synthetic execution core: a set
of periodic virtual timers, a self-rescheduling chain event, and a
background goroutine submitting through the cross-thread path. It
reports fired-event counts and wall time.`,
	Run: runBench,
}

func init() {
	benchCmd.Flags().Int64("cycles", 100_000_000,
		"virtual cycles to emulate")
	benchCmd.Flags().Float64("speed", envFloat("TEMPO_SPEED_FACTOR", 1.0),
		"speed factor (overclock multiplier)")
	benchCmd.Flags().Int("timers", 4,
		"number of periodic virtual timers")
	benchCmd.Flags().String("trace", "",
		"record fired events into the given SQLite trace file")
	benchCmd.Flags().Bool("monitor", false,
		"serve live scheduler state over HTTP while running")
	benchCmd.Flags().Bool("log-events", false,
		"print every fired event to stderr")

	rootCmd.AddCommand(benchCmd)
}

// envFloat reads a float default from the environment, falling back
// when unset or malformed. The .env file loaded at startup feeds it.
func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("var", key).Str("value", v).
			Msg("ignoring malformed environment value")
		return fallback
	}

	return f
}

func runBench(cmd *cobra.Command, _ []string) {
	totalCycles, _ := cmd.Flags().GetInt64("cycles")
	speed, _ := cmd.Flags().GetFloat64("speed")
	numTimers, _ := cmd.Flags().GetInt("timers")
	tracePath, _ := cmd.Flags().GetString("trace")
	serveMonitor, _ := cmd.Flags().GetBool("monitor")

	s := timing.NewScheduler()
	clk := s.Clock()

	// Coprime-ish periods keep the timers from aligning, so the queue
	// sees a realistic mix of deadlines.
	periods := []int64{541, 1223, 7919, 26041, 104729}
	fires := make([]int64, numTimers)
	timers := make([]*timing.EventType, numTimers)
	for i := 0; i < numTimers; i++ {
		i := i
		period := periods[i%len(periods)]
		timers[i] = s.RegisterEvent("timer"+strconv.Itoa(i),
			func(userdata uint64, lateness int64) {
				fires[i]++
				if s.GetTicks() < totalCycles {
					s.ScheduleEvent(period, timers[i], userdata)
				}
			})
	}

	var chainFires int64
	var chain *timing.EventType
	chain = s.RegisterEvent("chain", func(userdata uint64, lateness int64) {
		chainFires++
		if userdata > 0 {
			s.ScheduleEvent(1000, chain, userdata-1)
		}
	})

	var asyncFires int64
	async := s.RegisterEvent("async", func(userdata uint64, lateness int64) {
		asyncFires++
	})

	s.Init()
	s.SetSpeedFactor(speed)

	if tracePath != "" {
		recorder := recording.NewTraceRecorder(tracePath)
		s.AcceptHook(recorder)
	}

	if logEvents, _ := cmd.Flags().GetBool("log-events"); logEvents {
		s.AcceptHook(timing.NewEventLogger(
			stdlog.New(os.Stderr, "event: ", 0)))
	}

	var mon *monitoring.Monitor
	if serveMonitor {
		mon = monitoring.NewMonitor()
		mon.RegisterScheduler(s)
		mon.RegisterSchedulable("async", async)
		mon.StartServer()
	}

	for i, typ := range timers {
		s.ScheduleEvent(periods[i%len(periods)], typ, uint64(i))
	}
	s.ScheduleEvent(1000, chain, 100)

	// A foreign thread feeding the cross-thread inbox while the core
	// runs.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			case <-time.After(time.Millisecond):
				s.ScheduleEventFromThread(0, async, 0,
					timing.FromNonCoreThread)
			}
		}
	}()

	start := time.Now()

	for s.GetTicks() < totalCycles {
		// The synthetic core retires its whole slice at once.
		clk.Downcount = 0
		if mon != nil {
			mon.ApplyPending()
		}
		s.Advance()
	}

	close(stop)
	wg.Wait()

	elapsed := time.Since(start)

	total := int64(0)
	for _, n := range fires {
		total += n
	}

	log.Info().
		Int64("virtual_cycles", s.GetTicks()).
		Int64("timer_fires", total).
		Int64("chain_fires", chainFires).
		Int64("async_fires", asyncFires).
		Float64("speed_factor", s.SpeedFactor()).
		Dur("wall_time", elapsed).
		Msg("bench finished")

	atexit.Exit(0)
}
