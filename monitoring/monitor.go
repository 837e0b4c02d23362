// Package monitoring turns a running scheduler into a small HTTP
// server for live inspection: clock state, queue depth, process
// resources, and the two mutations that are safe to request from
// outside the core thread (a staged speed change and a cross-thread
// event submission).
package monitoring

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"

	_ "net/http/pprof"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"

	"github.com/tempolab/tempo/timing"
)

// Monitor exposes a scheduler over HTTP. Clock reads are sampled
// without stopping the core thread and may be slightly stale; they are
// diagnostics, not part of the determinism contract. Mutations never
// touch core-thread state directly: speed changes are staged until the
// core thread calls ApplyPending, and event submissions go through the
// scheduler's cross-thread inbox.
type Monitor struct {
	scheduler  *timing.Scheduler
	portNumber int

	schedulableLock sync.Mutex
	schedulable     map[string]*timing.EventType

	pendingLock  sync.Mutex
	pendingSpeed *float64
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		schedulable: make(map[string]*timing.EventType),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterScheduler registers the scheduler to be monitored.
func (m *Monitor) RegisterScheduler(s *timing.Scheduler) {
	m.scheduler = s
}

// RegisterSchedulable makes an event type reachable from the
// /api/schedule endpoint under the given name.
func (m *Monitor) RegisterSchedulable(name string, typ *timing.EventType) {
	m.schedulableLock.Lock()
	defer m.schedulableLock.Unlock()

	m.schedulable[name] = typ
}

// ApplyPending applies a staged speed-factor change, if any. The
// execution core must call it on the core thread between advances;
// that is the only thread allowed to mutate the speed factor.
func (m *Monitor) ApplyPending() {
	m.pendingLock.Lock()
	staged := m.pendingSpeed
	m.pendingSpeed = nil
	m.pendingLock.Unlock()

	if staged != nil {
		m.scheduler.SetSpeedFactor(*staged)
	}
}

// StartServer starts the monitor as a web server, on a random port
// unless one was configured. It returns the address being served.
func (m *Monitor) StartServer() string {
	r := mux.NewRouter()
	r.HandleFunc("/api/clock", m.clock)
	r.HandleFunc("/api/queue", m.queue)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/speed", m.stageSpeed).Methods(http.MethodPost)
	r.HandleFunc("/api/schedule", m.schedule).Methods(http.MethodPost)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	addr := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring scheduler with %s\n", addr)

	go func() {
		err = http.Serve(listener, r)
		dieOnErr(err)
	}()

	return addr
}

// StartDashboard starts the server and opens its clock endpoint in the
// default browser.
func (m *Monitor) StartDashboard() {
	addr := m.StartServer()
	_ = browser.OpenURL(addr + "/api/clock")
}

type clockRsp struct {
	GlobalTimer int64   `json:"global_timer"`
	Downcount   int64   `json:"downcount"`
	SliceLength int64   `json:"slice_length"`
	SpeedFactor float64 `json:"speed_factor"`
	SliceFactor float64 `json:"slice_factor"`
	IdleTicks   int64   `json:"idle_ticks"`
}

func (m *Monitor) clock(w http.ResponseWriter, _ *http.Request) {
	clk := m.scheduler.Clock()
	rsp := clockRsp{
		GlobalTimer: clk.GlobalTimer,
		Downcount:   clk.Downcount,
		SliceLength: clk.SliceLength,
		SpeedFactor: clk.SpeedFactor,
		SliceFactor: clk.SliceFactor,
		IdleTicks:   m.scheduler.GetIdleTicks(),
	}

	err := json.NewEncoder(w).Encode(rsp)
	dieOnErr(err)
}

type queueRsp struct {
	PendingEvents   int   `json:"pending_events"`
	NearestDeadline int64 `json:"nearest_deadline"`
	HasDeadline     bool  `json:"has_deadline"`
}

func (m *Monitor) queue(w http.ResponseWriter, _ *http.Request) {
	deadline, ok := m.scheduler.NearestDeadline()
	rsp := queueRsp{
		PendingEvents:   m.scheduler.PendingEvents(),
		NearestDeadline: deadline,
		HasDeadline:     ok,
	}

	err := json.NewEncoder(w).Encode(rsp)
	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	proc, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memorySize, err := proc.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	err = json.NewEncoder(w).Encode(rsp)
	dieOnErr(err)
}

type speedReq struct {
	Factor float64 `json:"factor"`
}

func (m *Monitor) stageSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedReq
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || req.Factor <= 0 {
		http.Error(w, "factor must be a positive number",
			http.StatusBadRequest)
		return
	}

	m.pendingLock.Lock()
	m.pendingSpeed = &req.Factor
	m.pendingLock.Unlock()

	w.WriteHeader(http.StatusAccepted)
}

type scheduleReq struct {
	Event    string `json:"event"`
	Offset   int64  `json:"offset"`
	UserData uint64 `json:"userdata"`
}

func (m *Monitor) schedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleReq
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}

	m.schedulableLock.Lock()
	typ := m.schedulable[req.Event]
	m.schedulableLock.Unlock()

	if typ == nil {
		http.Error(w, fmt.Sprintf("unknown event %q", req.Event),
			http.StatusNotFound)
		return
	}

	m.scheduler.ScheduleEventFromThread(
		req.Offset, typ, req.UserData, timing.FromNonCoreThread)

	w.WriteHeader(http.StatusAccepted)
}

func dieOnErr(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		os.Exit(1)
	}
}
