// Package worker runs the record, save and process operations, one goroutine
// per started operation, and reports their progress to listeners.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trackfit/autobone/internal/autobone"
	"github.com/trackfit/autobone/internal/recorder"
	"github.com/trackfit/autobone/internal/storage"
	"github.com/trackfit/autobone/pkg/core"
)

// ProcessType identifies one of the independent operations.
type ProcessType int

const (
	ProcessRecord ProcessType = iota
	ProcessSave
	ProcessProcess
)

var processTypes = []ProcessType{ProcessRecord, ProcessSave, ProcessProcess}

func (p ProcessType) String() string {
	switch p {
	case ProcessRecord:
		return "RECORD"
	case ProcessSave:
		return "SAVE"
	case ProcessProcess:
		return "PROCESS"
	default:
		return "UNKNOWN"
	}
}

// ProcessState is the lifecycle state of one process type.
type ProcessState int

const (
	StateIdle ProcessState = iota
	StateRunning
)

func (s ProcessState) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// ProcessStatus is a progress or terminal event of an operation.
// Current, Total and ETA are -1 when unknown.
type ProcessStatus struct {
	Type      ProcessType
	Message   string
	Current   int
	Total     int
	ETA       float64
	Completed bool
	Success   bool
	Err       error
}

// Listener receives operation events. Implementations must be comparable
// (typically pointers) so they can be removed again.
type Listener interface {
	OnProcessStatus(ProcessStatus)
	OnEpoch(autobone.Epoch)
	OnRecordingEnd(*core.PoseFrames)
	OnEngineEnd(map[core.SkeletonConfigOffset]float64)
}

// NopListener implements Listener with no-ops, for embedding.
type NopListener struct{}

func (NopListener) OnProcessStatus(ProcessStatus)                     {}
func (NopListener) OnEpoch(autobone.Epoch)                            {}
func (NopListener) OnRecordingEnd(*core.PoseFrames)                   {}
func (NopListener) OnEngineEnd(map[core.SkeletonConfigOffset]float64) {}

// Recorder is the capture side used by RECORD and SAVE.
type Recorder interface {
	IsReadyToRecord() bool
	IsRecording() bool
	StartCapture(count int, interval time.Duration, onProgress recorder.ProgressFunc) (*recorder.Capture, error)
	StopCapture()
	CancelCapture()
	CurrentCapture() *recorder.Capture
}

// Exporter writes a processed recording with its adjusted offsets.
type Exporter interface {
	Export(ctx context.Context, name string, frames *core.PoseFrames, offsets map[core.SkeletonConfigOffset]float64) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Recorder Recorder
	Engine   *autobone.Engine
	Backend  storage.Backend
	// Exporter is optional; PROCESS skips the export stage without it.
	Exporter Exporter
	Logger   *slog.Logger
}

type slot struct {
	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// Manager supervises the operations. Each process type runs at most once
// at a time; starting a running type is a no-op.
type Manager struct {
	deps    Dependencies
	log     *slog.Logger
	metrics *metrics

	ctx    context.Context
	cancel context.CancelFunc

	slots     map[ProcessType]*slot
	listeners atomic.Pointer[[]Listener]
	listenMu  sync.Mutex
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) (*Manager, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	met, err := newMetrics()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		deps:    deps,
		log:     deps.Logger,
		metrics: met,
		ctx:     ctx,
		cancel:  cancel,
		slots:   make(map[ProcessType]*slot, len(processTypes)),
	}
	for _, pt := range processTypes {
		m.slots[pt] = &slot{}
	}
	m.listeners.Store(&[]Listener{})
	return m, nil
}

// Close cancels running operations and waits for them to finish.
func (m *Manager) Close() {
	m.cancel()
	for _, pt := range processTypes {
		m.Wait(context.Background(), pt)
	}
}

// AddListener registers l for all future events.
func (m *Manager) AddListener(l Listener) {
	m.listenMu.Lock()
	defer m.listenMu.Unlock()
	old := *m.listeners.Load()
	next := make([]Listener, 0, len(old)+1)
	next = append(next, old...)
	next = append(next, l)
	m.listeners.Store(&next)
}

// RemoveListener unregisters l. Unknown listeners are ignored.
func (m *Manager) RemoveListener(l Listener) {
	m.listenMu.Lock()
	defer m.listenMu.Unlock()
	old := *m.listeners.Load()
	next := make([]Listener, 0, len(old))
	for _, x := range old {
		if x != l {
			next = append(next, x)
		}
	}
	m.listeners.Store(&next)
}

// each calls fn for every listener in the current snapshot. A panicking
// listener is logged and skipped.
func (m *Manager) each(fn func(Listener)) {
	for _, l := range *m.listeners.Load() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Error("Listener panicked", "panic", r)
				}
			}()
			fn(l)
		}()
	}
}

func (m *Manager) announce(s ProcessStatus) {
	m.each(func(l Listener) { l.OnProcessStatus(s) })
}

func (m *Manager) progress(pt ProcessType, msg string, current, total int, eta float64) {
	m.announce(ProcessStatus{Type: pt, Message: msg, Current: current, Total: total, ETA: eta, Success: true})
}

// State reports whether pt is currently running.
func (m *Manager) State(pt ProcessType) ProcessState {
	s, ok := m.slots[pt]
	if !ok {
		return StateIdle
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return StateRunning
	}
	return StateIdle
}

// RunningProcesses lists the process types currently running.
func (m *Manager) RunningProcesses() []ProcessType {
	var out []ProcessType
	for _, pt := range processTypes {
		if m.State(pt) == StateRunning {
			out = append(out, pt)
		}
	}
	return out
}

// Wait blocks until pt is idle or ctx is done.
func (m *Manager) Wait(ctx context.Context, pt ProcessType) error {
	s, ok := m.slots[pt]
	if !ok {
		return fmt.Errorf("unknown process type %d", pt)
	}
	s.mu.Lock()
	done := s.done
	running := s.running
	s.mu.Unlock()
	if !running {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type operation func(ctx context.Context) (string, error)

// start runs op in its own goroutine unless pt is already running. The
// slot is cleared after the terminal event on every path.
func (m *Manager) start(pt ProcessType, message string, op operation) bool {
	s := m.slots[pt]
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		m.log.Debug("Process already running", "process", pt)
		return false
	}
	s.running = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		m.announce(ProcessStatus{Type: pt, Message: message, Current: -1, Total: -1, ETA: -1, Success: true})
		m.metrics.started(m.ctx, pt)
		began := time.Now()
		var (
			msg string
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				msg = fmt.Sprintf("%s failed: %v", pt, r)
				m.log.Error("Process panicked", "process", pt, "panic", r)
			}

			status := ProcessStatus{Type: pt, Message: msg, Current: -1, Total: -1, ETA: -1, Completed: true, Success: err == nil, Err: err}
			if err != nil {
				m.log.Error("Process failed", "process", pt, "error", err)
			} else {
				m.log.Info("Process finished", "process", pt, "duration", time.Since(began))
			}
			m.announce(status)
			m.metrics.finished(m.ctx, pt, err == nil, time.Since(began))

			s.mu.Lock()
			s.running = false
			close(done)
			s.mu.Unlock()
		}()

		msg, err = op(m.ctx)
	}()
	return true
}

// StartRecording starts RECORD.
func (m *Manager) StartRecording() bool {
	return m.start(ProcessRecord, "Recording...", m.record)
}

// SaveRecording starts SAVE.
func (m *Manager) SaveRecording() bool {
	return m.start(ProcessSave, "Saving...", m.save)
}

// ProcessRecordings starts PROCESS.
func (m *Manager) ProcessRecordings() bool {
	return m.start(ProcessProcess, "Processing...", m.process)
}

// StartProcessByType starts the operation for pt, reporting whether a new
// worker was launched.
func (m *Manager) StartProcessByType(pt ProcessType) bool {
	switch pt {
	case ProcessRecord:
		return m.StartRecording()
	case ProcessSave:
		return m.SaveRecording()
	case ProcessProcess:
		return m.ProcessRecordings()
	default:
		return false
	}
}

// StopRecording ends a running capture early, keeping its frames.
func (m *Manager) StopRecording() {
	if m.deps.Recorder != nil {
		m.deps.Recorder.StopCapture()
	}
}

// CancelRecording aborts a running capture.
func (m *Manager) CancelRecording() {
	if m.deps.Recorder != nil {
		m.deps.Recorder.CancelCapture()
	}
}

// ApplyValues saves the offsets of the last PROCESS run.
func (m *Manager) ApplyValues() error {
	return m.deps.Engine.ApplyAndSaveConfig()
}
