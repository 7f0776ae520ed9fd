package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/trackfit/autobone/internal/dispatcher"
)

// Commands understood by RegisterHandlers.
const (
	CmdRecord  = ":AUTOBONE:RECORD:"
	CmdSave    = ":AUTOBONE:SAVE:"
	CmdProcess = ":AUTOBONE:PROCESS:"
	CmdApply   = ":AUTOBONE:APPLY:"
	CmdStop    = ":AUTOBONE:STOP:"
	CmdCancel  = ":AUTOBONE:CANCEL:"
	CmdWait    = ":AUTOBONE:WAIT:"
	CmdStatus  = ":AUTOBONE:STATUS:"
)

// RegisterHandlers registers the operation commands with the dispatcher.
// Each command is also reachable by its lower-case verb, e.g. "record".
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(CmdRecord, m.handleStart(ProcessRecord), dispatcher.Logged(), dispatcher.Alias("record"))
	d.Register(CmdSave, m.handleStart(ProcessSave), dispatcher.Logged(), dispatcher.Alias("save"))
	d.Register(CmdProcess, m.handleStart(ProcessProcess), dispatcher.Logged(), dispatcher.Alias("process"))
	d.Register(CmdApply, m.handleApply, dispatcher.Logged(), dispatcher.Alias("apply"))
	d.Register(CmdStop, m.handleStop, dispatcher.Logged(), dispatcher.Alias("stop"))
	d.Register(CmdCancel, m.handleCancel, dispatcher.Logged(), dispatcher.Alias("cancel"))
	d.Register(CmdWait, m.handleWait, dispatcher.Logged(), dispatcher.Alias("wait"))
	d.Register(CmdStatus, m.handleStatus, dispatcher.Alias("status"))
}

func (m *Manager) handleStart(pt ProcessType) dispatcher.HandlerFunc {
	return func(dispatcher.Event) (any, error) {
		if !m.StartProcessByType(pt) {
			return "already running", nil
		}
		return "started", nil
	}
}

func (m *Manager) handleApply(dispatcher.Event) (any, error) {
	if err := m.ApplyValues(); err != nil {
		return nil, fmt.Errorf("failed to apply values: %w", err)
	}
	return "applied", nil
}

func (m *Manager) handleStop(dispatcher.Event) (any, error) {
	m.StopRecording()
	return "ok", nil
}

func (m *Manager) handleCancel(dispatcher.Event) (any, error) {
	m.CancelRecording()
	return "ok", nil
}

// ParseProcessType maps "record", "save" or "process" to its type.
func ParseProcessType(s string) (ProcessType, error) {
	for _, pt := range processTypes {
		if strings.EqualFold(s, pt.String()) {
			return pt, nil
		}
	}
	return 0, fmt.Errorf("unknown process type: %s", s)
}

// handleWait blocks until the process named in the first argument is idle.
// Without arguments it waits for every process type.
func (m *Manager) handleWait(e dispatcher.Event) (any, error) {
	targets := processTypes
	if len(e.Args) > 0 {
		pt, err := ParseProcessType(e.Args[0])
		if err != nil {
			return nil, err
		}
		targets = []ProcessType{pt}
	}
	for _, pt := range targets {
		if err := m.Wait(context.Background(), pt); err != nil {
			return nil, err
		}
	}
	return "idle", nil
}

func (m *Manager) handleStatus(dispatcher.Event) (any, error) {
	out := make(map[string]string, len(processTypes))
	for _, pt := range processTypes {
		out[pt.String()] = m.State(pt).String()
	}
	return out, nil
}
