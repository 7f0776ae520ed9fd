// Package dispatcher routes text commands to registered handlers. Commands
// can be reached by their full name or by short case-insensitive aliases.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrClosed         = errors.New("dispatcher closed")
	ErrUnknownCommand = errors.New("unknown command")
)

// Event is one command with its arguments.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// ParseEvent splits a command line on whitespace. The first field is the
// command, the rest are arguments.
func ParseEvent(line string) (Event, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Event{}, fmt.Errorf("empty command")
	}
	return Event{Command: fields[0], Args: fields[1:], Timestamp: time.Now()}, nil
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*route)

// Logged logs every call of the handler with its duration.
func Logged() Option {
	return func(r *route) {
		r.logged = true
	}
}

// Alias makes the command reachable as name, matched case-insensitively.
func Alias(name string) Option {
	return func(r *route) {
		r.aliases = append(r.aliases, strings.ToLower(name))
	}
}

type route struct {
	handler HandlerFunc
	logged  bool
	aliases []string
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	logger  Logger
	metrics *instruments

	mu      sync.RWMutex
	routes  map[string]*route
	aliases map[string]string
	closed  bool
	active  sync.WaitGroup
}

// New creates a dispatcher. Metrics go to the global OTel meter provider.
func New(logger Logger) (*Dispatcher, error) {
	metrics, err := newInstruments()
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		logger:  logger,
		metrics: metrics,
		routes:  make(map[string]*route),
		aliases: make(map[string]string),
	}, nil
}

// Register adds a handler for the given command, replacing any previous one.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	r := &route{handler: h}
	for _, opt := range opts {
		opt(r)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[command] = r
	for _, a := range r.aliases {
		d.aliases[a] = command
	}
}

// Resolve maps an alias or a full command name to the registered command.
func (d *Dispatcher) Resolve(name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.resolve(name)
}

func (d *Dispatcher) resolve(name string) (string, bool) {
	if _, ok := d.routes[name]; ok {
		return name, true
	}
	cmd, ok := d.aliases[strings.ToLower(name)]
	return cmd, ok
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return nil, ErrClosed
	}
	cmd, ok := d.resolve(e.Command)
	if !ok {
		d.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	r := d.routes[cmd]
	d.active.Add(1)
	d.mu.RUnlock()
	defer d.active.Done()

	e.Command = cmd
	start := time.Now()
	if r.logged {
		d.logger.Debug("handling event", "command", cmd, "args", len(e.Args))
	}

	result, err := r.handler(e)

	elapsed := time.Since(start)
	d.metrics.record(context.Background(), cmd, elapsed, err)
	if r.logged {
		if err != nil {
			d.logger.Error("event failed", "command", cmd, "duration", elapsed, "error", err)
		} else {
			d.logger.Debug("event complete", "command", cmd, "duration", elapsed)
		}
	}
	return result, err
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.routes[command]
	return ok
}

// Commands lists the registered commands in sorted order.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortedKeys(d.routes)
}

// Aliases lists the registered aliases in sorted order.
func (d *Dispatcher) Aliases() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortedKeys(d.aliases)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Close rejects new events and waits for handlers already running.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.active.Wait()
}
