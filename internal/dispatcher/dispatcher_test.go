package dispatcher

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) log(level, msg string, keysAndValues []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s: %s %v", level, msg, keysAndValues))
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) { l.log("DEBUG", msg, keysAndValues) }
func (l *testLogger) Info(msg string, keysAndValues ...any)  { l.log("INFO", msg, keysAndValues) }
func (l *testLogger) Error(msg string, keysAndValues ...any) { l.log("ERROR", msg, keysAndValues) }

func (l *testLogger) count(prefix string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.messages {
		if strings.HasPrefix(m, prefix) {
			n++
		}
	}
	return n
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	t.Helper()
	logger := &testLogger{}
	d, err := New(logger)
	require.NoError(t, err)
	return d, logger
}

func TestParseEvent(t *testing.T) {
	e, err := ParseEvent("  :AUTOBONE:WAIT:   process ")
	require.NoError(t, err)
	assert.Equal(t, ":AUTOBONE:WAIT:", e.Command)
	assert.Equal(t, []string{"process"}, e.Args)
	assert.False(t, e.Timestamp.IsZero())

	_, err = ParseEvent("   ")
	assert.Error(t, err)
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register(":TEST:", func(e Event) (any, error) {
		got = e
		return "result", nil
	})

	result, err := d.Dispatch(Event{Command: ":TEST:", Args: []string{"arg1"}})
	require.NoError(t, err)
	assert.Equal(t, "result", result)
	assert.Equal(t, []string{"arg1"}, got.Args)
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)
	_, err := d.Dispatch(Event{Command: ":UNKNOWN:"})
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.ErrorContains(t, err, ":UNKNOWN:")
}

func TestDispatcher_Aliases(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register(":AUTOBONE:WAIT:", func(e Event) (any, error) {
		got = e
		return "idle", nil
	}, Alias("wait"), Alias("W"))

	res, err := d.Dispatch(Event{Command: "WAIT", Args: []string{"process"}})
	require.NoError(t, err)
	assert.Equal(t, "idle", res)
	assert.Equal(t, ":AUTOBONE:WAIT:", got.Command, "handlers see the full command name")

	_, err = d.Dispatch(Event{Command: "w"})
	require.NoError(t, err)

	cmd, ok := d.Resolve("Wait")
	assert.True(t, ok)
	assert.Equal(t, ":AUTOBONE:WAIT:", cmd)

	cmd, ok = d.Resolve(":AUTOBONE:WAIT:")
	assert.True(t, ok)
	assert.Equal(t, ":AUTOBONE:WAIT:", cmd)

	_, ok = d.Resolve("record")
	assert.False(t, ok)

	assert.Equal(t, []string{"w", "wait"}, d.Aliases())
}

func TestDispatcher_FullNameIsCaseSensitive(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Register(":TEST:", func(Event) (any, error) { return "ok", nil })

	_, err := d.Dispatch(Event{Command: ":test:"})
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)
	d.Register(":TEST:", func(Event) (any, error) { return "ok", nil }, Logged())

	_, err := d.Dispatch(Event{Command: ":TEST:"})
	require.NoError(t, err)
	assert.Equal(t, 2, logger.count("DEBUG"), "start and completion are logged")
	assert.Equal(t, 0, logger.count("ERROR"))
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)
	d.Register(":FAIL:", func(Event) (any, error) { return nil, fmt.Errorf("boom") }, Logged())

	_, err := d.Dispatch(Event{Command: ":FAIL:"})
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, 1, logger.count("ERROR"))
}

func TestDispatcher_UnloggedHandlerIsSilent(t *testing.T) {
	d, logger := newTestDispatcher(t)
	d.Register(":QUIET:", func(Event) (any, error) { return nil, fmt.Errorf("boom") })

	_, err := d.Dispatch(Event{Command: ":QUIET:"})
	assert.Error(t, err)
	assert.Equal(t, 0, logger.count(""))
}

func TestDispatcher_RegisterReplaces(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Register(":TEST:", func(Event) (any, error) { return "first", nil })
	d.Register(":TEST:", func(Event) (any, error) { return "second", nil })

	res, err := d.Dispatch(Event{Command: ":TEST:"})
	require.NoError(t, err)
	assert.Equal(t, "second", res)
}

func TestDispatcher_HasHandlerAndCommands(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Register(":B:", func(Event) (any, error) { return nil, nil })
	d.Register(":A:", func(Event) (any, error) { return nil, nil })

	assert.True(t, d.HasHandler(":A:"))
	assert.False(t, d.HasHandler(":C:"))
	assert.Equal(t, []string{":A:", ":B:"}, d.Commands())
}

func TestDispatcher_CloseWaitsForRunningHandlers(t *testing.T) {
	d, _ := newTestDispatcher(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	d.Register(":SLOW:", func(Event) (any, error) {
		close(entered)
		<-release
		return "done", nil
	})

	go d.Dispatch(Event{Command: ":SLOW:"})
	<-entered

	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a handler was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}

	_, err := d.Dispatch(Event{Command: ":SLOW:"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDispatcher_ConcurrentDispatch(t *testing.T) {
	d, _ := newTestDispatcher(t)
	var mu sync.Mutex
	n := 0
	d.Register(":INC:", func(Event) (any, error) {
		mu.Lock()
		n++
		mu.Unlock()
		return nil, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.Dispatch(Event{Command: ":INC:"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, n)
}
