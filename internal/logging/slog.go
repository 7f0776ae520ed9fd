package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName is the instrumentation scope of the OTel log bridge.
const ServiceName = "autobone"

var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// Manager owns the process slog.Logger. Setup may be called again to move
// output, for example from stdout to a log file once the config is read.
type Manager struct {
	logger   *slog.Logger
	provider *sdklog.LoggerProvider
}

func NewManager() *Manager {
	return &Manager{}
}

// SetupOption customizes Setup.
type SetupOption func(*setupOptions)

type setupOptions struct {
	dynamic ContextProvider
}

// WithContext adds the attributes returned by p to every record.
func WithContext(p ContextProvider) SetupOption {
	return func(o *setupOptions) { o.dynamic = p }
}

// parseLevel accepts slog level names in any case. Anything else is info.
func parseLevel(name string) slog.Level {
	var lvl slog.Level
	if name == "" || lvl.UnmarshalText([]byte(name)) != nil {
		return slog.LevelInfo
	}
	return lvl
}

func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey || a.Value.Kind() != slog.KindTime {
		return a
	}
	return slog.String(a.Key, a.Value.Time().UTC().Format(time.RFC3339))
}

// Setup sends text records to w, or stdout when w is nil, and mirrors them
// into the OTel bridge when provider is set.
func (m *Manager) Setup(w io.Writer, level string, provider *sdklog.LoggerProvider, opts ...SetupOption) {
	var o setupOptions
	for _, opt := range opts {
		opt(&o)
	}
	if w == nil {
		w = osStdout
	}

	text := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: utcTime,
	})
	var bridge slog.Handler
	if provider != nil {
		bridge = otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider))
	}

	h := NewMultiHandler(text, bridge)
	if o.dynamic != nil {
		h = NewContextHandler(h, o.dynamic)
	}

	m.provider = provider
	m.logger = slog.New(h)
	m.logger.Debug("logger ready", "level", level)
}

// Logger falls back to slog.Default before Setup.
func (m *Manager) Logger() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}

// Flush pushes buffered OTel records out.
func (m *Manager) Flush(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.ForceFlush(ctx)
}
