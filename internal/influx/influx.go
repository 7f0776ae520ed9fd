// Package influx exports optimization progress to InfluxDB. When the server
// cannot be reached, points are written as line protocol to a gzip backup.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/trackfit/autobone/internal/autobone"
	"github.com/trackfit/autobone/internal/config"
	"github.com/trackfit/autobone/internal/queue"
	"github.com/trackfit/autobone/internal/worker"
	"github.com/trackfit/autobone/pkg/core"
)

const (
	EpochMeasurement   = "autobone_epoch"
	ProcessMeasurement = "autobone_process"

	retentionSeconds = 60 * 60 * 24 * 90

	// maxPending bounds buffered points between flushes.
	maxPending = 100_000
)

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx export is disabled")

// Manager is a worker.Listener that buffers epoch points and writes them
// when a process finishes.
type Manager struct {
	worker.NopListener

	cfg    config.InfluxConfig
	logger zerolog.Logger

	client influxdb2.Client
	writer influxdb2_api.WriteAPI

	backupFile   *os.File
	backupWriter *gzip.Writer

	pending *queue.Queue[*influxdb2_write.Point]

	mu      sync.Mutex
	valid   bool
	process string
}

// NewManager creates a new InfluxDB manager. Nothing is sent until Connect.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		logger:  log,
		pending: queue.NewBounded[*influxdb2_write.Point](maxPending),
	}
}

// URL is the server address built from protocol, host and port.
func (m *Manager) URL() string {
	return fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port)
}

// Connect establishes a connection to InfluxDB, falling back to the backup
// file when the server does not answer a ping.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.client = influxdb2.NewClientWithOptions(
		m.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		if m.cfg.Backup == "" {
			m.client.Close()
			return fmt.Errorf("influxdb unreachable at %s and no backup path set", m.URL())
		}
		m.logger.Warn().Str("backupPath", m.cfg.Backup).
			Msg("InfluxDB client failed to initialize, writing to backup file")

		file, err := os.OpenFile(m.cfg.Backup, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			m.client.Close()
			return fmt.Errorf("error creating backup file: %w", err)
		}
		m.backupFile = file
		m.backupWriter = gzip.NewWriter(file)
		return nil
	}

	if err := m.ensureBucket(ctx); err != nil {
		return err
	}
	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(m.writer.Errors())

	m.mu.Lock()
	m.valid = true
	m.mu.Unlock()
	m.logger.Info().Str("url", m.URL()).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) ensureBucket(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("create organization %s: %w", m.cfg.Org, err)
		}
	}

	if _, err := m.client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err == nil {
		return nil
	}
	m.logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = m.client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: retentionSeconds,
	})
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", m.cfg.Bucket, err)
	}
	return nil
}

// EpochPoint converts one optimizer epoch into a point.
func EpochPoint(e autobone.Epoch, process string, ts time.Time) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(EpochMeasurement).
		AddTag("process", process).
		AddField("epoch", e.Epoch).
		AddField("error", e.Error).
		AddField("error_stddev", e.ErrorStdDev).
		AddField("adjust_rate", e.AdjustRate).
		SetTime(ts)
	for _, o := range core.AllOffsets {
		if v, ok := e.ConfigValues[o]; ok {
			p.AddField("offset_"+o.ConfigKey(), v)
		}
	}
	return p
}

// ProcessPoint records the outcome of a finished process.
func ProcessPoint(s worker.ProcessStatus, ts time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement(ProcessMeasurement).
		AddTag("process", s.Type.String()).
		AddField("success", s.Success).
		AddField("message", s.Message).
		SetTime(ts)
}

// OnProcessStatus tags subsequent epochs with the running process and
// flushes buffered points when a process completes.
func (m *Manager) OnProcessStatus(s worker.ProcessStatus) {
	if !s.Completed {
		if s.Current < 0 {
			m.mu.Lock()
			m.process = s.Type.String()
			m.mu.Unlock()
		}
		return
	}
	m.pending.Push(ProcessPoint(s, time.Now()))
	if err := m.Flush(); err != nil {
		m.logger.Error().Err(err).Msg("Failed to flush epoch points")
	}
}

// OnEpoch buffers one point per epoch.
func (m *Manager) OnEpoch(e autobone.Epoch) {
	m.mu.Lock()
	process := m.process
	m.mu.Unlock()
	if n := m.pending.Push(EpochPoint(e, process, time.Now())); n > 0 {
		m.logger.Warn().Int("dropped", n).Msg("Epoch buffer full, dropping oldest points")
	}
}

// Pending returns the number of buffered points.
func (m *Manager) Pending() int {
	return m.pending.Len()
}

// Flush writes every buffered point to InfluxDB or the backup file. Points
// that fail to write stay buffered for the next flush.
func (m *Manager) Flush() error {
	return m.pending.Drain(m.WritePoint)
}

// WritePoint writes a point to InfluxDB or backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		m.writer.WritePoint(point)
		return nil
	}
	if m.backupWriter == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}

	line := strings.TrimSuffix(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := m.backupWriter.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending points and releases the client and backup file.
func (m *Manager) Close() error {
	err := m.Flush()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writer != nil {
		m.writer.Flush()
	}
	if m.client != nil {
		m.client.Close()
	}
	if m.backupWriter != nil {
		err = errors.Join(err, m.backupWriter.Close(), m.backupFile.Close())
		m.backupWriter = nil
	}
	m.valid = false
	return err
}
