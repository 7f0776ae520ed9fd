package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/trackfit/autobone/internal/autobone"
	"github.com/trackfit/autobone/internal/config"
	"github.com/trackfit/autobone/internal/recorder"
	"github.com/trackfit/autobone/internal/skeleton"
	"github.com/trackfit/autobone/internal/storage/jsonfile"
	"github.com/trackfit/autobone/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

func humanSkeleton(trackers []*core.Tracker) autobone.Skeleton {
	return skeleton.New(trackers)
}

// standingFrames is four trackers standing still with the headset at headY.
func standingFrames(t *testing.T, n int, headY float64) *core.PoseFrames {
	t.Helper()
	type mount struct {
		name string
		pos  core.TrackerPosition
		vec  *r3.Vec
	}
	mounts := []mount{
		{"hmd", core.TrackerPositionHead, &r3.Vec{Y: headY}},
		{"chest", core.TrackerPositionChest, nil},
		{"left_foot", core.TrackerPositionLeftFoot, &r3.Vec{X: -0.13}},
		{"right_foot", core.TrackerPositionRightFoot, &r3.Vec{X: 0.13}},
	}
	pf := core.NewPoseFrames()
	for _, s := range mounts {
		tf := core.NewTrackerFrames(s.name)
		for i := 0; i < n; i++ {
			tp := s.pos
			rot := core.IdentityQuat
			f, err := core.NewTrackerFrame(core.FrameData{TrackerPosition: &tp, Position: s.vec, Rotation: &rot})
			require.NoError(t, err)
			tf.Add(f)
		}
		pf.AddTracker(tf)
	}
	return pf
}

type collector struct {
	NopListener
	mu         sync.Mutex
	statuses   []ProcessStatus
	epochs     []autobone.Epoch
	recordings []*core.PoseFrames
	engineEnds []map[core.SkeletonConfigOffset]float64
}

func (c *collector) OnProcessStatus(s ProcessStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, s)
}

func (c *collector) OnEpoch(e autobone.Epoch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epochs = append(c.epochs, e)
}

func (c *collector) OnRecordingEnd(f *core.PoseFrames) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordings = append(c.recordings, f)
}

func (c *collector) OnEngineEnd(o map[core.SkeletonConfigOffset]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engineEnds = append(c.engineEnds, o)
}

func (c *collector) forType(pt ProcessType) []ProcessStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ProcessStatus
	for _, s := range c.statuses {
		if s.Type == pt {
			out = append(out, s)
		}
	}
	return out
}

func (c *collector) starts(pt ProcessType) int {
	n := 0
	for _, s := range c.forType(pt) {
		if !s.Completed && s.Current == -1 {
			n++
		}
	}
	return n
}

func (c *collector) terminals(pt ProcessType) []ProcessStatus {
	var out []ProcessStatus
	for _, s := range c.forType(pt) {
		if s.Completed {
			out = append(out, s)
		}
	}
	return out
}

func (c *collector) terminal(t *testing.T, pt ProcessType) ProcessStatus {
	t.Helper()
	terms := c.terminals(pt)
	require.Len(t, terms, 1, "exactly one terminal event for %s", pt)
	return terms[0]
}

type exportCall struct {
	name    string
	offsets map[core.SkeletonConfigOffset]float64
}

type fakeExporter struct {
	mu    sync.Mutex
	calls []exportCall
}

func (f *fakeExporter) Export(_ context.Context, name string, _ *core.PoseFrames, offsets map[core.SkeletonConfigOffset]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, exportCall{name, offsets})
	return nil
}

type fixture struct {
	manager  *Manager
	recorder *recorder.PoseRecorder
	engine   *autobone.Engine
	backend  *jsonfile.Backend
	events   *collector
	dir      string
}

func testConfig() autobone.Config {
	cfg := autobone.DefaultConfig()
	cfg.SampleCount = 100
	cfg.SampleRateMs = 1
	cfg.NumEpochs = 10
	cfg.PrintEveryNumEpochs = 0
	return cfg
}

func newFixture(t *testing.T, cfg autobone.Config, source recorder.Source, exporter Exporter) *fixture {
	t.Helper()
	dir := t.TempDir()
	backend := jsonfile.New(config.JSONFileConfig{SaveDir: dir, LoadDir: dir}, nil)
	require.NoError(t, backend.Init())

	rec := recorder.New(source, nil)
	engine := autobone.NewEngine(cfg, nil, humanSkeleton)
	deps := Dependencies{Recorder: rec, Engine: engine, Backend: backend}
	if exporter != nil {
		deps.Exporter = exporter
	}
	m, err := NewManager(deps)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	events := &collector{}
	m.AddListener(events)
	return &fixture{manager: m, recorder: rec, engine: engine, backend: backend, events: events, dir: dir}
}

func (f *fixture) wait(t *testing.T, pt ProcessType) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, f.manager.Wait(ctx, pt))
}
