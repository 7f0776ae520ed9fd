package worker

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackfit/autobone/internal/autobone"
	"github.com/trackfit/autobone/internal/recorder"
	"github.com/trackfit/autobone/pkg/core"
)

func TestProcessType_String(t *testing.T) {
	assert.Equal(t, "RECORD", ProcessRecord.String())
	assert.Equal(t, "SAVE", ProcessSave.String())
	assert.Equal(t, "PROCESS", ProcessProcess.String())
	assert.Equal(t, "UNKNOWN", ProcessType(42).String())
}

func TestStartRecording_SingleFlight(t *testing.T) {
	cfg := testConfig()
	cfg.SampleCount = 50
	cfg.SampleRateMs = 5
	f := newFixture(t, cfg, recorder.NewReplaySource(standingFrames(t, 10, 1.7)), nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
	)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.manager.StartRecording() {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	f.wait(t, ProcessRecord)

	assert.Equal(t, 1, started)
	assert.Equal(t, 1, f.events.starts(ProcessRecord))
	term := f.events.terminal(t, ProcessRecord)
	assert.True(t, term.Success)
	assert.NoError(t, term.Err)
	assert.Equal(t, StateIdle, f.manager.State(ProcessRecord))
}

func TestStartRecording_Progress(t *testing.T) {
	cfg := testConfig()
	cfg.SampleCount = 5
	f := newFixture(t, cfg, recorder.NewReplaySource(standingFrames(t, 3, 1.7)), nil)

	require.True(t, f.manager.StartRecording())
	f.wait(t, ProcessRecord)

	statuses := f.events.forType(ProcessRecord)
	require.GreaterOrEqual(t, len(statuses), 7)

	first := statuses[0]
	assert.Equal(t, ProcessStatus{Type: ProcessRecord, Message: "Recording...", Current: -1, Total: -1, ETA: -1, Success: true}, first)

	progress := statuses[1 : len(statuses)-1]
	require.Len(t, progress, 5)
	for i, p := range progress {
		assert.Equal(t, i+1, p.Current)
		assert.Equal(t, 5, p.Total)
		assert.False(t, p.Completed)
	}
	assert.InDelta(t, 0, progress[4].ETA, 1e-9)
	assert.InDelta(t, 0.004, progress[0].ETA, 1e-9)

	require.Len(t, f.events.recordings, 1)
	assert.Equal(t, 5, f.events.recordings[0].MaxFrameCount())
	assert.FileExists(t, filepath.Join(f.dir, "LastABRecording.json"))
	assert.NoFileExists(t, filepath.Join(f.dir, "ABRecording1.json"))
}

func TestStartRecording_SavesPermanentCopy(t *testing.T) {
	cfg := testConfig()
	cfg.SampleCount = 3
	cfg.SaveRecordings = true
	f := newFixture(t, cfg, recorder.NewReplaySource(standingFrames(t, 3, 1.7)), nil)

	require.True(t, f.manager.StartRecording())
	f.wait(t, ProcessRecord)

	assert.FileExists(t, filepath.Join(f.dir, "LastABRecording.json"))
	assert.FileExists(t, filepath.Join(f.dir, "ABRecording1.json"))
}

func TestStartRecording_NotReady(t *testing.T) {
	f := newFixture(t, testConfig(), nil, nil)

	require.True(t, f.manager.StartRecording())
	f.wait(t, ProcessRecord)

	term := f.events.terminal(t, ProcessRecord)
	assert.False(t, term.Success)
	assert.ErrorIs(t, term.Err, autobone.ErrNotReady)
}

func TestCancelRecording(t *testing.T) {
	cfg := testConfig()
	cfg.SampleCount = 10
	cfg.SampleRateMs = 1000
	f := newFixture(t, cfg, recorder.NewReplaySource(standingFrames(t, 3, 1.7)), nil)

	require.True(t, f.manager.StartRecording())
	require.Eventually(t, f.recorder.IsRecording, 2*time.Second, 5*time.Millisecond)
	f.manager.CancelRecording()
	f.wait(t, ProcessRecord)

	term := f.events.terminal(t, ProcessRecord)
	assert.False(t, term.Success)
	assert.ErrorIs(t, term.Err, autobone.ErrCaptureFailure)
	assert.ErrorIs(t, term.Err, recorder.ErrCancelled)
	assert.Empty(t, f.events.recordings)
}

func TestClose_DuringRecording(t *testing.T) {
	cfg := testConfig()
	cfg.SampleCount = 200
	cfg.SampleRateMs = 5
	f := newFixture(t, cfg, recorder.NewReplaySource(standingFrames(t, 3, 1.7)), nil)

	require.True(t, f.manager.StartRecording())
	require.Eventually(t, func() bool {
		return len(f.events.forType(ProcessRecord)) > 3
	}, 5*time.Second, time.Millisecond)

	f.manager.Close()
	assert.False(t, f.recorder.IsRecording())

	// Give a still running sampler time to emit more progress.
	time.Sleep(50 * time.Millisecond)

	events := f.events.forType(ProcessRecord)
	term := f.events.terminal(t, ProcessRecord)
	assert.False(t, term.Success)
	assert.ErrorIs(t, term.Err, autobone.ErrCaptureFailure)
	assert.ErrorIs(t, term.Err, context.Canceled)
	assert.True(t, events[len(events)-1].Completed, "terminal event is the last one")
	assert.Empty(t, f.events.recordings)
}

func TestStopRecording_KeepsFrames(t *testing.T) {
	cfg := testConfig()
	cfg.SampleCount = 100000
	cfg.SampleRateMs = 2
	f := newFixture(t, cfg, recorder.NewReplaySource(standingFrames(t, 3, 1.7)), nil)

	require.True(t, f.manager.StartRecording())
	require.Eventually(t, func() bool {
		return len(f.events.forType(ProcessRecord)) > 4
	}, 5*time.Second, 5*time.Millisecond)
	f.manager.StopRecording()
	f.wait(t, ProcessRecord)

	term := f.events.terminal(t, ProcessRecord)
	assert.True(t, term.Success)
	require.Len(t, f.events.recordings, 1)
	assert.Greater(t, f.events.recordings[0].MaxFrameCount(), 0)
}

func TestSaveRecording_BeforeRecord(t *testing.T) {
	f := newFixture(t, testConfig(), recorder.NewReplaySource(standingFrames(t, 3, 1.7)), nil)

	require.True(t, f.manager.SaveRecording())
	f.wait(t, ProcessSave)

	term := f.events.terminal(t, ProcessSave)
	assert.False(t, term.Success)
	assert.ErrorIs(t, term.Err, autobone.ErrNoRecordingFound)
	assert.Equal(t, "No recording found", term.Message)
}

func TestSaveRecording_ZeroFrames(t *testing.T) {
	f := newFixture(t, testConfig(), recorder.NewReplaySource(standingFrames(t, 3, 1.7)), nil)

	_, err := f.recorder.StartCapture(10, time.Hour, nil)
	require.NoError(t, err)
	f.recorder.StopCapture()

	require.True(t, f.manager.SaveRecording())
	f.wait(t, ProcessSave)

	term := f.events.terminal(t, ProcessSave)
	assert.False(t, term.Success)
	assert.ErrorIs(t, term.Err, autobone.ErrEmptyRecording)
	assert.ErrorContains(t, term.Err, "no frames")
	assert.NoFileExists(t, filepath.Join(f.dir, "ABRecording1.json"))
}

func TestSaveRecording_WritesPermanent(t *testing.T) {
	cfg := testConfig()
	cfg.SampleCount = 4
	f := newFixture(t, cfg, recorder.NewReplaySource(standingFrames(t, 3, 1.7)), nil)

	require.True(t, f.manager.StartRecording())
	f.wait(t, ProcessRecord)
	require.True(t, f.manager.SaveRecording())
	f.wait(t, ProcessSave)

	term := f.events.terminal(t, ProcessSave)
	assert.True(t, term.Success, term.Message)
	assert.Equal(t, "Recording saved as ABRecording1", term.Message)
	assert.FileExists(t, filepath.Join(f.dir, "ABRecording1.json"))
}

func TestProcessRecordings_NothingToProcess(t *testing.T) {
	f := newFixture(t, testConfig(), nil, nil)

	require.True(t, f.manager.ProcessRecordings())
	f.wait(t, ProcessProcess)

	term := f.events.terminal(t, ProcessProcess)
	assert.False(t, term.Success)
	assert.ErrorIs(t, term.Err, autobone.ErrNoRecordingFound)
	assert.Empty(t, f.events.engineEnds)
}

func TestProcessRecordings_OptimizationFailure(t *testing.T) {
	f := newFixture(t, testConfig(), nil, nil)
	require.NoError(t, f.backend.WriteRecording(context.Background(), "ABRecording1", standingFrames(t, 1, 1.7)))

	require.True(t, f.manager.ProcessRecordings())
	f.wait(t, ProcessProcess)

	term := f.events.terminal(t, ProcessProcess)
	assert.ErrorIs(t, term.Err, autobone.ErrOptimizationFailure)
	assert.ErrorIs(t, term.Err, autobone.ErrEmptyRecording)
}

func TestProcessRecordings_ZeroFrameRecording(t *testing.T) {
	f := newFixture(t, testConfig(), nil, nil)
	empty := core.NewPoseFrames(core.NewTrackerFrames("hmd"), core.NewTrackerFrames("left_foot"))
	require.NoError(t, f.backend.WriteRecording(context.Background(), "ABRecording1", empty))

	require.True(t, f.manager.ProcessRecordings())
	f.wait(t, ProcessProcess)

	term := f.events.terminal(t, ProcessProcess)
	assert.False(t, term.Success)
	assert.ErrorIs(t, term.Err, autobone.ErrOptimizationFailure)
	assert.ErrorIs(t, term.Err, autobone.ErrEmptyRecording)
	assert.ErrorContains(t, term.Err, "no frames")
	assert.Empty(t, f.events.engineEnds)
}

func TestEndToEnd_RecordThenProcess(t *testing.T) {
	exporter := &fakeExporter{}
	cfg := testConfig()
	cfg.ExportDir = "exports"
	f := newFixture(t, cfg, recorder.NewReplaySource(standingFrames(t, 20, 1.70)), exporter)

	require.True(t, f.manager.StartRecording())
	f.wait(t, ProcessRecord)
	require.True(t, f.events.terminal(t, ProcessRecord).Success)

	require.True(t, f.manager.ProcessRecordings())
	f.wait(t, ProcessProcess)

	term := f.events.terminal(t, ProcessProcess)
	require.True(t, term.Success, "%v", term.Err)
	assert.Equal(t, "Done processing", term.Message)

	res, ok := f.engine.LastResults()
	require.True(t, ok)
	assert.InDelta(t, 1.70, res.TargetHeight, 1e-9)
	assert.Less(t, math.Abs(res.HeightDifference), 0.01)

	assert.Len(t, f.events.epochs, cfg.NumEpochs)
	require.Len(t, f.events.engineEnds, 1)
	assert.Equal(t, res.ConfigValues, f.events.engineEnds[0])

	require.Len(t, exporter.calls, 1)
	assert.Equal(t, "LastABRecording", exporter.calls[0].name)
}

func TestProcessRecordings_FallsBackToCurrentCapture(t *testing.T) {
	cfg := testConfig()
	f := newFixture(t, cfg, recorder.NewReplaySource(standingFrames(t, 10, 1.70)), nil)
	// Nothing is stored yet, so the live capture is used.
	capture, err := f.recorder.StartCapture(50, time.Millisecond, nil)
	require.NoError(t, err)
	_, err = capture.Wait(context.Background())
	require.NoError(t, err)

	require.True(t, f.manager.ProcessRecordings())
	f.wait(t, ProcessProcess)

	term := f.events.terminal(t, ProcessProcess)
	require.True(t, term.Success, "%v", term.Err)
	require.Len(t, f.events.engineEnds, 1)
}

func TestApplyValues(t *testing.T) {
	f := newFixture(t, testConfig(), nil, nil)
	assert.ErrorIs(t, f.manager.ApplyValues(), autobone.ErrNoResults)
}

func TestStart_RecoversPanic(t *testing.T) {
	f := newFixture(t, testConfig(), nil, nil)

	require.True(t, f.manager.start(ProcessSave, "Saving...", func(context.Context) (string, error) {
		panic("boom")
	}))
	f.wait(t, ProcessSave)

	term := f.events.terminal(t, ProcessSave)
	assert.False(t, term.Success)
	assert.ErrorContains(t, term.Err, "boom")
	assert.Equal(t, StateIdle, f.manager.State(ProcessSave))

	// The slot is free again.
	require.True(t, f.manager.SaveRecording())
	f.wait(t, ProcessSave)
}

func TestStart_IndependentSlots(t *testing.T) {
	f := newFixture(t, testConfig(), nil, nil)
	release := make(chan struct{})

	require.True(t, f.manager.start(ProcessRecord, "Recording...", func(context.Context) (string, error) {
		<-release
		return "done", nil
	}))
	assert.Equal(t, StateRunning, f.manager.State(ProcessRecord))
	assert.Equal(t, []ProcessType{ProcessRecord}, f.manager.RunningProcesses())
	assert.False(t, f.manager.StartRecording())

	require.True(t, f.manager.SaveRecording())
	f.wait(t, ProcessSave)

	close(release)
	f.wait(t, ProcessRecord)
	assert.Empty(t, f.manager.RunningProcesses())
}

type gateListener struct {
	NopListener
	gate chan struct{}
}

func (g *gateListener) OnProcessStatus(s ProcessStatus) {
	if !s.Completed && s.Current == -1 {
		<-g.gate
	}
}

func TestStart_AnnouncesFromWorker(t *testing.T) {
	f := newFixture(t, testConfig(), nil, nil)
	slow := &gateListener{gate: make(chan struct{})}
	f.manager.AddListener(slow)

	var startsSeen int
	returned := make(chan bool, 1)
	go func() {
		returned <- f.manager.start(ProcessSave, "Saving...", func(context.Context) (string, error) {
			startsSeen = f.events.starts(ProcessSave)
			return "saved", nil
		})
	}()

	select {
	case ok := <-returned:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("start blocked on a listener")
	}

	close(slow.gate)
	f.wait(t, ProcessSave)
	assert.Equal(t, 1, startsSeen, "start event precedes the operation body")
	assert.True(t, f.events.terminal(t, ProcessSave).Success)
}

func TestWait_Timeout(t *testing.T) {
	f := newFixture(t, testConfig(), nil, nil)
	release := make(chan struct{})
	defer close(release)

	require.True(t, f.manager.start(ProcessProcess, "Processing...", func(context.Context) (string, error) {
		<-release
		return "", nil
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.manager.Wait(ctx, ProcessProcess), context.DeadlineExceeded)
}

type panickyListener struct{ NopListener }

func (*panickyListener) OnProcessStatus(ProcessStatus) { panic("listener bug") }

func TestListeners_PanicIsolatedAndRemovable(t *testing.T) {
	f := newFixture(t, testConfig(), nil, nil)
	bad := &panickyListener{}
	f.manager.AddListener(bad)

	require.True(t, f.manager.SaveRecording())
	f.wait(t, ProcessSave)
	assert.Len(t, f.events.terminals(ProcessSave), 1)

	f.manager.RemoveListener(bad)
	f.manager.RemoveListener(f.events)
	require.True(t, f.manager.SaveRecording())
	f.wait(t, ProcessSave)
	assert.Len(t, f.events.terminals(ProcessSave), 1, "removed listener receives nothing")
}

func TestStartProcessByType(t *testing.T) {
	f := newFixture(t, testConfig(), nil, nil)
	assert.False(t, f.manager.StartProcessByType(ProcessType(9)))

	require.True(t, f.manager.StartProcessByType(ProcessSave))
	f.wait(t, ProcessSave)
	assert.ErrorIs(t, f.events.terminal(t, ProcessSave).Err, autobone.ErrNoRecordingFound)
}

func TestTrackerInfo(t *testing.T) {
	frames := standingFrames(t, 1, 1.7)
	assert.Equal(t, "body:head (RP), body:chest (R), body:left_foot (RP), body:right_foot (RP)", TrackerInfo(frames))
}

func TestSkeletonRatios_Defaults(t *testing.T) {
	got := SkeletonRatios(core.DefaultOffsets())
	// torso 0.56, neck 0.10, legs 0.92
	assert.Contains(t, got, "Neck-Torso: 0.1786")
	assert.Contains(t, got, "Knee-Leg: 0.5435")
	assert.Equal(t, "Neck-Torso: 0.0000, Chest-Torso: 0.0000, Torso-Waist: 0.0000, Leg-Torso: 0.0000, Leg-Body: 0.0000, Knee-Leg: 0.0000",
		SkeletonRatios(map[core.SkeletonConfigOffset]float64{}))
}
