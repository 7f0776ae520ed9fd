package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/trackfit/autobone/internal/autobone"
	"github.com/trackfit/autobone/internal/stats"
	"github.com/trackfit/autobone/pkg/core"
)

// currentRecordingName labels the in-memory capture when nothing is stored.
const currentRecordingName = "Current"

func (m *Manager) process(ctx context.Context) (string, error) {
	recs, err := m.recordingsToProcess(ctx)
	if err != nil {
		return "Failed to load recordings", fmt.Errorf("%w: %w", autobone.ErrOptimizationFailure, err)
	}
	if len(recs) == 0 {
		return "No recordings found", autobone.ErrNoRecordingFound
	}

	engine := m.deps.Engine
	cfg := engine.Config()
	heightErr := &stats.Calculator{}
	offsetStats := make(map[core.SkeletonConfigOffset]*stats.Calculator)

	m.log.Info("Processing recordings", "count", len(recs))
	for i, rec := range recs {
		m.progress(ProcessProcess, fmt.Sprintf("Processing %s...", rec.Name), i, len(recs), -1)
		m.log.Info("Processing frames", "recording", rec.Name)
		m.log.Info("Tracker info", "recording", rec.Name,
			"trackers", rec.Frames.TrackerCount(), "info", TrackerInfo(rec.Frames))

		res, err := engine.ProcessFrames(ctx, rec.Frames, func(ep autobone.Epoch) {
			m.metrics.epoch(ctx)
			m.each(func(l Listener) { l.OnEpoch(ep) })
		})
		if err != nil {
			return "Processing failed", fmt.Errorf("%w: recording %s: %w", autobone.ErrOptimizationFailure, rec.Name, err)
		}

		heightErr.AddValue(res.HeightDifference)
		for o, v := range res.ConfigValues {
			c, ok := offsetStats[o]
			if !ok {
				c = &stats.Calculator{}
				offsetStats[o] = c
			}
			c.AddValue(v * 100)
		}
		m.log.Info("Skeleton ratios", "recording", rec.Name, "ratios", SkeletonRatios(res.ConfigValues))
		m.log.Info("Length values", "recording", rec.Name, "lengths", autobone.LengthsString(res.ConfigValues))

		if cfg.ComputeContributions {
			contrib, err := engine.ComputeContributingBones(ctx, rec.Frames)
			if err != nil {
				return "Processing failed", fmt.Errorf("%w: contributions for %s: %w", autobone.ErrOptimizationFailure, rec.Name, err)
			}
			m.log.Info("Bone contributions", "recording", rec.Name, "contributions", contributionString(contrib))
		}

		if m.deps.Exporter != nil && cfg.ExportDir != "" {
			if err := m.deps.Exporter.Export(ctx, rec.Name, rec.Frames, res.ConfigValues); err != nil {
				m.log.Error("Export failed", "recording", rec.Name, "error", err)
			}
		}
	}

	m.log.Info("Average length values", "lengths", averageLengths(offsetStats))
	m.log.Info("Average height error",
		"mean", fmt.Sprintf("%.6f", heightErr.Mean()),
		"sd", fmt.Sprintf("%.6f", heightErr.StandardDeviation()))

	offsets := engine.Offsets()
	m.each(func(l Listener) { l.OnEngineEnd(offsets) })
	return "Done processing", nil
}

// recordingsToProcess loads the stored recordings, falling back to the
// current capture when there are none.
func (m *Manager) recordingsToProcess(ctx context.Context) ([]core.Recording, error) {
	if m.deps.Backend != nil {
		recs, err := m.deps.Backend.LoadRecordings(ctx)
		if err != nil {
			return nil, err
		}
		if len(recs) > 0 {
			return recs, nil
		}
	}

	if m.deps.Recorder == nil {
		return nil, nil
	}
	capture := m.deps.Recorder.CurrentCapture()
	if capture == nil {
		return nil, nil
	}
	frames, err := capture.Wait(ctx)
	if err != nil {
		m.log.Warn("Current recording unusable", "error", err)
		return nil, nil
	}
	m.log.Info("No stored recordings, using the current recording")
	return []core.Recording{{Name: currentRecordingName, Frames: frames}}, nil
}

// TrackerInfo describes each tracker by designation and data flags, e.g.
// "body:head (RP), body:left_foot (RPA)".
func TrackerInfo(frames *core.PoseFrames) string {
	var b strings.Builder
	for _, tf := range frames.Trackers() {
		f, ok := tf.TryGetFrame(0)
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		if p, ok := f.TrackerPosition(); ok {
			b.WriteString(p.Designation())
		} else {
			b.WriteString("unassigned")
		}

		var flags strings.Builder
		for _, fl := range []struct {
			flag core.DataFlags
			code byte
		}{
			{core.FlagRotation, 'R'},
			{core.FlagPosition, 'P'},
			{core.FlagAcceleration, 'A'},
			{core.FlagRawRotation, 'r'},
		} {
			if f.Flags().Has(fl.flag) {
				flags.WriteByte(fl.code)
			}
		}
		if flags.Len() > 0 {
			fmt.Fprintf(&b, " (%s)", flags.String())
		}
	}
	return b.String()
}

// SkeletonRatios summarizes body proportions of an offset set.
func SkeletonRatios(o map[core.SkeletonConfigOffset]float64) string {
	neck := o[core.OffsetNeck]
	torso := o[core.OffsetUpperChest] + o[core.OffsetChest] + o[core.OffsetWaist] + o[core.OffsetHip]
	leg := o[core.OffsetUpperLeg] + o[core.OffsetLowerLeg]

	ratio := func(a, b float64) float64 {
		if b == 0 {
			return 0
		}
		return a / b
	}
	return fmt.Sprintf("Neck-Torso: %.4f, Chest-Torso: %.4f, Torso-Waist: %.4f, Leg-Torso: %.4f, Leg-Body: %.4f, Knee-Leg: %.4f",
		ratio(neck, torso),
		ratio(o[core.OffsetUpperChest]+o[core.OffsetChest], torso),
		ratio(o[core.OffsetHipsWidth], torso),
		ratio(leg, torso),
		ratio(leg, torso+neck),
		ratio(o[core.OffsetLowerLeg], leg),
	)
}

func averageLengths(offsetStats map[core.SkeletonConfigOffset]*stats.Calculator) string {
	var b strings.Builder
	for _, o := range core.AllOffsets {
		c, ok := offsetStats[o]
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %.2f (SD %.2f)", o.ConfigKey(), c.Mean(), c.StandardDeviation())
	}
	return b.String()
}

func contributionString(contrib map[core.BoneType]float64) string {
	var b strings.Builder
	for _, bone := range core.AllBones {
		v, ok := contrib[bone]
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %.4f", bone, v)
	}
	return b.String()
}
