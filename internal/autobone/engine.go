package autobone

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/trackfit/autobone/pkg/core"
)

// minImprovement is the smallest error decrease that counts as progress.
const minImprovement = 1e-12

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy replaces the default DecayPolicy.
func WithPolicy(p AdjustPolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithErrorFunc replaces the default weighted height and slide error.
func WithErrorFunc(f ErrorFunc) Option {
	return func(e *Engine) {
		e.errFunc = f
	}
}

// WithCalibrations sets per-position tracker calibrations applied to every run.
func WithCalibrations(cals map[core.TrackerPosition]TrackerCalibration) Option {
	return func(e *Engine) {
		e.calibrations = cals
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// Engine tunes skeleton offsets so that feet stay planted and the
// skeleton reaches the target height.
type Engine struct {
	cfg          Config
	store        ConfigStore
	newSkeleton  SkeletonFactory
	policy       AdjustPolicy
	errFunc      ErrorFunc
	calibrations map[core.TrackerPosition]TrackerCalibration
	logger       *slog.Logger

	mu   sync.Mutex
	last *Results
}

// NewEngine creates an engine. store may be nil, in which case default
// offsets are used and results cannot be saved.
func NewEngine(cfg Config, store ConfigStore, newSkeleton SkeletonFactory, opts ...Option) *Engine {
	e := &Engine{
		cfg:         cfg,
		store:       store,
		newSkeleton: newSkeleton,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.policy == nil {
		e.policy = NewDecayPolicy(cfg)
	}
	if e.errFunc == nil {
		e.errFunc = DefaultErrorFunc(cfg)
	}
	return e
}

func (e *Engine) Config() Config {
	return e.cfg
}

// BaseConfig returns the stored offsets, filling gaps with defaults.
func (e *Engine) BaseConfig() (map[core.SkeletonConfigOffset]float64, error) {
	base := core.DefaultOffsets()
	if e.store == nil {
		return base, nil
	}
	stored, err := e.store.LoadOffsets()
	if err != nil {
		return nil, fmt.Errorf("loading skeleton config: %w", err)
	}
	for o, v := range stored {
		if v > 0 {
			base[o] = v
		}
	}
	return base, nil
}

func validateFrames(frames *core.PoseFrames, cfg Config) error {
	if frames.TrackerCount() == 0 {
		return fmt.Errorf("%w: recording has no trackers", ErrEmptyRecording)
	}
	n := frames.MaxFrameCount()
	if n == 0 {
		return fmt.Errorf("%w: recording has no frames", ErrEmptyRecording)
	}
	if n <= max(cfg.MinDataDistance, 1) {
		return fmt.Errorf("%w: not enough frames", ErrEmptyRecording)
	}
	return nil
}

// TargetHeight picks the height the optimization aims for.
func (e *Engine) TargetHeight(frames *core.PoseFrames, base map[core.SkeletonConfigOffset]float64) float64 {
	if e.cfg.TargetHmdHeight > 0 {
		return e.cfg.TargetHmdHeight
	}
	if e.cfg.UseSkeletonHeight {
		return core.Height(base)
	}

	scale := e.cfg.PositionScale
	if scale == 0 {
		scale = 1
	}
	if head, ok := frames.TrackerForPosition(core.TrackerPositionHead); ok {
		maxY, found := math.Inf(-1), false
		for _, f := range head.Frames() {
			if p, ok := f.Position(); ok {
				maxY = math.Max(maxY, p.Y*scale)
				found = true
			}
		}
		if found && maxY > 0 {
			return maxY
		}
	}

	h := core.Height(base)
	e.logger.Warn("No head position in recording, targeting current skeleton height", "height", h)
	return h
}

// ProcessFrames runs the optimization over frames. onEpoch is called on
// the calling goroutine after every epoch.
func (e *Engine) ProcessFrames(ctx context.Context, frames *core.PoseFrames, onEpoch func(Epoch)) (Results, error) {
	if err := validateFrames(frames, e.cfg); err != nil {
		return Results{}, err
	}

	base, err := e.BaseConfig()
	if err != nil {
		return Results{}, err
	}

	target := e.TargetHeight(frames, base)
	step := NewStep(e.cfg, target, frames, base, e.newSkeleton)
	step.ApplyCalibrations(e.calibrations)
	it := NewFrameIterator(e.cfg, frames.MaxFrameCount())

	e.logger.Info("Starting optimization",
		"trackers", frames.TrackerCount(),
		"frames", frames.MaxFrameCount(),
		"targetHeight", target,
		"currentHeight", step.CurrentHeight())

	first := 0
	if e.cfg.CalcInitError {
		first = -1
	}

	for epoch := first; epoch < e.cfg.NumEpochs; epoch++ {
		step.Epoch = epoch
		step.AdjustRate = e.policy.Rate(epoch)
		step.ErrorStats.Reset()

		for _, pair := range it.Pairs() {
			if err := ctx.Err(); err != nil {
				return Results{}, err
			}
			step.SetCursors(pair.Cursor1, pair.Cursor2, true)
			errVal := e.errFunc.Error(step)
			step.ErrorStats.AddValue(errVal)
			if epoch >= 0 {
				e.adjust(step, errVal)
			}
		}

		ep := Epoch{
			Epoch:        epoch,
			AdjustRate:   step.AdjustRate,
			Error:        step.ErrorStats.Mean(),
			ErrorStdDev:  step.ErrorStats.StandardDeviation(),
			ConfigValues: step.Offsets(),
		}
		if e.cfg.PrintEveryNumEpochs > 0 && (epoch%e.cfg.PrintEveryNumEpochs == 0 || epoch == e.cfg.NumEpochs-1) {
			e.logger.Info("Epoch finished",
				"epoch", epoch,
				"error", ep.Error,
				"errorStdDev", ep.ErrorStdDev,
				"adjustRate", ep.AdjustRate)
		}
		if onEpoch != nil {
			onEpoch(ep)
		}
	}

	final := step.CurrentHeight()
	res := Results{
		FinalHeight:      final,
		TargetHeight:     target,
		HeightDifference: target - final,
		ConfigValues:     step.Offsets(),
		Adjustments:      step.Adjustments,
	}

	e.mu.Lock()
	e.last = &res
	e.mu.Unlock()

	e.logger.Info("Optimization finished",
		"targetHeight", target,
		"finalHeight", final,
		"heightDifference", res.HeightDifference)

	return res, nil
}

// adjust tries to move every offset in the preferred direction, then the
// opposite one, keeping the first change that lowers the error.
func (e *Engine) adjust(step *Step, errVal float64) {
	slideL, slideR := footSlides(step)
	current := errVal

	for _, o := range core.AllOffsets {
		dot := SlideDot(step.Skeleton1, step.Skeleton2, o, slideL, slideR)
		mag := e.policy.Magnitude(step.AdjustRate, current, dot)
		if mag == 0 || math.IsNaN(mag) || math.IsInf(mag, 0) {
			continue
		}

		orig := step.Skeleton1.Offset(o)
		sign := e.policy.PreferredSign(dot)
		accepted := false
		for _, s := range []float64{sign, -sign} {
			v := orig + s*mag
			if v <= 0 {
				continue
			}
			step.SetOffset(o, v)
			if newErr := e.errFunc.Error(step); newErr < current-minImprovement {
				current = newErr
				accepted = true
				break
			}
		}
		if !accepted {
			step.SetOffset(o, orig)
		}
	}
}

// ComputeContributingBones runs the bone contribution analysis with the
// engine's base configuration.
func (e *Engine) ComputeContributingBones(ctx context.Context, frames *core.PoseFrames) (map[core.BoneType]float64, error) {
	base, err := e.BaseConfig()
	if err != nil {
		return nil, err
	}
	m, err := ComputeContributingBones(ctx, e.cfg, frames, base, e.newSkeleton)
	if err != nil {
		return nil, err
	}
	out := make(map[core.BoneType]float64, len(m))
	for b, c := range m {
		out[b] = c.Mean()
	}
	return out, nil
}

// LastResults returns the results of the last successful run.
func (e *Engine) LastResults() (Results, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return Results{}, false
	}
	return *e.last, true
}

// Offsets returns a copy of the last computed offsets, or nil.
func (e *Engine) Offsets() map[core.SkeletonConfigOffset]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return nil
	}
	return copyOffsets(e.last.ConfigValues)
}

// SetOffsets replaces the remembered offsets, e.g. with an average over
// several recordings.
func (e *Engine) SetOffsets(offsets map[core.SkeletonConfigOffset]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		e.last = &Results{}
	}
	e.last.ConfigValues = copyOffsets(offsets)
}

// ApplyAndSaveConfig writes the last computed offsets to the config store.
func (e *Engine) ApplyAndSaveConfig() error {
	offsets := e.Offsets()
	if offsets == nil {
		return ErrNoResults
	}
	if e.store == nil {
		return fmt.Errorf("no config store configured")
	}
	if err := e.store.SaveOffsets(offsets); err != nil {
		return fmt.Errorf("saving skeleton config: %w", err)
	}
	e.logger.Info("Applied skeleton config", "lengths", LengthsString(offsets))
	return nil
}

// LengthsString formats offsets in centimetres for logs.
func LengthsString(offsets map[core.SkeletonConfigOffset]float64) string {
	var b strings.Builder
	for _, o := range core.AllOffsets {
		v, ok := offsets[o]
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %.2f", o, v*100)
	}
	return b.String()
}
