// Package codec converts recordings to and from their JSON document form
// and names stored recordings.
package codec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/trackfit/autobone/pkg/core"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// LastRecordingName is overwritten by every finished capture.
	LastRecordingName = "LastABRecording"
	// PermanentPrefix prefixes numbered recordings that are never overwritten.
	PermanentPrefix = "ABRecording"

	formatVersion = 1
)

// RecordingJSON is the stored document of one recording.
type RecordingJSON struct {
	Version  int           `json:"version"`
	Trackers []TrackerJSON `json:"trackers"`
}

// TrackerJSON holds the frames of one tracker.
type TrackerJSON struct {
	Name   string      `json:"name"`
	Frames []FrameJSON `json:"frames"`
}

// FrameJSON stores only the fields a frame carries. Quaternions are w, x, y, z.
type FrameJSON struct {
	TrackerPosition string       `json:"trackerPosition,omitempty"`
	Rotation        *[4]float64 `json:"rotation,omitempty"`
	RawRotation     *[4]float64 `json:"rawRotation,omitempty"`
	Position        *[3]float64 `json:"position,omitempty"`
	Acceleration    *[3]float64 `json:"acceleration,omitempty"`
}

func quatToArray(q quat.Number) *[4]float64 {
	return &[4]float64{q.Real, q.Imag, q.Jmag, q.Kmag}
}

func arrayToQuat(a *[4]float64) *quat.Number {
	q := core.NewQuat(a[0], a[1], a[2], a[3])
	return &q
}

func vecToArray(v r3.Vec) *[3]float64 {
	return &[3]float64{v.X, v.Y, v.Z}
}

func arrayToVec(a *[3]float64) *r3.Vec {
	return &r3.Vec{X: a[0], Y: a[1], Z: a[2]}
}

// Encode converts frames to their document form.
func Encode(frames *core.PoseFrames) RecordingJSON {
	doc := RecordingJSON{Version: formatVersion, Trackers: []TrackerJSON{}}
	for _, tf := range frames.Trackers() {
		tj := TrackerJSON{Name: tf.Name, Frames: make([]FrameJSON, 0, tf.Len())}
		for _, f := range tf.Frames() {
			var fj FrameJSON
			if p, ok := f.TrackerPosition(); ok {
				fj.TrackerPosition = p.Designation()
			}
			if f.Flags().Has(core.FlagRotation) {
				r, _ := f.Rotation()
				fj.Rotation = quatToArray(r)
			}
			if f.Flags().Has(core.FlagRawRotation) {
				r, _ := f.RawRotation()
				fj.RawRotation = quatToArray(r)
			}
			if p, ok := f.Position(); ok {
				fj.Position = vecToArray(p)
			}
			if a, ok := f.Acceleration(); ok {
				fj.Acceleration = vecToArray(a)
			}
			tj.Frames = append(tj.Frames, fj)
		}
		doc.Trackers = append(doc.Trackers, tj)
	}
	return doc
}

// Decode rebuilds frames from a document.
func Decode(doc RecordingJSON) (*core.PoseFrames, error) {
	if doc.Version > formatVersion {
		return nil, fmt.Errorf("unsupported recording version %d", doc.Version)
	}
	pf := core.NewPoseFrames()
	for ti, tj := range doc.Trackers {
		tf := core.NewTrackerFrames(tj.Name)
		for fi, fj := range tj.Frames {
			var d core.FrameData
			if fj.TrackerPosition != "" {
				p, ok := core.TrackerPositionByDesignation(fj.TrackerPosition)
				if !ok {
					return nil, fmt.Errorf("tracker %d frame %d: unknown tracker position %q", ti, fi, fj.TrackerPosition)
				}
				d.TrackerPosition = &p
			}
			if fj.Rotation != nil {
				d.Rotation = arrayToQuat(fj.Rotation)
			}
			if fj.RawRotation != nil {
				d.RawRotation = arrayToQuat(fj.RawRotation)
			}
			if fj.Position != nil {
				d.Position = arrayToVec(fj.Position)
			}
			if fj.Acceleration != nil {
				d.Acceleration = arrayToVec(fj.Acceleration)
			}
			f, err := core.NewTrackerFrame(d)
			if err != nil {
				return nil, fmt.Errorf("tracker %d frame %d: %w", ti, fi, err)
			}
			tf.Add(f)
		}
		pf.AddTracker(tf)
	}
	return pf, nil
}

// PermanentIndex parses the number of a permanent recording name.
func PermanentIndex(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, PermanentPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// NextPermanentName returns the first unused ABRecording<n> name above
// every existing one.
func NextPermanentName(existing []string) string {
	next := 1
	for _, name := range existing {
		if n, ok := PermanentIndex(name); ok && n >= next {
			next = n + 1
		}
	}
	return PermanentPrefix + strconv.Itoa(next)
}

// SortRecordings orders recordings by name for deterministic processing.
// Permanent recordings sort by number so ABRecording2 precedes ABRecording10.
func SortRecordings(recs []core.Recording) {
	sort.SliceStable(recs, func(i, j int) bool {
		ni, iok := PermanentIndex(recs[i].Name)
		nj, jok := PermanentIndex(recs[j].Name)
		if iok && jok && ni != nj {
			return ni < nj
		}
		return recs[i].Name < recs[j].Name
	})
}
