// Package posestream plays a recording through a skeleton and writes the
// resulting bone poses to a Sink.
package posestream

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/trackfit/autobone/pkg/core"
)

// Sink receives the bone poses of a streamed recording.
type Sink interface {
	WriteHeader(bones []core.BoneType) error
	WriteFrame(frame int, poses map[core.BoneType]core.BoneState) error
	Close() error
}

var csvColumns = []string{
	"frame", "bone",
	"head_x", "head_y", "head_z",
	"tail_x", "tail_y", "tail_z",
	"rot_w", "rot_x", "rot_y", "rot_z",
}

// CSVSink writes one row per bone per frame.
type CSVSink struct {
	w      *csv.Writer
	closer io.Closer
	bones  []core.BoneType
}

// NewCSVSink writes to w. If w is an io.Closer it is closed with the sink.
func NewCSVSink(w io.Writer) *CSVSink {
	s := &CSVSink{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *CSVSink) WriteHeader(bones []core.BoneType) error {
	s.bones = bones
	return s.w.Write(csvColumns)
}

func (s *CSVSink) WriteFrame(frame int, poses map[core.BoneType]core.BoneState) error {
	if s.bones == nil {
		return fmt.Errorf("header not written")
	}
	for _, b := range s.bones {
		p, ok := poses[b]
		if !ok {
			continue
		}
		row := []string{
			strconv.Itoa(frame), b.String(),
			ff(p.Position.X), ff(p.Position.Y), ff(p.Position.Z),
			ff(p.Tail.X), ff(p.Tail.Y), ff(p.Tail.Z),
			ff(p.Rotation.Real), ff(p.Rotation.Imag), ff(p.Rotation.Jmag), ff(p.Rotation.Kmag),
		}
		if err := s.w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes buffered rows and closes the underlying writer.
func (s *CSVSink) Close() error {
	s.w.Flush()
	err := s.w.Error()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
