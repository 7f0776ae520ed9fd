// pkg/core/skeleton.go
package core

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// BoneType names a single bone of the body skeleton.
type BoneType int

const (
	BoneHead BoneType = iota
	BoneNeck
	BoneUpperChest
	BoneChest
	BoneWaist
	BoneHip
	BoneLeftHip
	BoneRightHip
	BoneLeftUpperLeg
	BoneRightUpperLeg
	BoneLeftLowerLeg
	BoneRightLowerLeg
)

var boneNames = [...]string{
	BoneHead:          "HEAD",
	BoneNeck:          "NECK",
	BoneUpperChest:    "UPPER_CHEST",
	BoneChest:         "CHEST",
	BoneWaist:         "WAIST",
	BoneHip:           "HIP",
	BoneLeftHip:       "LEFT_HIP",
	BoneRightHip:      "RIGHT_HIP",
	BoneLeftUpperLeg:  "LEFT_UPPER_LEG",
	BoneRightUpperLeg: "RIGHT_UPPER_LEG",
	BoneLeftLowerLeg:  "LEFT_LOWER_LEG",
	BoneRightLowerLeg: "RIGHT_LOWER_LEG",
}

func (b BoneType) String() string {
	if b < 0 || int(b) >= len(boneNames) {
		return "UNKNOWN"
	}
	return boneNames[b]
}

// AllBones lists every bone type in skeleton order.
var AllBones = []BoneType{
	BoneHead, BoneNeck, BoneUpperChest, BoneChest, BoneWaist, BoneHip,
	BoneLeftHip, BoneRightHip,
	BoneLeftUpperLeg, BoneRightUpperLeg,
	BoneLeftLowerLeg, BoneRightLowerLeg,
}

// SkeletonConfigOffset is a tunable bone length. Symmetric offsets drive a
// left and a right bone; AffectedBones lists left first.
type SkeletonConfigOffset int

const (
	OffsetHead SkeletonConfigOffset = iota
	OffsetNeck
	OffsetUpperChest
	OffsetChest
	OffsetWaist
	OffsetHip
	OffsetHipsWidth
	OffsetUpperLeg
	OffsetLowerLeg
)

type offsetInfo struct {
	name          string
	configKey     string
	defaultValue  float64
	affectedBones []BoneType
}

var offsetInfos = [...]offsetInfo{
	OffsetHead:       {"HEAD", "head", 0.10, []BoneType{BoneHead}},
	OffsetNeck:       {"NECK", "neck", 0.10, []BoneType{BoneNeck}},
	OffsetUpperChest: {"UPPER_CHEST", "upperChest", 0.16, []BoneType{BoneUpperChest}},
	OffsetChest:      {"CHEST", "chest", 0.16, []BoneType{BoneChest}},
	OffsetWaist:      {"WAIST", "waist", 0.20, []BoneType{BoneWaist}},
	OffsetHip:        {"HIP", "hip", 0.04, []BoneType{BoneHip}},
	OffsetHipsWidth:  {"HIPS_WIDTH", "hipsWidth", 0.26, []BoneType{BoneLeftHip, BoneRightHip}},
	OffsetUpperLeg:   {"UPPER_LEG", "upperLeg", 0.42, []BoneType{BoneLeftUpperLeg, BoneRightUpperLeg}},
	OffsetLowerLeg:   {"LOWER_LEG", "lowerLeg", 0.50, []BoneType{BoneLeftLowerLeg, BoneRightLowerLeg}},
}

// AllOffsets lists every offset in declaration order.
var AllOffsets = []SkeletonConfigOffset{
	OffsetHead, OffsetNeck, OffsetUpperChest, OffsetChest, OffsetWaist,
	OffsetHip, OffsetHipsWidth, OffsetUpperLeg, OffsetLowerLeg,
}

// HeightOffsets are the offsets whose sum gives the standing eye height.
var HeightOffsets = []SkeletonConfigOffset{
	OffsetNeck, OffsetUpperChest, OffsetChest, OffsetWaist, OffsetHip,
	OffsetUpperLeg, OffsetLowerLeg,
}

func (o SkeletonConfigOffset) valid() bool {
	return o >= 0 && int(o) < len(offsetInfos)
}

func (o SkeletonConfigOffset) String() string {
	if !o.valid() {
		return "UNKNOWN"
	}
	return offsetInfos[o].name
}

// ConfigKey is the key under which the offset is persisted.
func (o SkeletonConfigOffset) ConfigKey() string {
	if !o.valid() {
		return ""
	}
	return offsetInfos[o].configKey
}

// DefaultValue is the offset length in metres for an average adult.
func (o SkeletonConfigOffset) DefaultValue() float64 {
	if !o.valid() {
		return 0
	}
	return offsetInfos[o].defaultValue
}

func (o SkeletonConfigOffset) AffectedBones() []BoneType {
	if !o.valid() {
		return nil
	}
	return offsetInfos[o].affectedBones
}

// IsSymmetric reports whether the offset drives a left and a right bone.
func (o SkeletonConfigOffset) IsSymmetric() bool {
	return len(o.AffectedBones()) == 2
}

// OffsetByConfigKey is the inverse of ConfigKey.
func OffsetByConfigKey(key string) (SkeletonConfigOffset, bool) {
	for _, o := range AllOffsets {
		if o.ConfigKey() == key {
			return o, true
		}
	}
	return 0, false
}

// DefaultOffsets returns a fresh map of every offset at its default value.
func DefaultOffsets() map[SkeletonConfigOffset]float64 {
	out := make(map[SkeletonConfigOffset]float64, len(AllOffsets))
	for _, o := range AllOffsets {
		out[o] = o.DefaultValue()
	}
	return out
}

// Height sums the height offsets of a configuration.
func Height(offsets map[SkeletonConfigOffset]float64) float64 {
	var h float64
	for _, o := range HeightOffsets {
		h += offsets[o]
	}
	return h
}

// BoneState is the world-space pose of one bone after an update.
type BoneState struct {
	Position r3.Vec
	Tail     r3.Vec
	Rotation quat.Number
}

// LocalTail is the bone vector from its head to its tail.
func (b BoneState) LocalTail() r3.Vec {
	return r3.Sub(b.Tail, b.Position)
}
