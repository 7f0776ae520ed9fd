// pkg/core/tracker.go
package core

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// TrackerPosition is the body location a tracker is mounted on.
type TrackerPosition int

const (
	TrackerPositionNone TrackerPosition = iota
	TrackerPositionHead
	TrackerPositionNeck
	TrackerPositionUpperChest
	TrackerPositionChest
	TrackerPositionWaist
	TrackerPositionHip
	TrackerPositionLeftUpperLeg
	TrackerPositionRightUpperLeg
	TrackerPositionLeftLowerLeg
	TrackerPositionRightLowerLeg
	TrackerPositionLeftFoot
	TrackerPositionRightFoot
)

var trackerPositionDesignations = map[TrackerPosition]string{
	TrackerPositionHead:          "body:head",
	TrackerPositionNeck:          "body:neck",
	TrackerPositionUpperChest:    "body:upper_chest",
	TrackerPositionChest:         "body:chest",
	TrackerPositionWaist:         "body:waist",
	TrackerPositionHip:           "body:hip",
	TrackerPositionLeftUpperLeg:  "body:left_upper_leg",
	TrackerPositionRightUpperLeg: "body:right_upper_leg",
	TrackerPositionLeftLowerLeg:  "body:left_lower_leg",
	TrackerPositionRightLowerLeg: "body:right_lower_leg",
	TrackerPositionLeftFoot:      "body:left_foot",
	TrackerPositionRightFoot:     "body:right_foot",
}

// Designation returns the stable string key used in recordings and logs.
func (p TrackerPosition) Designation() string {
	if d, ok := trackerPositionDesignations[p]; ok {
		return d
	}
	return "unassigned"
}

func (p TrackerPosition) String() string {
	return p.Designation()
}

// TrackerPositionByDesignation is the inverse of Designation.
func TrackerPositionByDesignation(designation string) (TrackerPosition, bool) {
	for p, d := range trackerPositionDesignations {
		if d == designation {
			return p, true
		}
	}
	return TrackerPositionNone, false
}

// TrackerRole identifies a tracker the skeleton computes from its bones.
type TrackerRole int

const (
	TrackerRoleHead TrackerRole = iota
	TrackerRoleChest
	TrackerRoleHip
	TrackerRoleLeftKnee
	TrackerRoleRightKnee
	TrackerRoleLeftFoot
	TrackerRoleRightFoot
)

func (r TrackerRole) String() string {
	switch r {
	case TrackerRoleHead:
		return "HEAD"
	case TrackerRoleChest:
		return "CHEST"
	case TrackerRoleHip:
		return "HIP"
	case TrackerRoleLeftKnee:
		return "LEFT_KNEE"
	case TrackerRoleRightKnee:
		return "RIGHT_KNEE"
	case TrackerRoleLeftFoot:
		return "LEFT_FOOT"
	case TrackerRoleRightFoot:
		return "RIGHT_FOOT"
	default:
		return "UNKNOWN"
	}
}

// Tracker is the live state of one tracker. Players and the recorder both
// write to it; skeletons read from it.
type Tracker struct {
	Name     string
	Position TrackerPosition

	position     r3.Vec
	rotation     quat.Number
	acceleration r3.Vec

	hasPosition     bool
	hasRotation     bool
	hasAcceleration bool
}

// NewTracker creates a tracker with an identity rotation and no data.
func NewTracker(name string, position TrackerPosition) *Tracker {
	return &Tracker{
		Name:     name,
		Position: position,
		rotation: IdentityQuat,
	}
}

func (t *Tracker) SetPosition(v r3.Vec) {
	t.position = v
	t.hasPosition = true
}

func (t *Tracker) SetRotation(q quat.Number) {
	t.rotation = q
	t.hasRotation = true
}

func (t *Tracker) SetAcceleration(v r3.Vec) {
	t.acceleration = v
	t.hasAcceleration = true
}

func (t *Tracker) PositionVec() r3.Vec      { return t.position }
func (t *Tracker) Rotation() quat.Number    { return t.rotation }
func (t *Tracker) Acceleration() r3.Vec     { return t.acceleration }
func (t *Tracker) HasPosition() bool        { return t.hasPosition }
func (t *Tracker) HasRotation() bool        { return t.hasRotation }
func (t *Tracker) HasAcceleration() bool    { return t.hasAcceleration }
