// Package lifecycle models the donation custody chain as an ordered state
// machine. A donation advances monotonically through six milestones; the
// current stage is derived from the most advanced milestone reached, so a
// milestone record is valid only if no later flag is set without all earlier
// ones.
package lifecycle

import "fmt"

// Stage is the discrete position of a donation in the custody chain.
// The ordinal doubles as the progress step index (0-5).
type Stage int

const (
	StagePendingBatch Stage = iota
	StageBatched
	StageInReserve
	StageAllocated
	StageLockedForOrgs
	StageReleasedToOrgs
)

var stageLabels = [...]string{
	StagePendingBatch:   "Pending Batch",
	StageBatched:        "Batched in Escrow",
	StageInReserve:      "In Reserve",
	StageAllocated:      "Allocated to Disaster",
	StageLockedForOrgs:  "Locked for Organizations",
	StageReleasedToOrgs: "Released to Organizations",
}

// Label returns the display name for a stage.
func (s Stage) Label() string {
	if s < StagePendingBatch || s > StageReleasedToOrgs {
		return "Unknown"
	}
	return stageLabels[s]
}

// Step returns the ordinal step index for progress rendering.
func (s Stage) Step() int { return int(s) }

// Milestones is the wire shape of the gateway's lifecycle record: six
// booleans that must be set in order. Prefer constructing via
// Stage.Milestones; validate untrusted records with Validate before storing.
type Milestones struct {
	Received            bool `json:"received"`
	Batched             bool `json:"batched"`
	ReleasedToReserve   bool `json:"released_to_reserve"`
	AllocatedToDisaster bool `json:"allocated_to_disaster"`
	SentToOrgs          bool `json:"sent_to_orgs"`
	ReleasedToOrgs      bool `json:"released_to_orgs"`
}

// flags returns the milestones in lifecycle order.
func (m Milestones) flags() [6]bool {
	return [6]bool{
		m.Received,
		m.Batched,
		m.ReleasedToReserve,
		m.AllocatedToDisaster,
		m.SentToOrgs,
		m.ReleasedToOrgs,
	}
}

var flagNames = [6]string{
	"received",
	"batched",
	"released_to_reserve",
	"allocated_to_disaster",
	"sent_to_orgs",
	"released_to_orgs",
}

// StageOf derives the current stage by scanning milestones from most
// advanced to least. A zero-value record maps to StagePendingBatch; missing
// milestone data is never an error for readers.
func StageOf(m Milestones) Stage {
	flags := m.flags()
	for i := len(flags) - 1; i >= 1; i-- {
		if flags[i] {
			return Stage(i)
		}
	}
	return StagePendingBatch
}

// Validate rejects non-monotonic records: a later milestone set while an
// earlier one is unset means a stage was skipped. Writers must call this
// before persisting; readers can then trust StageOf unconditionally.
func (m Milestones) Validate() error {
	flags := m.flags()
	seenUnset := -1
	for i, set := range flags {
		if !set {
			if seenUnset == -1 {
				seenUnset = i
			}
			continue
		}
		if seenUnset != -1 {
			return fmt.Errorf("milestone %q set while %q is not", flagNames[i], flagNames[seenUnset])
		}
	}
	return nil
}

// Milestones returns the canonical flag record for a stage, making illegal
// non-monotonic states unrepresentable when built from the enum.
func (s Stage) Milestones() Milestones {
	var m Milestones
	flags := [6]*bool{
		&m.Received,
		&m.Batched,
		&m.ReleasedToReserve,
		&m.AllocatedToDisaster,
		&m.SentToOrgs,
		&m.ReleasedToOrgs,
	}
	for i := 0; i <= int(s) && i < len(flags); i++ {
		*flags[i] = true
	}
	return m
}
