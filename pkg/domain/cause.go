package domain

import "fmt"

// CauseType is the fixed cause category an organization serves.
type CauseType string

const (
	CauseHealth    CauseType = "health"
	CauseShelter   CauseType = "shelter"
	CauseFood      CauseType = "food"
	CauseEducation CauseType = "education"
	CauseWater     CauseType = "water"
)

var validCauses = map[CauseType]struct{}{
	CauseHealth:    {},
	CauseShelter:   {},
	CauseFood:      {},
	CauseEducation: {},
	CauseWater:     {},
}

// ParseCauseType validates a cause category against the fixed set.
func ParseCauseType(s string) (CauseType, error) {
	c := CauseType(s)
	if _, ok := validCauses[c]; !ok {
		return "", fmt.Errorf("unknown cause type: %q", s)
	}
	return c, nil
}

// ParseCauseTypes validates a list of cause categories, rejecting an empty
// list — a trigger request must name at least one affected cause.
func ParseCauseTypes(in []string) ([]CauseType, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("at least one cause type is required")
	}
	out := make([]CauseType, 0, len(in))
	for _, s := range in {
		c, err := ParseCauseType(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (c CauseType) String() string { return string(c) }
