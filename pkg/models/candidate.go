package models

import (
	"fmt"
	"strings"
)

// Candidate is a logical FK proposal emitted by a detector. Detectors
// never persist candidates themselves; the detection pipeline
// corroborates overlapping candidates and upserts the survivors.
type Candidate struct {
	SourceTableID   int64
	SourceColumnIDs []int64
	TargetTableID   int64
	TargetColumnIDs []int64
	Method          DiscoveryMethod
	RawScore        float64
	Reason          string
}

// Key returns the identity tuple used to group candidates across
// detectors. Column order is significant.
func (c Candidate) Key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:", c.SourceTableID)
	for _, id := range c.SourceColumnIDs {
		fmt.Fprintf(&b, "%d,", id)
	}
	fmt.Fprintf(&b, ">%d:", c.TargetTableID)
	for _, id := range c.TargetColumnIDs {
		fmt.Fprintf(&b, "%d,", id)
	}
	return b.String()
}
