// Package types provides type definitions for structured data used throughout the cv-tailor system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"strings"
)

// ChangeType classifies one entry in the reviewable change ledger
type ChangeType string

// Change types
const (
	ChangeModified   ChangeType = "modified"
	ChangeAdded      ChangeType = "added"
	ChangeRemoved    ChangeType = "removed"
	ChangeTranslated ChangeType = "translated"
	ChangeMoved      ChangeType = "moved"
)

// Change is one reviewable difference between the source document and
// the adapted document. Inference-reported modifications and
// diff-detected additions/removals share this shape.
type Change struct {
	Section         string     `json:"section"`
	Field           string     `json:"field,omitempty"`
	ItemName        string     `json:"item_name,omitempty"`
	ExperienceIndex *int       `json:"experience_index,omitempty"`
	Type            ChangeType `json:"type"`
	Before          string     `json:"before,omitempty"`
	After           string     `json:"after,omitempty"`
	Reason          string     `json:"reason,omitempty"`
}

// DedupKey identifies a change's location so duplicates reported by
// both the inference service and the diff can be collapsed
func (c Change) DedupKey() string {
	idx := ""
	if c.ExperienceIndex != nil {
		idx = fmt.Sprintf("%d", *c.ExperienceIndex)
	}
	return strings.Join([]string{c.Section, c.Field, c.ItemName, idx}, "|")
}
