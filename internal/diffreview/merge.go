package diffreview

import (
	"strings"

	"github.com/jonathan/cv-tailor/internal/types"
)

// skillFields are the fields whose modified entries rename an item: the old
// name shows up in a programmatic diff as removed even though it was not.
var skillFields = map[string]bool{
	types.CategoryHardSkills:    true,
	types.CategorySoftSkills:    true,
	types.CategoryTools:         true,
	types.CategoryMethodologies: true,
}

// Merge combines inference-reported changes with diff-detected ones into a
// single ledger. Detected entries already covered by a reported change are
// dropped, and leftover removed+added pairs that the similarity strategy
// recognizes as the same concept in two languages collapse into one
// translated entry.
func Merge(reported, detected []types.Change, sim Similarity) []types.Change {
	if sim == nil {
		sim = WordOverlap{}
	}

	reportedKeys := make(map[string]bool, len(reported))
	// Old names of renamed skills: the diff sees them as removed.
	renamedFrom := make(map[string]bool)
	// Original names of skills the inference already reported removed.
	removedFrom := make(map[string]bool)

	for _, c := range reported {
		reportedKeys[strings.ToLower(c.DedupKey())] = true
		if !skillFields[c.Field] {
			continue
		}
		switch c.Type {
		case types.ChangeModified, types.ChangeTranslated:
			if c.Before != "" {
				renamedFrom[strings.ToLower(locationKey(c, c.Before))] = true
			}
		case types.ChangeRemoved:
			if c.Before != "" {
				removedFrom[strings.ToLower(locationKey(c, c.Before))] = true
			}
		}
	}

	merged := make([]types.Change, 0, len(reported)+len(detected))
	merged = append(merged, reported...)

	for _, c := range detected {
		if reportedKeys[strings.ToLower(c.DedupKey())] {
			continue
		}
		if c.Type == types.ChangeRemoved {
			key := strings.ToLower(locationKey(c, c.ItemName))
			if renamedFrom[key] || removedFrom[key] {
				continue
			}
		}
		merged = append(merged, c)
	}

	return mergeTranslationPairs(merged, sim)
}

// locationKey identifies an item slot the way DedupKey does, but with an
// explicit name so a change can be keyed by its before-value.
func locationKey(c types.Change, name string) string {
	probe := types.Change{
		Section:         c.Section,
		Field:           c.Field,
		ItemName:        name,
		ExperienceIndex: c.ExperienceIndex,
	}
	return probe.DedupKey()
}

// mergeTranslationPairs collapses a removed and an added entry in the same
// slot into one translated entry when their names are likely translations
// of each other. Unpaired entries pass through unchanged, in order.
func mergeTranslationPairs(changes []types.Change, sim Similarity) []types.Change {
	usedRemoved := make(map[int]bool)
	usedAdded := make(map[int]bool)
	translated := make(map[int]types.Change)

	for ai, added := range changes {
		if added.Type != types.ChangeAdded {
			continue
		}
		for ri, removed := range changes {
			if removed.Type != types.ChangeRemoved || usedRemoved[ri] {
				continue
			}
			if removed.Section != added.Section || removed.Field != added.Field {
				continue
			}
			if !sameIndex(removed.ExperienceIndex, added.ExperienceIndex) {
				continue
			}
			if !sim.LikelyTranslation(removed.ItemName, added.ItemName) {
				continue
			}

			reason := added.Reason
			if reason == "" {
				reason = removed.Reason
			}
			translated[ri] = types.Change{
				Section:         added.Section,
				Field:           added.Field,
				ItemName:        added.ItemName,
				ExperienceIndex: added.ExperienceIndex,
				Type:            types.ChangeTranslated,
				Before:          removed.ItemName,
				After:           added.ItemName,
				Reason:          reason,
			}
			usedRemoved[ri] = true
			usedAdded[ai] = true
			break
		}
	}

	out := make([]types.Change, 0, len(changes))
	for i, c := range changes {
		if merged, ok := translated[i]; ok {
			out = append(out, merged)
			continue
		}
		if usedAdded[i] || usedRemoved[i] {
			continue
		}
		out = append(out, c)
	}
	return out
}

func sameIndex(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
