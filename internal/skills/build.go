package skills

import (
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jonathan/cv-tailor/internal/language"
	"github.com/jonathan/cv-tailor/internal/types"
)

// Score thresholds. The inference service only returns matches above
// the match threshold; everything absent is implicitly deleted. At or
// above the rename threshold the offer's own skill name is used,
// between the two the service-provided adapted name is used.
const (
	matchThreshold  = 60
	renameThreshold = 70
)

func sameName(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// DetermineAction decides the outcome for one matched atom. The service
// scores; the code decides.
func DetermineAction(match types.SkillMatch) types.SkillResult {
	result := types.SkillResult{
		OriginalName: match.CVSkill,
		Score:        match.Score,
		Reason:       match.Reason,
	}

	switch {
	case match.Score < matchThreshold || match.OfferSkill == "":
		result.Action = types.ActionDeleted
		result.Name = match.AdaptedName
		if result.Name == "" {
			result.Name = match.CVSkill
		}
	case match.Score >= renameThreshold:
		// strong match: take the offer's own name
		result.Name = match.OfferSkill
		if sameName(match.OfferSkill, match.CVSkill) {
			result.Action = types.ActionKept
		} else {
			result.Action = types.ActionRenamed
		}
	default:
		// moderate match: take the adapted (possibly translated) name
		result.Name = match.AdaptedName
		if sameName(match.AdaptedName, match.CVSkill) {
			result.Action = types.ActionKept
		} else {
			result.Action = types.ActionRenamed
		}
	}
	return result
}

// BuildCategoryResult folds one category's matches back onto the
// original skill list. Every atom starts as deleted; matches overlay
// that default; atoms are then regrouped by parent, the best outcome
// winning (renamed > kept > deleted, ties broken by score).
func BuildCategoryResult(matches []types.SkillMatch, prepared Prepared, hasProficiency bool, sourceItems []types.SkillItem, noMatchReason string, log zerolog.Logger) []types.SkillResult {
	if len(prepared.Items) == 0 {
		return nil
	}

	type parentGroup struct {
		name        string
		proficiency *int
		isSeparated bool
		items       []types.SkillResult
	}

	nameIndex := prepared.nameToIndex()
	byParent := make(map[int]*parentGroup)
	atomSlot := make(map[int]int) // atom index -> slot in its parent's items

	for idx, item := range prepared.Items {
		link, ok := prepared.LinkMap[idx]
		if !ok {
			continue
		}
		group := byParent[link.ParentIndex]
		if group == nil {
			var proficiency *int
			if link.ParentIndex < len(sourceItems) {
				proficiency = sourceItems[link.ParentIndex].Proficiency
			}
			group = &parentGroup{
				name:        link.ParentName,
				proficiency: proficiency,
				isSeparated: item.IsSeparated,
			}
			byParent[link.ParentIndex] = group
		}
		group.items = append(group.items, types.SkillResult{
			Name:         item.Name,
			OriginalName: item.Name,
			Action:       types.ActionDeleted,
			Score:        0,
			Reason:       noMatchReason,
		})
		atomSlot[idx] = len(group.items) - 1
	}

	for _, match := range matches {
		idx, ok := nameIndex[strings.ToLower(strings.TrimSpace(match.CVSkill))]
		if !ok {
			log.Warn().Str("cv_skill", match.CVSkill).Msg("match does not correspond to a prepared skill")
			continue
		}
		link := prepared.LinkMap[idx]
		group := byParent[link.ParentIndex]
		if group == nil {
			continue
		}
		group.items[atomSlot[idx]] = DetermineAction(match)
	}

	results := make([]types.SkillResult, 0, len(byParent))
	for parentIndex, group := range byParent {
		if len(group.items) == 0 {
			continue
		}

		best := group.items[0]
		for _, candidate := range group.items[1:] {
			if candidate.Action.Priority()*1000+candidate.Score > best.Action.Priority()*1000+best.Score {
				best = candidate
			}
		}

		result := types.SkillResult{
			Name:             best.Name,
			OriginalName:     group.name,
			Action:           best.Action,
			Score:            best.Score,
			Reason:           best.Reason,
			OriginalPosition: parentIndex,
		}
		if hasProficiency {
			result.Proficiency = group.proficiency
		}
		if group.isSeparated && len(group.items) > 1 {
			result.SeparatedFrom = group.name
		}
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].OriginalPosition < results[j].OriginalPosition
	})
	return results
}

// consolidate merges parents renamed to an identical final name into a
// single entry carrying full provenance, so the output never lists the
// same skill twice while rollback stays possible.
func consolidate(results []types.SkillResult, hasProficiency bool) []types.SkillResult {
	if len(results) == 0 {
		return results
	}

	byFinal := make(map[string][]int)
	for idx, result := range results {
		if result.Action == types.ActionRenamed && result.Name != "" {
			key := strings.ToLower(strings.TrimSpace(result.Name))
			byFinal[key] = append(byFinal[key], idx)
		}
	}

	consolidated := make(map[string]types.SkillResult)
	member := make(map[int]string)
	for key, indexes := range byFinal {
		if len(indexes) < 2 {
			continue
		}

		group := make([]types.SkillResult, len(indexes))
		for i, idx := range indexes {
			group[i] = results[idx]
			member[idx] = key
		}

		best := group[0]
		minPosition := group[0].OriginalPosition
		var profSum, profCount int
		provenance := make([]types.ConsolidatedSkill, len(group))
		for i, skill := range group {
			if skill.Score > best.Score {
				best = skill
			}
			if skill.OriginalPosition < minPosition {
				minPosition = skill.OriginalPosition
			}
			if skill.Proficiency != nil {
				profSum += *skill.Proficiency
				profCount++
			}
			provenance[i] = types.ConsolidatedSkill{
				OriginalName: skill.OriginalName,
				Score:        skill.Score,
				Reason:       skill.Reason,
				Proficiency:  skill.Proficiency,
			}
		}

		entry := types.SkillResult{
			Name:             best.Name,
			OriginalName:     group[0].OriginalName,
			Action:           types.ActionRenamed,
			Score:            best.Score,
			Reason:           best.Reason,
			OriginalPosition: minPosition,
			ConsolidatedFrom: provenance,
		}
		if hasProficiency && profCount > 0 {
			avg := int(math.Round(float64(profSum) / float64(profCount)))
			entry.Proficiency = &avg
		}
		consolidated[key] = entry
	}

	if len(consolidated) == 0 {
		return results
	}

	out := make([]types.SkillResult, 0, len(results))
	emitted := make(map[string]bool)
	for idx, result := range results {
		key, merged := member[idx]
		if !merged {
			out = append(out, result)
			continue
		}
		if !emitted[key] {
			out = append(out, consolidated[key])
			emitted[key] = true
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].OriginalPosition < out[j].OriginalPosition
	})
	return out
}

// BuildResult assembles the full skills output from the per-category
// matches, with deleted-by-default inversion and consolidation applied
// per category. noMatchLanguage localizes the reason recorded on
// unmatched skills.
func BuildResult(matches map[string]*CategoryMatch, preparedAll map[string]Prepared, source *types.SkillsSection, noMatchLanguage string, log zerolog.Logger) *types.AdaptedSkills {
	noMatchReason := language.NoMatchReason(noMatchLanguage)

	out := &types.AdaptedSkills{}
	for _, category := range types.SkillCategories {
		var categoryMatches []types.SkillMatch
		if match := matches[category]; match != nil {
			categoryMatches = match.Matches
		}
		hasProficiency := HasProficiency(category)
		result := BuildCategoryResult(categoryMatches, preparedAll[category], hasProficiency, source.Category(category), noMatchReason, log)
		out.SetCategory(category, consolidate(result, hasProficiency))
	}
	return out
}
