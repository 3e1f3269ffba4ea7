package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/cv-tailor/internal/language"
	"github.com/jonathan/cv-tailor/internal/llm"
	"github.com/jonathan/cv-tailor/internal/prompts"
	"github.com/jonathan/cv-tailor/internal/retry"
	"github.com/jonathan/cv-tailor/internal/types"
)

// categoryDisplayNames label categories inside the matching prompt
var categoryDisplayNames = map[string]string{
	types.CategoryHardSkills:    "Hard Skills (Competences techniques)",
	types.CategorySoftSkills:    "Soft Skills (Competences comportementales)",
	types.CategoryTools:         "Outils et Technologies",
	types.CategoryMethodologies: "Methodologies et Frameworks",
}

// elemTypeNames name the element kind inside the system prompt
var elemTypeNames = map[string]string{
	types.CategoryHardSkills:    "compétences techniques",
	types.CategorySoftSkills:    "compétences humaines",
	types.CategoryTools:         "outils",
	types.CategoryMethodologies: "méthodologies",
}

// CategoryMatch is the raw matching outcome for one category
type CategoryMatch struct {
	Category string
	Matches  []types.SkillMatch
	Usage    llm.Usage
	Model    string
	Duration time.Duration
}

// Languages carries the language context of one matching run
type Languages struct {
	CV        string
	Job       string
	Interface string
}

// Matcher issues the per-category matching calls
type Matcher struct {
	client  llm.Client
	log     zerolog.Logger
	stagger time.Duration
}

// NewMatcher creates a matcher. Categories after the first are
// dispatched stagger apart; zero keeps the 500ms default.
func NewMatcher(client llm.Client, stagger time.Duration, log zerolog.Logger) *Matcher {
	if stagger <= 0 {
		stagger = 500 * time.Millisecond
	}
	return &Matcher{
		client:  client,
		stagger: stagger,
		log:     log.With().Str("component", "skills").Logger(),
	}
}

// MatchCategory matches one category's atoms against the posting's
// skills for that category. Only atom names are sent; proficiency stays
// local. Matches naming a skill absent from the sent list are dropped.
func (m *Matcher) MatchCategory(ctx context.Context, category string, prepared Prepared, offerSkills types.JobSkillCategory, langs Languages) (*CategoryMatch, error) {
	if len(prepared.Items) == 0 {
		return &CategoryMatch{Category: category}, nil
	}

	cvItems, err := json.Marshal(prepared.Names())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cv items: %w", err)
	}
	jobItems, err := json.Marshal(offerSkills.All())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job items: %w", err)
	}

	system := prompts.Format(prompts.MustGet("adaptation.json", "skills_category_system"), map[string]string{
		"ElemType":          elemTypeNames[category],
		"CVLanguage":        language.Name(langs.CV),
		"JobLanguage":       language.Name(langs.Job),
		"InterfaceLanguage": language.Name(langs.Interface),
	})
	user := prompts.Format(prompts.MustGet("adaptation.json", "skills_category_user"), map[string]string{
		"CategoryDisplayName": categoryDisplayNames[category],
		"CVItemsJSON":         string(cvItems),
		"JobItemsJSON":        string(jobItems),
		"SkillCount":          strconv.Itoa(len(prepared.Items)),
	})

	start := time.Now()
	resp, err := m.client.Complete(ctx, llm.Request{
		Feature:     llm.FeatureSkills,
		System:      system,
		User:        user,
		Schema:      llm.NewSchema("skills_match", prompts.MustSchema("skills_match")),
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("skills matching failed for %s: %w", category, err)
	}
	if ctx.Err() != nil {
		return nil, retry.ErrCancelled
	}

	var parsed struct {
		Matches []types.SkillMatch `json:"matches"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse matches for %s: %w", category, err)
	}

	result := &CategoryMatch{
		Category: category,
		Matches:  m.validateMatches(category, parsed.Matches, prepared),
		Usage:    resp.Usage,
		Model:    resp.Model,
		Duration: time.Since(start),
	}
	return result, nil
}

// validateMatches drops matches whose cv_skill was never sent
func (m *Matcher) validateMatches(category string, matches []types.SkillMatch, prepared Prepared) []types.SkillMatch {
	known := prepared.nameToIndex()
	valid := matches[:0]
	for _, match := range matches {
		if _, ok := known[strings.ToLower(strings.TrimSpace(match.CVSkill))]; !ok {
			m.log.Warn().Str("category", category).Str("cv_skill", match.CVSkill).Msg("match for unknown skill dropped")
			continue
		}
		valid = append(valid, match)
	}
	return valid
}

// MatchAll runs the four categories. Methodologies goes first, alone,
// so the provider's prompt cache warms on the shared posting context;
// the other three are then launched staggered, mutually unordered.
func (m *Matcher) MatchAll(ctx context.Context, preparedAll map[string]Prepared, offerSkills *types.JobSkills, langs Languages) (map[string]*CategoryMatch, error) {
	results := make(map[string]*CategoryMatch, len(types.SkillCategories))
	var mu sync.Mutex

	first, err := m.MatchCategory(ctx, types.CategoryMethodologies, preparedAll[types.CategoryMethodologies], offerSkills.Category(types.CategoryMethodologies), langs)
	if err != nil {
		return nil, err
	}
	results[types.CategoryMethodologies] = first

	group, groupCtx := errgroup.WithContext(ctx)
	rest := []string{types.CategoryHardSkills, types.CategorySoftSkills, types.CategoryTools}
	for i, category := range rest {
		delay := time.Duration(i) * m.stagger
		group.Go(func() error {
			if delay > 0 {
				select {
				case <-groupCtx.Done():
					return groupCtx.Err()
				case <-time.After(delay):
				}
			}
			result, err := m.MatchCategory(groupCtx, category, preparedAll[category], offerSkills.Category(category), langs)
			if err != nil {
				return err
			}
			mu.Lock()
			results[category] = result
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
