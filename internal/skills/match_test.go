package skills

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-tailor/internal/llm"
	"github.com/jonathan/cv-tailor/internal/types"
)

// fakeMatchClient returns canned matches and records call order
type fakeMatchClient struct {
	mu       sync.Mutex
	calls    []time.Time
	requests []llm.Request
	matches  []types.SkillMatch
}

func (f *fakeMatchClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, time.Now())
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	payload, _ := json.Marshal(map[string]any{"matches": f.matches})
	return &llm.Response{Content: string(payload), Model: "fake", Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 5}}, nil
}

func (f *fakeMatchClient) Model(llm.Feature) string { return "fake" }
func (f *fakeMatchClient) Close() error             { return nil }

func TestMatchCategoryEmptyPrepared(t *testing.T) {
	fake := &fakeMatchClient{}
	matcher := NewMatcher(fake, time.Millisecond, zerolog.Nop())

	result, err := matcher.MatchCategory(context.Background(), types.CategoryTools, Prepared{}, types.JobSkillCategory{}, Languages{})
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
	// no inference call for an empty category
	assert.Empty(t, fake.calls)
}

func TestMatchCategorySendsOnlyNames(t *testing.T) {
	fake := &fakeMatchClient{matches: []types.SkillMatch{
		{CVSkill: "Go", OfferSkill: "Golang", Score: 90, AdaptedName: "Go"},
	}}
	matcher := NewMatcher(fake, time.Millisecond, zerolog.Nop())

	prepared := Separate([]types.SkillItem{{Name: "Go", Proficiency: intPtr(95)}}, types.CategoryHardSkills, zerolog.Nop())
	offer := types.JobSkillCategory{Required: []string{"Golang"}, NiceToHave: []string{"Rust"}}

	result, err := matcher.MatchCategory(context.Background(), types.CategoryHardSkills, prepared, offer, Languages{CV: "fr", Job: "en", Interface: "fr"})
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, 10, result.Usage.PromptTokens)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, llm.FeatureSkills, req.Feature)
	require.NotNil(t, req.Schema)
	// proficiency never leaves the process
	assert.NotContains(t, req.User, "95")
	assert.Contains(t, req.User, "Go")
	assert.Contains(t, req.User, "Rust")
}

func TestMatchCategoryDropsInventedSkills(t *testing.T) {
	fake := &fakeMatchClient{matches: []types.SkillMatch{
		{CVSkill: "Go", OfferSkill: "Golang", Score: 90},
		{CVSkill: "Fabricated", OfferSkill: "Anything", Score: 99},
	}}
	matcher := NewMatcher(fake, time.Millisecond, zerolog.Nop())
	prepared := Separate([]types.SkillItem{{Name: "Go"}}, types.CategoryHardSkills, zerolog.Nop())

	result, err := matcher.MatchCategory(context.Background(), types.CategoryHardSkills, prepared, types.JobSkillCategory{}, Languages{})
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "Go", result.Matches[0].CVSkill)
}

func TestMatchAllMethodologiesFirst(t *testing.T) {
	fake := &fakeMatchClient{}
	matcher := NewMatcher(fake, time.Millisecond, zerolog.Nop())

	section := &types.SkillsSection{
		HardSkills:    []types.SkillItem{{Name: "Go"}},
		SoftSkills:    []types.SkillItem{{Name: "Leadership"}},
		Tools:         []types.SkillItem{{Name: "Docker"}},
		Methodologies: []types.SkillItem{{Name: "Scrum"}},
	}
	preparedAll := PrepareAll(section, zerolog.Nop())

	results, err := matcher.MatchAll(context.Background(), preparedAll, &types.JobSkills{}, Languages{})
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, category := range types.SkillCategories {
		assert.Contains(t, results, category)
	}

	// the methodologies call completes before any other is dispatched
	require.Len(t, fake.requests, 4)
	assert.Contains(t, fake.requests[0].User, "Methodologies")
}
