package diffreview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-tailor/internal/types"
)

func doc(mutate func(*types.ResumeDocument)) *types.ResumeDocument {
	d := &types.ResumeDocument{
		Header:  types.Header{FullName: "Ada", Title: "Développeuse"},
		Summary: "Développeuse backend.",
		Skills: types.SkillsSection{
			HardSkills: []types.SkillItem{{Name: "Go"}, {Name: "PostgreSQL"}},
			SoftSkills: []types.SkillItem{{Name: "Communication"}},
		},
		Experience: []types.Experience{
			{Title: "Backend Engineer", Company: "Acme", StartDate: "2020-01"},
			{Title: "Side Tinkerer", Company: "Self", StartDate: "2019-01"},
		},
		Languages: []types.LanguageEntry{
			{Name: "Français", Proficiency: "Natif"},
			{Name: "Anglais", Proficiency: "B2"},
		},
		Extras: []types.Extra{{Title: "Certification AWS"}},
	}
	if mutate != nil {
		mutate(d)
	}
	return d
}

func findChange(t *testing.T, changes []types.Change, section string, typ types.ChangeType) types.Change {
	t.Helper()
	for _, c := range changes {
		if c.Section == section && c.Type == typ {
			return c
		}
	}
	t.Fatalf("no %s change in section %s", typ, section)
	return types.Change{}
}

func TestDiff_IdenticalDocuments(t *testing.T) {
	assert.Empty(t, Diff(doc(nil), doc(nil)))
}

func TestDiff_SummaryAndTitle(t *testing.T) {
	adapted := doc(func(d *types.ResumeDocument) {
		d.Summary = "Développeuse backend spécialisée Go."
		d.Header.Title = "Ingénieure Plateforme"
	})

	changes := Diff(adapted, doc(nil))

	summary := findChange(t, changes, "summary", types.ChangeModified)
	assert.Equal(t, "Développeuse backend.", summary.Before)

	title := findChange(t, changes, "header", types.ChangeModified)
	assert.Equal(t, "Ingénieure Plateforme", title.After)
}

func TestDiff_SkillAddedAndRemoved(t *testing.T) {
	adapted := doc(func(d *types.ResumeDocument) {
		d.Skills.HardSkills = []types.SkillItem{{Name: "Go"}, {Name: "Kubernetes"}}
	})

	changes := Diff(adapted, doc(nil))

	added := findChange(t, changes, "skills", types.ChangeAdded)
	assert.Equal(t, "Kubernetes", added.ItemName)
	assert.Equal(t, types.CategoryHardSkills, added.Field)

	removed := findChange(t, changes, "skills", types.ChangeRemoved)
	assert.Equal(t, "PostgreSQL", removed.ItemName)
}

func TestDiff_ExperienceRemoved(t *testing.T) {
	adapted := doc(func(d *types.ResumeDocument) {
		d.Experience = d.Experience[:1]
	})

	changes := Diff(adapted, doc(nil))

	removed := findChange(t, changes, "experience", types.ChangeRemoved)
	assert.Equal(t, "Side Tinkerer", removed.ItemName)
	require.NotNil(t, removed.ExperienceIndex)
	assert.Equal(t, 1, *removed.ExperienceIndex)
}

func TestDiff_ExperienceMovedToProjects(t *testing.T) {
	adapted := doc(func(d *types.ResumeDocument) {
		d.Experience = d.Experience[:1]
		d.Projects = []types.Project{{
			Name:      "Side Project",
			MovedFrom: &types.MovedExperience{Title: "Side Tinkerer", Company: "Self", Index: 1},
		}}
	})

	changes := Diff(adapted, doc(nil))

	moved := findChange(t, changes, "experience", types.ChangeMoved)
	assert.Equal(t, "Side Project", moved.After)

	// The move covers both the missing experience and the new project.
	for _, c := range changes {
		assert.NotEqual(t, types.ChangeRemoved, c.Type, "unexpected removed change: %+v", c)
		assert.NotEqual(t, types.ChangeAdded, c.Type, "unexpected added change: %+v", c)
	}
}

func TestDiff_ExperienceRetitledMatchesByCompanyAndDate(t *testing.T) {
	adapted := doc(func(d *types.ResumeDocument) {
		d.Experience[0].Title = "Senior Backend Engineer"
	})

	changes := Diff(adapted, doc(nil))
	for _, c := range changes {
		assert.NotEqual(t, "experience", c.Section, "retitled experience must not look removed: %+v", c)
	}
}

func TestDiff_LanguageLevelAdjusted(t *testing.T) {
	adapted := doc(func(d *types.ResumeDocument) {
		d.Languages[1].Proficiency = "C1"
	})

	changes := Diff(adapted, doc(nil))

	modified := findChange(t, changes, "languages", types.ChangeModified)
	assert.Equal(t, "Anglais", modified.ItemName)
	assert.Equal(t, "B2", modified.Before)
	assert.Equal(t, "C1", modified.After)
}

func TestWordOverlap(t *testing.T) {
	sim := WordOverlap{}

	assert.True(t, sim.LikelyTranslation("Project Management", "Gestion de projet"))
	assert.True(t, sim.LikelyTranslation("gestion de projet", "project management"))
	assert.True(t, sim.LikelyTranslation("Communication skills", "Communication"))
	assert.False(t, sim.LikelyTranslation("Go", "Go"))
	assert.False(t, sim.LikelyTranslation("Go", "Rust"))
	assert.False(t, sim.LikelyTranslation("", "anything"))
	assert.False(t, sim.LikelyTranslation(
		"a very long sentence that is clearly not a skill name",
		"une autre phrase assez longue",
	))
}

func TestMerge_DropsDetectedDuplicates(t *testing.T) {
	reported := []types.Change{
		{Section: "skills", Field: types.CategoryHardSkills, ItemName: "PostgreSQL", Type: types.ChangeRemoved, Before: "PostgreSQL"},
	}
	detected := []types.Change{
		{Section: "skills", Field: types.CategoryHardSkills, ItemName: "PostgreSQL", Type: types.ChangeRemoved, Before: "PostgreSQL"},
	}

	merged := Merge(reported, detected, WordOverlap{})
	assert.Len(t, merged, 1)
}

func TestMerge_DropsDiffEchoOfRename(t *testing.T) {
	// The inference renamed Reactjs to React. The diff sees Reactjs as
	// removed and React as added. Neither echo survives the merge.
	reported := []types.Change{
		{Section: "skills", Field: types.CategoryHardSkills, ItemName: "React", Type: types.ChangeModified, Before: "Reactjs", After: "React"},
	}
	detected := []types.Change{
		{Section: "skills", Field: types.CategoryHardSkills, ItemName: "Reactjs", Type: types.ChangeRemoved, Before: "Reactjs"},
	}

	merged := Merge(reported, detected, WordOverlap{})
	require.Len(t, merged, 1)
	assert.Equal(t, types.ChangeModified, merged[0].Type)
}

func TestMerge_TranslationPairCollapses(t *testing.T) {
	detected := []types.Change{
		{Section: "skills", Field: types.CategorySoftSkills, ItemName: "Team player", Type: types.ChangeRemoved, Before: "Team player"},
		{Section: "skills", Field: types.CategorySoftSkills, ItemName: "Esprit d'equipe", Type: types.ChangeAdded, After: "Esprit d'equipe", Reason: "Traduction"},
	}

	merged := Merge(nil, detected, WordOverlap{})
	require.Len(t, merged, 1)
	assert.Equal(t, types.ChangeTranslated, merged[0].Type)
	assert.Equal(t, "Team player", merged[0].Before)
	assert.Equal(t, "Esprit d'equipe", merged[0].After)
	assert.Equal(t, "Traduction", merged[0].Reason)
}

func TestMerge_UnrelatedPairStaysSeparate(t *testing.T) {
	detected := []types.Change{
		{Section: "skills", Field: types.CategoryHardSkills, ItemName: "Cobol", Type: types.ChangeRemoved, Before: "Cobol"},
		{Section: "skills", Field: types.CategoryHardSkills, ItemName: "Kubernetes", Type: types.ChangeAdded, After: "Kubernetes"},
	}

	merged := Merge(nil, detected, WordOverlap{})
	assert.Len(t, merged, 2)
}

func TestMerge_DifferentSectionsNeverPair(t *testing.T) {
	detected := []types.Change{
		{Section: "skills", Field: types.CategorySoftSkills, ItemName: "Team player", Type: types.ChangeRemoved},
		{Section: "extras", Field: "extras", ItemName: "Esprit d'equipe", Type: types.ChangeAdded},
	}

	merged := Merge(nil, detected, WordOverlap{})
	assert.Len(t, merged, 2)
}
