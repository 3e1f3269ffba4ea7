package phases

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/cv-tailor/internal/diffreview"
	"github.com/jonathan/cv-tailor/internal/language"
	"github.com/jonathan/cv-tailor/internal/llm"
	"github.com/jonathan/cv-tailor/internal/prompts"
	"github.com/jonathan/cv-tailor/internal/retry"
	"github.com/jonathan/cv-tailor/internal/types"
)

// RecomposeOutcome identifies the persisted adapted document
type RecomposeOutcome struct {
	DocumentID   uuid.UUID `json:"document_id"`
	DocumentName string    `json:"document_name"`
	ChangeCount  int       `json:"change_count"`
}

// Recompose assembles the final document from the batch outputs,
// reconciles the change ledger against a programmatic diff of the two
// documents, and persists the document with two versions: 0 is the
// source snapshot the diff view renders against, 1 is the adapted
// content with its changes.
func (r *Runner) Recompose(ctx context.Context, oc *OfferContext, source *types.ResumeDocument, posting *types.JobPosting, batch *types.BatchResults) (*RecomposeOutcome, error) {
	if missing := batch.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("recomposition blocked, missing batches: %s", strings.Join(missing, ", "))
	}

	r.emit(ctx, oc, PhaseRecompose, "recompose", "running")

	input := map[string]string{"target_language": oc.TargetLanguage}
	outcome, err := runStep(ctx, r, oc, types.SubtaskRecompose, input,
		func(ctx context.Context, attempt int) (stepResult[*RecomposeOutcome], error) {
			var zero stepResult[*RecomposeOutcome]

			adapted := assembleDocument(source, posting, batch)
			reported := batch.AllChanges()

			var usage llm.Usage
			var model string
			if needsRetranslation(oc, posting, adapted.Languages) {
				entries, changes, resp, err := r.retranslateLanguages(ctx, oc, adapted.Languages)
				if err != nil {
					return zero, err
				}
				adapted.Languages = entries
				reported = append(reported, changes...)
				usage = resp.Usage
				model = resp.Model
			}

			ledger := diffreview.Merge(reported, diffreview.Diff(adapted, source), diffreview.WordOverlap{})

			// Each attempt gets its own name so a half-persisted
			// previous attempt can never collide on it.
			name := documentName(posting.Title)
			docID, err := r.store.CreateGeneratedDocument(ctx, oc.Task.UserID, name,
				oc.TargetLanguage, adapted, oc.Task.SourceDocumentID, posting.ID)
			if err != nil {
				return zero, fmt.Errorf("failed to create document: %w", err)
			}
			if err := r.store.CreateDocumentVersion(ctx, docID, 0, source, nil, nil); err != nil {
				return zero, fmt.Errorf("failed to save source snapshot: %w", err)
			}
			if err := r.store.CreateDocumentVersion(ctx, docID, 1, adapted, ledger, &posting.ID); err != nil {
				return zero, fmt.Errorf("failed to save adapted version: %w", err)
			}
			if err := r.store.SetOfferGeneratedDocument(ctx, oc.Offer.ID, docID, name); err != nil {
				return zero, fmt.Errorf("failed to link document to offer: %w", err)
			}

			value := &RecomposeOutcome{
				DocumentID:   docID,
				DocumentName: name,
				ChangeCount:  len(ledger),
			}
			return stepResult[*RecomposeOutcome]{
				value:  value,
				output: []byte(mustJSON(value)),
				model:  model,
				usage:  usage,
			}, nil
		})
	if err != nil {
		return nil, fmt.Errorf("recomposition failed: %w", err)
	}

	r.emit(ctx, oc, PhaseRecompose, "recompose", "completed")
	return outcome, nil
}

// assembleDocument builds the adapted document from the batch outputs.
// Identity fields come from the source header; only the title is
// replaced by the posting's.
func assembleDocument(source *types.ResumeDocument, posting *types.JobPosting, batch *types.BatchResults) *types.ResumeDocument {
	header := source.Header
	if posting.Title != "" {
		header.Title = posting.Title
	}
	return &types.ResumeDocument{
		Header:     header,
		Summary:    batch.Summary.Text,
		Skills:     ApplySkills(&batch.Skills.Skills),
		Experience: batch.Experiences.Items,
		Projects:   batch.Projects.Items,
		Education:  batch.Education.Items,
		Languages:  batch.Languages.Items,
		Extras:     batch.Extras.Items,
	}
}

// ApplySkills converts the per-skill decisions into a plain skills
// section: deleted skills vanish, renamed ones carry their new names,
// proficiency survives untouched.
func ApplySkills(adapted *types.AdaptedSkills) types.SkillsSection {
	keep := func(results []types.SkillResult) []types.SkillItem {
		var items []types.SkillItem
		for _, result := range results {
			if result.Action == types.ActionDeleted {
				continue
			}
			items = append(items, types.SkillItem{
				Name:        result.Name,
				Proficiency: result.Proficiency,
			})
		}
		return items
	}
	return types.SkillsSection{
		HardSkills:    keep(adapted.HardSkills),
		SoftSkills:    keep(adapted.SoftSkills),
		Tools:         keep(adapted.Tools),
		Methodologies: keep(adapted.Methodologies),
	}
}

// needsRetranslation reports whether the spoken-language entries deserve
// a dedicated retranslation pass: only when the document switches
// language and the posting actually cares about languages.
func needsRetranslation(oc *OfferContext, posting *types.JobPosting, entries []types.LanguageEntry) bool {
	if len(entries) == 0 || oc.TargetLanguage == oc.SourceLanguage {
		return false
	}
	if len(posting.Requirements.Languages) > 0 {
		return true
	}
	for _, entry := range entries {
		if language.MentionedIn(posting.RawText, entry.Name) {
			return true
		}
	}
	return false
}

// retranslateLanguages translates the proficiency labels into the target
// language, keeping names and entry count fixed.
func (r *Runner) retranslateLanguages(ctx context.Context, oc *OfferContext, entries []types.LanguageEntry) ([]types.LanguageEntry, []types.Change, *llm.Response, error) {
	system := prompts.Format(prompts.MustGet("adaptation.json", "languages_retranslate_system"), map[string]string{
		"TargetLanguage": language.Name(oc.TargetLanguage),
	})
	user := prompts.Format(prompts.MustGet("adaptation.json", "languages_retranslate_user"), map[string]string{
		"EntriesJSON": mustJSON(entries),
	})

	resp, err := r.client.Complete(ctx, llm.Request{
		Feature:     llm.FeatureRecompose,
		System:      system,
		User:        user,
		Schema:      llm.NewSchema("languages_retranslate", prompts.MustSchema("languages_retranslate")),
		Temperature: 0.1,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("language retranslation failed: %w", err)
	}
	if ctx.Err() != nil {
		return nil, nil, nil, retry.ErrCancelled
	}

	var parsed struct {
		Items []types.LanguageEntry `json:"items"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to parse retranslated languages: %w", err)
	}
	if len(parsed.Items) != len(entries) {
		return nil, nil, nil, fmt.Errorf("retranslation returned %d entries, want %d", len(parsed.Items), len(entries))
	}

	var changes []types.Change
	out := make([]types.LanguageEntry, len(entries))
	for i, entry := range entries {
		out[i] = types.LanguageEntry{Name: entry.Name, Proficiency: parsed.Items[i].Proficiency}
		if parsed.Items[i].Proficiency != entry.Proficiency {
			changes = append(changes, types.Change{
				Section:  "languages",
				Field:    "proficiency",
				ItemName: entry.Name,
				Type:     types.ChangeTranslated,
				Before:   entry.Proficiency,
				After:    parsed.Items[i].Proficiency,
				Reason:   "Traduction du niveau de langue",
			})
		}
	}
	return out, changes, resp, nil
}

// documentName builds a unique file name for the adapted document:
// a slug of the posting title plus a timestamp and a random suffix.
func documentName(title string) string {
	slug := slugify(title)
	if slug == "" {
		slug = "cv-adapte"
	}
	suffix := rand.Intn(10000) //nolint:gosec // uniqueness, not secrecy
	return fmt.Sprintf("%s-%s-%04d", slug, time.Now().Format("20060102-150405"), suffix)
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
