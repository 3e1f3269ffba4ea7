package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-tailor/internal/credits"
	"github.com/jonathan/cv-tailor/internal/db"
	"github.com/jonathan/cv-tailor/internal/llm"
	"github.com/jonathan/cv-tailor/internal/phases"
	"github.com/jonathan/cv-tailor/internal/progress"
	"github.com/jonathan/cv-tailor/internal/retry"
	"github.com/jonathan/cv-tailor/internal/types"
)

const refundCost = 10

// memStore is an in-memory Store for runner and processor tests
type memStore struct {
	mu sync.Mutex

	tasks  map[uuid.UUID]*types.GenerationTask
	offers map[uuid.UUID]*types.Offer

	documents map[uuid.UUID]*db.Document

	postings map[uuid.UUID]*types.JobPosting

	refunds       map[uuid.UUID]bool
	refundGrants  int
	completedIncr int

	background map[uuid.UUID]string

	docVersions map[uuid.UUID]int
}

func newMemStore() *memStore {
	return &memStore{
		tasks:       make(map[uuid.UUID]*types.GenerationTask),
		offers:      make(map[uuid.UUID]*types.Offer),
		documents:   make(map[uuid.UUID]*db.Document),
		postings:    make(map[uuid.UUID]*types.JobPosting),
		refunds:     make(map[uuid.UUID]bool),
		background:  make(map[uuid.UUID]string),
		docVersions: make(map[uuid.UUID]int),
	}
}

func (m *memStore) CreateSubtask(_ context.Context, _, _ uuid.UUID, _ types.SubtaskType, _ *int, _ []byte) (uuid.UUID, error) {
	return uuid.New(), nil
}
func (m *memStore) CompleteSubtask(context.Context, uuid.UUID, []byte, string, int, int, int, float64, int64) error {
	return nil
}
func (m *memStore) FailSubtask(context.Context, uuid.UUID, string, int64) error { return nil }
func (m *memStore) BumpSubtaskRetry(context.Context, uuid.UUID) error           { return nil }

func (m *memStore) FindJobPostingBySource(_ context.Context, sourceURL, sourceHash string) (*types.JobPosting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.postings {
		if (sourceURL != "" && p.SourceURL == sourceURL) || (sourceHash != "" && p.SourceHash == sourceHash) {
			return p, nil
		}
	}
	return nil, nil
}

func (m *memStore) SaveJobPosting(_ context.Context, posting *types.JobPosting) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	copied := *posting
	copied.ID = id
	m.postings[id] = &copied
	return id, nil
}

func (m *memStore) GetJobPosting(_ context.Context, postingID uuid.UUID) (*types.JobPosting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.postings[postingID], nil
}

func (m *memStore) SetOfferJobPosting(_ context.Context, offerID, postingID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[offerID].JobPostingID = &postingID
	return nil
}

func (m *memStore) SetOfferClassification(_ context.Context, offerID uuid.UUID, result *types.ClassificationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[offerID].ClassificationResult = result
	return nil
}

func (m *memStore) CreateGeneratedDocument(_ context.Context, userID uuid.UUID, name, lang string, content *types.ResumeDocument, _, _ uuid.UUID) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.documents[id] = &db.Document{ID: id, UserID: userID, Name: name, Language: lang, Content: *content}
	return id, nil
}

func (m *memStore) CreateDocumentVersion(_ context.Context, documentID uuid.UUID, _ int, _ *types.ResumeDocument, _ []types.Change, _ *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docVersions[documentID]++
	return nil
}

func (m *memStore) SetOfferGeneratedDocument(_ context.Context, offerID, documentID uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[offerID].GeneratedDocumentID = &documentID
	m.offers[offerID].GeneratedDocumentName = name
	return nil
}

func (m *memStore) GetTask(_ context.Context, taskID uuid.UUID) (*types.GenerationTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[taskID], nil
}

func (m *memStore) StartTask(_ context.Context, taskID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task := m.tasks[taskID]
	if task == nil || task.Status != types.StatusPending {
		return false, nil
	}
	task.Status = types.StatusRunning
	return true, nil
}

func (m *memStore) FinishTask(_ context.Context, taskID uuid.UUID, status types.TaskStatus, errMsg string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task := m.tasks[taskID]
	if task == nil || task.Status.Terminal() {
		return false, nil
	}
	task.Status = status
	task.Error = errMsg
	return true, nil
}

func (m *memStore) IncrementCompletedOffers(_ context.Context, taskID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completedIncr++
	m.tasks[taskID].CompletedOffers++
	return nil
}

func (m *memStore) GetOffer(_ context.Context, offerID uuid.UUID) (*types.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offers[offerID], nil
}

func (m *memStore) ListOffers(_ context.Context, taskID uuid.UUID) ([]types.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Offer
	for i := 0; i < len(m.offers); i++ {
		for _, o := range m.offers {
			if o.TaskID == taskID && o.OfferIndex == i {
				out = append(out, *o)
			}
		}
	}
	return out, nil
}

func (m *memStore) ListUnfinishedOffers(_ context.Context, taskID uuid.UUID) ([]types.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Offer
	for _, o := range m.offers {
		if o.TaskID == taskID && !o.Status.Terminal() {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memStore) SetOfferStatus(_ context.Context, offerID uuid.UUID, status types.TaskStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[offerID].Status = status
	return nil
}

func (m *memStore) FinishOffer(_ context.Context, offerID uuid.UUID, status types.TaskStatus, errMsg string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	offer := m.offers[offerID]
	if offer.Status.Terminal() {
		return false, nil
	}
	offer.Status = status
	offer.Error = errMsg
	return true, nil
}

func (m *memStore) SetOfferBatchResults(_ context.Context, offerID uuid.UUID, results *types.BatchResults) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[offerID].BatchResults = results
	return nil
}

func (m *memStore) GetDocument(_ context.Context, documentID uuid.UUID) (*db.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.documents[documentID], nil
}

func (m *memStore) UpsertBackgroundTask(_ context.Context, taskID uuid.UUID, status string, _ any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.background[taskID] = status
	return nil
}

func (m *memStore) GetBackgroundTaskStatus(_ context.Context, taskID uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.background[taskID]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return status, nil
}

func (m *memStore) ApplyRefund(_ context.Context, _, offerID, _ uuid.UUID, amount int, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refunds[offerID] {
		return false, nil
	}
	m.refunds[offerID] = true
	m.refundGrants += amount
	return true, nil
}

// queueClient serves FIFO responses per feature
type queueClient struct {
	mu        sync.Mutex
	responses map[llm.Feature][]string
}

func (q *queueClient) queue(feature llm.Feature, payload string) {
	if q.responses == nil {
		q.responses = make(map[llm.Feature][]string)
	}
	q.responses[feature] = append(q.responses[feature], payload)
}

func (q *queueClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	queued := q.responses[req.Feature]
	if len(queued) == 0 {
		return nil, fmt.Errorf("inference unavailable for %s", req.Feature)
	}
	q.responses[req.Feature] = queued[1:]
	return &llm.Response{Content: queued[0], Model: "fake", Usage: llm.Usage{PromptTokens: 5, CompletionTokens: 5}}, nil
}

func (q *queueClient) Model(llm.Feature) string { return "fake" }
func (q *queueClient) Close() error             { return nil }

// queueHappyOffer queues every response one offer needs when the source
// document has a single experience and nothing else.
func (q *queueClient) queueHappyOffer(title string) {
	q.queue(llm.FeatureExtract, fmt.Sprintf(`{"title":%q,"language":"fr"}`, title))
	q.queue(llm.FeatureClassify, `{"experiences":[{"index":0,"action":"KEEP"}],"projects":[]}`)
	q.queue(llm.FeatureBatch, `{"items":[{"title":"Développeuse","company":"Acme","responsibilities":["Conception d'APIs Go"]}],"changes":[]}`)
	q.queue(llm.FeatureBatch, `{"text":"Développeuse backend Go.","changes":[]}`)
}

type fixture struct {
	store  *memStore
	client *queueClient
	runner *Runner
	task   *types.GenerationTask
	offers []*types.Offer
}

func newFixture(t *testing.T, offerCount int) *fixture {
	t.Helper()
	store := newMemStore()
	client := &queueClient{}

	docID := uuid.New()
	userID := uuid.New()
	store.documents[docID] = &db.Document{
		ID:       docID,
		UserID:   userID,
		Name:     "cv-source",
		Language: "fr",
		Content: types.ResumeDocument{
			Header:  types.Header{FullName: "Ada Lovelace", Title: "Développeuse"},
			Summary: "Développeuse backend.",
			Experience: []types.Experience{
				{Title: "Développeuse", Company: "Acme", StartDate: "2020-01"},
			},
		},
	}

	mode := types.ModeSingle
	if offerCount > 1 {
		mode = types.ModeMulti
	}
	task := &types.GenerationTask{
		ID:               uuid.New(),
		UserID:           userID,
		SourceDocumentID: docID,
		Mode:             mode,
		TotalOffers:      offerCount,
		Status:           types.StatusPending,
	}
	store.tasks[task.ID] = task

	var offers []*types.Offer
	for i := 0; i < offerCount; i++ {
		offer := &types.Offer{
			ID:            uuid.New(),
			TaskID:        task.ID,
			OfferIndex:    i,
			SourceKind:    types.SourceMarkdown,
			SourceContent: fmt.Sprintf("# Offre %d\nPoste backend Go, contenu unique %d.", i, i),
			Status:        types.StatusPending,
		}
		store.offers[offer.ID] = offer
		offers = append(offers, offer)
	}

	log := zerolog.Nop()
	retryCfg := retry.Config{MaxRetries: 0, BaseDelay: time.Millisecond}
	phaseRunner := phases.NewRunner(store, client, nil, progress.NewEmitter(nil, log), retryCfg, log)
	processor := NewProcessor(store, phaseRunner, log)
	creditMgr := credits.NewManager(store, refundCost, log)
	runner := NewRunner(store, processor, creditMgr, progress.NewEmitter(nil, log), NewSlots(2), NewCancelRegistry(), log)

	return &fixture{store: store, client: client, runner: runner, task: task, offers: offers}
}

func TestRunSingleOffer_Success(t *testing.T) {
	f := newFixture(t, 1)
	f.client.queueHappyOffer("Backend Engineer")

	result, err := f.runner.RunSingleOffer(context.Background(), f.task.ID, f.offers[0].ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, types.StatusCompleted, result.Status)
	assert.Equal(t, 1, result.Generated)
	assert.Zero(t, result.Failed)
	assert.Zero(t, result.CreditsRefunded)

	offer := f.store.offers[f.offers[0].ID]
	assert.Equal(t, types.StatusCompleted, offer.Status)
	require.NotNil(t, offer.GeneratedDocumentID)
	assert.NotEmpty(t, offer.GeneratedDocumentName)
	require.NotNil(t, offer.BatchResults)
	assert.Empty(t, offer.BatchResults.Missing())

	assert.Equal(t, types.StatusCompleted, f.task.Status)
	assert.Equal(t, 1, f.task.CompletedOffers)
	// version 0 snapshot plus the adapted version
	assert.Equal(t, 2, f.store.docVersions[*offer.GeneratedDocumentID])
	assert.Equal(t, "completed", f.store.background[f.task.ID])
}

func TestRunSingleOffer_FailureRefundsOnce(t *testing.T) {
	f := newFixture(t, 1)
	// nothing queued: extraction fails immediately

	result, err := f.runner.RunSingleOffer(context.Background(), f.task.ID, f.offers[0].ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, types.StatusFailed, result.Status)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, refundCost, result.CreditsRefunded)

	offer := f.store.offers[f.offers[0].ID]
	assert.Equal(t, types.StatusFailed, offer.Status)
	assert.NotEmpty(t, offer.Error)
	assert.Nil(t, offer.GeneratedDocumentID)
	assert.Equal(t, refundCost, f.store.refundGrants)
	assert.Equal(t, types.StatusFailed, f.task.Status)
	assert.Equal(t, "failed", f.store.background[f.task.ID])
}

func TestRunSingleOffer_NotPending(t *testing.T) {
	f := newFixture(t, 1)
	f.task.Status = types.StatusRunning

	_, err := f.runner.RunSingleOffer(context.Background(), f.task.ID, f.offers[0].ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not pending")
}

func TestRunSingleOffer_SlotLimit(t *testing.T) {
	f := newFixture(t, 1)
	slots := NewSlots(1)
	f.runner.slots = slots
	require.NoError(t, slots.Acquire(f.task.UserID, slotSingle))

	_, err := f.runner.RunSingleOffer(context.Background(), f.task.ID, f.offers[0].ID)
	assert.ErrorIs(t, err, ErrNoSlot)

	slots.Release(f.task.UserID, slotSingle)
	assert.Zero(t, slots.InUse(f.task.UserID, slotSingle))
}

func TestRunMultiOffer_PartialSuccess(t *testing.T) {
	f := newFixture(t, 2)
	f.client.queueHappyOffer("Backend Engineer")
	// the second offer gets nothing and fails at extraction

	result, err := f.runner.RunMultiOffer(context.Background(), f.task.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, types.StatusCompleted, result.Status)
	assert.Equal(t, 1, result.Generated)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, refundCost, result.CreditsRefunded)

	assert.Equal(t, types.StatusCompleted, f.store.offers[f.offers[0].ID].Status)
	assert.Equal(t, types.StatusFailed, f.store.offers[f.offers[1].ID].Status)
}

func TestRunMultiOffer_CancellationSweep(t *testing.T) {
	f := newFixture(t, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.runner.RunMultiOffer(ctx, f.task.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, types.StatusCancelled, result.Status)
	assert.Equal(t, 3*refundCost, result.CreditsRefunded)

	for _, offer := range f.offers {
		stored := f.store.offers[offer.ID]
		assert.Equal(t, types.StatusCancelled, stored.Status)
		assert.True(t, f.store.refunds[offer.ID])
	}
	assert.Equal(t, types.StatusCancelled, f.task.Status)
	assert.Equal(t, "cancelled", f.store.background[f.task.ID])
}

func TestRunner_CancelStopsRegisteredRun(t *testing.T) {
	f := newFixture(t, 1)
	assert.False(t, f.runner.Cancel(f.task.ID))

	ctx, done := f.runner.cancels.Register(context.Background(), f.task.ID)
	defer done()
	assert.True(t, f.runner.Cancel(f.task.ID))
	assert.Error(t, ctx.Err())
}

func TestMirrorBackground_NeverOverwritesExternalCancel(t *testing.T) {
	f := newFixture(t, 1)
	f.store.background[f.task.ID] = "cancelled"

	f.runner.mirrorBackground(context.Background(), f.task.ID, types.StatusCompleted, &RunResult{})
	assert.Equal(t, "cancelled", f.store.background[f.task.ID])

	f.runner.mirrorBackground(context.Background(), f.task.ID, types.StatusCancelled, &RunResult{Status: types.StatusCancelled})
	assert.Equal(t, "cancelled", f.store.background[f.task.ID])
}

func TestSlots(t *testing.T) {
	slots := NewSlots(2)
	user := uuid.New()

	require.NoError(t, slots.Acquire(user, slotSingle))
	require.NoError(t, slots.Acquire(user, slotSingle))
	assert.ErrorIs(t, slots.Acquire(user, slotSingle), ErrNoSlot)
	// a different kind has its own budget
	require.NoError(t, slots.Acquire(user, slotMulti))

	slots.Release(user, slotSingle)
	require.NoError(t, slots.Acquire(user, slotSingle))
}
