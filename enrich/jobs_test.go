package enrich

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raushankrgupta/fitly-shop-links/models"
	"github.com/raushankrgupta/fitly-shop-links/store"
)

type enricherFunc func(ctx context.Context, outfits []models.OutfitCard, owner models.Owner) ([]models.OutfitProducts, error)

func (f enricherFunc) Enrich(ctx context.Context, outfits []models.OutfitCard, owner models.Owner) ([]models.OutfitProducts, error) {
	return f(ctx, outfits, owner)
}

var jobOutfits = []models.OutfitCard{{ID: "1", Items: []models.OutfitItem{{Name: "Shirt"}, {Name: " "}, {Name: "Jeans"}}}}

func TestJobRunnerCompletes(t *testing.T) {
	provider := &scriptedProvider{answers: map[string][]models.ProductLink{
		"Shirt": {shopLink("https://a.example.com/1", 10)},
	}}
	mem := store.NewMemoryStore()
	orch := New(provider, mem, Options{}, nil, nil)

	var hookStatus string
	hook := func(_ context.Context, job *models.EnrichmentJob, result []models.OutfitProducts) error {
		hookStatus = job.Status
		job.SnapshotKey = "snapshots/" + job.ID + ".json"
		job.Status = "tampered"
		return errors.New("hook failures are only logged")
	}
	runner := NewJobRunner(orch, mem, mem, nil, nil, hook)

	job, err := runner.Submit(context.Background(), jobOutfits, models.Owner{UserID: "u1"}, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, job.Status)
	assert.Equal(t, 2, job.ItemCount)
	assert.Equal(t, []string{"1"}, job.OutfitIDs)

	result, err := runner.Wait(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Len(t, result[0].Products, 2)

	saved, err := runner.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobComplete, saved.Status)
	assert.Equal(t, models.JobComplete, hookStatus)
	assert.Equal(t, 1, saved.LinkedItems)
	assert.Equal(t, "snapshots/"+job.ID+".json", saved.SnapshotKey)
	require.NotNil(t, saved.CompletedAt)
	assert.True(t, saved.Done())

	assert.ErrorIs(t, runner.Cancel(job.ID), ErrJobFinished)
}

func TestJobRunnerCancel(t *testing.T) {
	started := make(chan struct{})
	enricher := enricherFunc(func(ctx context.Context, _ []models.OutfitCard, _ models.Owner) ([]models.OutfitProducts, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	mem := store.NewMemoryStore()
	runner := NewJobRunner(enricher, mem, mem, nil, nil)

	job, err := runner.Submit(context.Background(), jobOutfits, models.Owner{}, "")
	require.NoError(t, err)
	<-started

	require.NoError(t, runner.Cancel(job.ID))
	_, err = runner.Wait(context.Background(), job.ID)
	assert.ErrorIs(t, err, ErrJobCancelled)

	saved, err := runner.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCancelled, saved.Status)
}

func TestJobRunnerFailure(t *testing.T) {
	enricher := enricherFunc(func(context.Context, []models.OutfitCard, models.Owner) ([]models.OutfitProducts, error) {
		return nil, ErrPersistence
	})
	mem := store.NewMemoryStore()
	runner := NewJobRunner(enricher, mem, mem, nil, nil)

	job, err := runner.Submit(context.Background(), jobOutfits, models.Owner{}, "")
	require.NoError(t, err)

	_, err = runner.Wait(context.Background(), job.ID)
	assert.ErrorIs(t, err, ErrPersistence)

	saved, err := runner.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, saved.Status)
	assert.Equal(t, ErrPersistence.Error(), saved.Error)
}

func TestJobRunnerWaitFromStore(t *testing.T) {
	mem := store.NewMemoryStore()
	require.NoError(t, mem.UpsertItemLinks(context.Background(), "1", "Shirt", models.Owner{}, nil))
	require.NoError(t, mem.CreateJob(context.Background(), models.EnrichmentJob{ID: "old", Status: models.JobComplete, OutfitIDs: []string{"1"}}))

	runner := NewJobRunner(enricherFunc(nil), mem, mem, nil, nil)
	result, err := runner.Wait(context.Background(), "old")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Shirt", result[0].Products[0].ItemName)

	_, err = runner.Wait(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, runner.Cancel("missing"), store.ErrNotFound)
}

func TestJobRunnerWaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	enricher := enricherFunc(func(context.Context, []models.OutfitCard, models.Owner) ([]models.OutfitProducts, error) {
		<-release
		return []models.OutfitProducts{}, nil
	})
	mem := store.NewMemoryStore()
	runner := NewJobRunner(enricher, mem, mem, nil, nil)

	job, err := runner.Submit(context.Background(), jobOutfits, models.Owner{}, "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = runner.Wait(ctx, job.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestJobRunnerShutdownCancelsJobs(t *testing.T) {
	var cancelled atomic.Bool
	started := make(chan struct{})
	enricher := enricherFunc(func(ctx context.Context, _ []models.OutfitCard, _ models.Owner) ([]models.OutfitProducts, error) {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return nil, ctx.Err()
	})
	mem := store.NewMemoryStore()
	runner := NewJobRunner(enricher, mem, mem, nil, nil)

	_, err := runner.Submit(context.Background(), jobOutfits, models.Owner{}, "")
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, runner.Shutdown(ctx))
	assert.True(t, cancelled.Load())
}

func TestJobRunnerRejectsInvalidOutfits(t *testing.T) {
	mem := store.NewMemoryStore()
	runner := NewJobRunner(enricherFunc(nil), mem, mem, nil, nil)
	_, err := runner.Submit(context.Background(), []models.OutfitCard{{ID: " "}}, models.Owner{}, "")
	assert.ErrorIs(t, err, models.ErrInvalidOutfit)
}
