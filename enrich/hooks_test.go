package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raushankrgupta/fitly-shop-links/models"
)

type memArchive struct {
	objects map[string][]byte
	err     error
}

func (a *memArchive) Put(_ context.Context, key string, body io.Reader, contentType string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	a.objects[key] = b
	return key, nil
}

type sentMail struct {
	to, subject, text string
}

type memMailer struct {
	sent []sentMail
}

func (m *memMailer) Send(_ context.Context, _, toEmail, subject, text, _ string) error {
	m.sent = append(m.sent, sentMail{to: toEmail, subject: subject, text: text})
	return nil
}

func finishedJob(status string) *models.EnrichmentJob {
	return &models.EnrichmentJob{
		ID:          "job-1",
		Status:      status,
		OutfitIDs:   []string{"1", "2"},
		ItemCount:   5,
		LinkedItems: 4,
		NotifyEmail: "shopper@example.com",
		CreatedAt:   time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 3, 4, 10, 1, 0, 0, time.UTC),
	}
}

func TestSnapshotHookArchivesCompletedJobs(t *testing.T) {
	archive := &memArchive{objects: map[string][]byte{}}
	job := finishedJob(models.JobComplete)
	result := []models.OutfitProducts{{OutfitID: "1", Products: []models.ItemProducts{{ItemName: "Shirt", Links: []models.ProductLink{}}}}}

	require.NoError(t, SnapshotHook(archive)(context.Background(), job, result))

	assert.Equal(t, "enrichment-snapshots/2026-03-04/job-1.json", job.SnapshotKey)
	var snap snapshot
	require.NoError(t, json.Unmarshal(archive.objects[job.SnapshotKey], &snap))
	assert.Equal(t, "job-1", snap.Job.ID)
	assert.Equal(t, result, snap.Outfits)
}

func TestSnapshotHookSkipsUnfinishedWork(t *testing.T) {
	archive := &memArchive{objects: map[string][]byte{}}
	job := finishedJob(models.JobFailed)
	require.NoError(t, SnapshotHook(archive)(context.Background(), job, nil))
	assert.Empty(t, archive.objects)
	assert.Empty(t, job.SnapshotKey)
}

func TestSnapshotHookPropagatesErrors(t *testing.T) {
	archive := &memArchive{err: errors.New("access denied")}
	err := SnapshotHook(archive)(context.Background(), finishedJob(models.JobComplete), nil)
	assert.EqualError(t, err, "access denied")
}

func TestEmailHook(t *testing.T) {
	mailer := &memMailer{}
	hook := EmailHook(mailer, nil)

	require.NoError(t, hook(context.Background(), finishedJob(models.JobComplete), nil))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "shopper@example.com", mailer.sent[0].to)
	assert.Contains(t, mailer.sent[0].text, "4 of 5 items across 2 outfits")

	silent := finishedJob(models.JobFailed)
	silent.NotifyEmail = ""
	require.NoError(t, hook(context.Background(), silent, nil))
	assert.Len(t, mailer.sent, 1)
}

type fakePresigner struct{}

func (fakePresigner) PresignURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "https://bucket.example.com/" + key + "?ttl=" + ttl.String(), nil
}

func TestEmailHookLinksSnapshot(t *testing.T) {
	mailer := &memMailer{}
	job := finishedJob(models.JobComplete)
	job.SnapshotKey = "enrichment-snapshots/2026-03-04/job-1.json"

	require.NoError(t, EmailHook(mailer, fakePresigner{})(context.Background(), job, nil))
	require.Len(t, mailer.sent, 1)
	assert.Contains(t, mailer.sent[0].text, "https://bucket.example.com/enrichment-snapshots/2026-03-04/job-1.json?ttl=72h0m0s")
}
