// Package store persists per-item product links and enrichment jobs.
package store

import (
	"context"
	"errors"

	"github.com/raushankrgupta/fitly-shop-links/models"
)

// ErrNotFound is returned when a job id is unknown.
var ErrNotFound = errors.New("not found")

// LinkStore keeps one LinkRecord per (outfit_id, item_name).
type LinkStore interface {
	// UpsertItemLinks replaces links and updated_at, sets the owner, and stamps
	// created_at only when the record is first inserted.
	UpsertItemLinks(ctx context.Context, outfitID, itemName string, owner models.Owner, links []models.ProductLink) error
	// GetByOutfitIDs returns groups in the order the ids were requested.
	GetByOutfitIDs(ctx context.Context, ids []string) ([]models.OutfitProducts, error)
	// GetByOwner prefers the user id and falls back to the session id.
	GetByOwner(ctx context.Context, owner models.Owner) ([]models.OutfitProducts, error)
	EnsureIndexes(ctx context.Context) error
}

// JobStore persists enrichment job records.
type JobStore interface {
	CreateJob(ctx context.Context, job models.EnrichmentJob) error
	UpdateJob(ctx context.Context, job models.EnrichmentJob) error
	GetJob(ctx context.Context, id string) (models.EnrichmentJob, error)
}

// uniqueIDs drops blanks and repeats, keeping first-seen order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
