package models

import (
	"time"
)

// Job statuses
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobComplete  = "complete"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

// EnrichmentJob tracks one asynchronous enrichment run.
type EnrichmentJob struct {
	ID          string     `bson:"_id" json:"id"`
	Status      string     `bson:"status" json:"status"` // pending, running, complete, failed, cancelled
	UserID      *string    `bson:"user_id" json:"user_id,omitempty"`
	SessionID   *string    `bson:"session_id" json:"session_id,omitempty"`
	NotifyEmail string     `bson:"notify_email,omitempty" json:"notify_email,omitempty"`
	OutfitIDs   []string   `bson:"outfit_ids" json:"outfit_ids"`
	ItemCount   int        `bson:"item_count" json:"item_count"`
	LinkedItems int        `bson:"linked_items" json:"linked_items"` // items that ended with at least one link
	Error       string     `bson:"error,omitempty" json:"error,omitempty"`
	SnapshotKey string     `bson:"snapshot_key,omitempty" json:"snapshot_key,omitempty"` // S3 object key of the result
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Done reports whether the job reached a terminal status.
func (j EnrichmentJob) Done() bool {
	switch j.Status {
	case JobComplete, JobFailed, JobCancelled:
		return true
	}
	return false
}
