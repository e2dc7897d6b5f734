package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/raushankrgupta/fitly-shop-links/models"
)

// ObjectPutter is satisfied by utils.SnapshotArchive.
type ObjectPutter interface {
	Put(ctx context.Context, objectKey string, body io.Reader, contentType string) (string, error)
}

// Mailer is satisfied by utils.EmailNotifier.
type Mailer interface {
	Send(ctx context.Context, toName, toEmail, subject, textContent, htmlContent string) error
}

// Presigner is satisfied by utils.SnapshotArchive.
type Presigner interface {
	PresignURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
}

// snapshotLinkTTL bounds how long an emailed snapshot link stays valid.
const snapshotLinkTTL = 72 * time.Hour

type snapshot struct {
	Job     models.EnrichmentJob    `json:"job"`
	Outfits []models.OutfitProducts `json:"outfits"`
}

// SnapshotHook archives completed results as JSON and records the object key on the job.
func SnapshotHook(archive ObjectPutter) CompletionHook {
	return func(ctx context.Context, job *models.EnrichmentJob, result []models.OutfitProducts) error {
		if job.Status != models.JobComplete {
			return nil
		}
		body, err := json.Marshal(snapshot{Job: *job, Outfits: result})
		if err != nil {
			return err
		}
		key := fmt.Sprintf("enrichment-snapshots/%s/%s.json", job.CreatedAt.UTC().Format("2006-01-02"), job.ID)
		stored, err := archive.Put(ctx, key, bytes.NewReader(body), "application/json")
		if err != nil {
			return err
		}
		job.SnapshotKey = stored
		return nil
	}
}

// EmailHook mails the job outcome to NotifyEmail when one was given. When presign
// is set and an earlier hook archived a snapshot, the mail links to it.
func EmailHook(mailer Mailer, presign Presigner) CompletionHook {
	return func(ctx context.Context, job *models.EnrichmentJob, _ []models.OutfitProducts) error {
		if job.NotifyEmail == "" {
			return nil
		}
		subject, text := jobMessage(job)
		html := fmt.Sprintf("<p>%s</p>", text)
		if presign != nil && job.SnapshotKey != "" {
			if link, err := presign.PresignURL(ctx, job.SnapshotKey, snapshotLinkTTL); err == nil {
				text += "\nDownload the full list: " + link
				html += fmt.Sprintf(`<p><a href="%s">Download the full list</a></p>`, link)
			}
		}
		return mailer.Send(ctx, "", job.NotifyEmail, subject, text, html)
	}
}

func jobMessage(job *models.EnrichmentJob) (string, string) {
	switch job.Status {
	case models.JobComplete:
		return "Your outfit shopping links are ready",
			fmt.Sprintf("We found shopping links for %d of %d items across %d outfits.", job.LinkedItems, job.ItemCount, len(job.OutfitIDs))
	case models.JobCancelled:
		return "Your outfit link search was cancelled",
			"The search for shopping links was cancelled before it finished."
	default:
		return "We could not finish your outfit link search",
			fmt.Sprintf("Something went wrong while saving your shopping links (job %s, %s). Please try again.", job.ID, job.UpdatedAt.Format(time.RFC1123))
	}
}
