// Package events folds per-photo pipeline results into per-event aggregates
// and owns the event processing lifecycle.
package events

import (
	"time"

	"github.com/your-org/eventfaces/internal/models"
)

// Aggregate folds photo results, in input order, into an event-level result.
//
// The fold is the single source of the stats: they are sums over the folded
// results, never recomputed elsewhere, so they cannot diverge from the
// per-photo counts. Duplicates are expected and kept: a user appearing in
// many photos gets one UserPhotos entry per appearance, in processing order.
// attempted is the number of photos submitted for the run; results holds only
// the successfully processed ones, which keeps "0 faces found" distinguishable
// from "processing failed".
//
// Aggregate is pure: the same ordered results and timestamp always produce an
// identical EventResult.
func Aggregate(eventID string, results []models.PhotoResult, attempted int, processedAt time.Time) models.EventResult {
	out := models.EventResult{
		EventID:           eventID,
		ProcessedAt:       processedAt,
		UserPhotos:        make(map[string][]models.UserPhoto),
		UnrecognizedFaces: []models.UnrecognizedFace{},
		OrganizerPhotos:   []models.OrganizerPhoto{},
		PhotosAttempted:   attempted,
		PhotosProcessed:   len(results),
	}

	for _, pr := range results {
		for _, face := range pr.Recognized {
			out.UserPhotos[face.UserID] = append(out.UserPhotos[face.UserID], models.UserPhoto{
				PhotoID:    pr.PhotoID,
				Confidence: face.Confidence,
				Region:     face.Region,
			})
		}

		for _, face := range pr.Unrecognized {
			face.PhotoID = pr.PhotoID
			out.UnrecognizedFaces = append(out.UnrecognizedFaces, face)
		}

		if pr.TotalFaces > 0 {
			out.OrganizerPhotos = append(out.OrganizerPhotos, models.OrganizerPhoto{
				PhotoID:    pr.PhotoID,
				TotalFaces: pr.TotalFaces,
			})
		}

		out.Stats.RecognizedCount += len(pr.Recognized)
		out.Stats.UnrecognizedCount += len(pr.Unrecognized)
		out.Stats.SkippedRegions += pr.SkippedRegions
	}

	out.Stats.TotalFaces = out.Stats.RecognizedCount + out.Stats.UnrecognizedCount
	return out
}
