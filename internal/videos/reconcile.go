package videos

import (
	"math"

	"github.com/danribes/mystic-ecom-sub009/internal/models"
	"github.com/danribes/mystic-ecom-sub009/internal/stream"
)

// mapProviderState normalizes provider state strings onto the record lifecycle.
// The provider emits a few pre-processing states that all map to queued.
func mapProviderState(state string) (string, bool) {
	switch state {
	case "pendingupload", "queued":
		return models.VideoStatusQueued, true
	case "downloading", "inprogress", "processing":
		return models.VideoStatusInProgress, true
	case "ready":
		return models.VideoStatusReady, true
	case "error":
		return models.VideoStatusError, true
	default:
		return "", false
	}
}

// Reconcile merges a provider notification into the current record state and
// returns the result. Pure: no I/O, no clock.
//
// Rules:
//   - ready and error are terminal; an event that would move a terminal record
//     to a different status leaves the record unchanged (updated_at is still
//     bumped by the caller). Re-delivery of the same terminal status is
//     re-applied idempotently.
//   - duration, thumbnail and playback URLs use keep-if-absent semantics:
//     fields the payload omits retain their stored values.
//   - progress is taken from pctComplete when present, clamped to [0, 100].
func Reconcile(cur models.Video, ev stream.WebhookEvent) models.Video {
	next := cur

	status, known := mapProviderState(ev.Status.State)
	if !known {
		status = cur.Status
	}
	if models.IsTerminalVideoStatus(cur.Status) && status != cur.Status {
		return next
	}
	next.Status = status

	if ev.Status.PctComplete.Set {
		next.ProcessingProgress = clampPct(ev.Status.PctComplete.Value)
	}
	if ev.Duration > 0 {
		next.Duration = ev.Duration
	}
	if ev.Thumbnail != "" {
		next.ThumbnailURL = ev.Thumbnail
	}
	if ev.Playback.HLS != "" {
		next.PlaybackHLSURL = ev.Playback.HLS
	}
	if ev.Playback.Dash != "" {
		next.PlaybackDASHURL = ev.Playback.Dash
	}
	if next.Status == models.VideoStatusError {
		if msg := errorMessage(ev); msg != "" {
			next.ErrorMessage = msg
		}
	}
	return next
}

// EventFromAsset converts a polled asset status into the webhook event shape
// so the stale-queued sweep reuses the same reconciliation path.
func EventFromAsset(a *stream.Asset) stream.WebhookEvent {
	ev := stream.WebhookEvent{
		UID:       a.UID,
		Duration:  a.Duration,
		Thumbnail: a.Thumbnail,
	}
	ev.Status.State = a.State
	ev.Status.PctComplete = stream.Percent{Value: float64(a.PctComplete), Set: true}
	ev.Status.ErrorReasonCode = a.ErrorCode
	ev.Status.ErrorReasonText = a.ErrorText
	ev.Playback.HLS = a.PlaybackHLS
	ev.Playback.Dash = a.PlaybackDASH
	return ev
}

func errorMessage(ev stream.WebhookEvent) string {
	if ev.Status.ErrorReasonText != "" {
		return ev.Status.ErrorReasonText
	}
	return ev.Status.ErrorReasonCode
}

func clampPct(v float64) int {
	n := int(math.Round(v))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
