// Package quota decides whether an identity may reserve another upload slot.
package quota

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"httpupload/internal/domain/policy"
)

// History aggregates an identity's current slot records.
type History interface {
	TotalSize(ctx context.Context, identity string) (int64, error)
	SizeSince(ctx context.Context, identity string, since time.Time) (int64, error)
	CountSince(ctx context.Context, identity string, since time.Time) (int64, error)
}

// Admit checks the request against outcome's limits, cheapest checks first.
// It returns nil on admission, a *Rejection when a limit fails, or a plain
// error when history could not be read.
func Admit(ctx context.Context, outcome policy.Outcome, history History, identity string, size int64, now time.Time) error {
	if outcome.Denied() {
		return Denied()
	}
	l := outcome.Limits

	if l.MaxFileSize != nil && size > *l.MaxFileSize {
		return reject(DimensionMaxFileSize, http.StatusRequestEntityTooLarge,
			"File too large: %s exceeds the maximum of %s.",
			humanize.IBytes(uint64(size)), humanize.IBytes(uint64(*l.MaxFileSize)))
	}

	if l.MaxTotalSize != nil {
		total, err := history.TotalSize(ctx, identity)
		if err != nil {
			return fmt.Errorf("sum total size: %w", err)
		}
		if total+size > *l.MaxTotalSize {
			return reject(DimensionMaxTotalSize, http.StatusForbidden,
				"Maximum total size of uploaded files (%s) exceeded.",
				humanize.IBytes(uint64(*l.MaxTotalSize)))
		}
	}

	if w := l.BytesPerWindow; w != nil {
		sum, err := history.SizeSince(ctx, identity, now.Add(-w.Window))
		if err != nil {
			return fmt.Errorf("sum size in window: %w", err)
		}
		if sum+size > w.Quota {
			return reject(DimensionBytesPerWindow, http.StatusPaymentRequired,
				"Temporarily out of quota: at most %s per %s.",
				humanize.IBytes(uint64(w.Quota)), w.Window)
		}
	}

	if w := l.UploadsPerWindow; w != nil {
		count, err := history.CountSince(ctx, identity, now.Add(-w.Window))
		if err != nil {
			return fmt.Errorf("count uploads in window: %w", err)
		}
		if count+1 > w.Quota {
			return reject(DimensionUploadsPerWindow, http.StatusPaymentRequired,
				"Temporarily out of quota: at most %d uploads per %s.", w.Quota, w.Window)
		}
	}

	return nil
}
