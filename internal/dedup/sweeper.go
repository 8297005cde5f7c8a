package dedup

import (
	"context"
	"log/slog"
	"time"
)

// Sweepable is implemented by stores that need explicit expiry.
type Sweepable interface {
	Sweep() int
}

// RunSweeper removes expired entries from store every interval and keeps the
// entry gauge current. It returns when ctx is cancelled.
func RunSweeper(ctx context.Context, store Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s, ok := store.(Sweepable); ok {
				if removed := s.Sweep(); removed > 0 {
					recordSwept(removed)
					slog.Debug("swept expired fingerprints", "removed", removed)
				}
			}

			n, err := store.Len(ctx)
			if err != nil {
				slog.Warn("failed to count dedup entries", "error", err)
				continue
			}
			RecordEntries(n)
		}
	}
}
