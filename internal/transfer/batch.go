package transfer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// defaultBatchLimit bounds concurrent batch items. The remote rate
// limits aggressively, so the fan-out stays narrow.
const defaultBatchLimit = 3

// BatchItem is the isolated result for one input URL.
type BatchItem struct {
	ShareURL     string
	Success      bool
	NewShareURL  string
	ShareTitle   string
	ErrorMessage string
	Transfer     *TransferInfo
}

// BatchOutcome aggregates a batch run. Counts are derived from the
// items; Items holds one entry per input URL in input order.
type BatchOutcome struct {
	Total     int
	Succeeded int
	Failed    int
	Items     []BatchItem
}

// RunBatch runs the workflow once per share URL. Items run concurrently
// up to the batch limit; each failure is captured into its own item and
// never aborts the others. base supplies the destination and share
// parameters applied to every item.
func (o *Orchestrator) RunBatch(ctx context.Context, shareURLs []string, base Request) *BatchOutcome {
	batchID := uuid.New().String()
	items := make([]BatchItem, len(shareURLs))

	o.logger.Info("starting batch transfer-and-share",
		slog.String("batch_id", batchID),
		slog.Int("urls", len(shareURLs)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.batchLimit)

	for i, shareURL := range shareURLs {
		g.Go(func() error {
			req := base
			req.ShareURL = shareURL

			item := BatchItem{ShareURL: shareURL}

			outcome, err := o.Run(gctx, req)
			if err != nil {
				item.ErrorMessage = err.Error()

				o.logger.Warn("batch item failed",
					slog.String("batch_id", batchID),
					slog.String("share_url", shareURL),
					slog.String("error", err.Error()),
				)
			} else {
				item.Success = true
				item.NewShareURL = outcome.ShareURL
				item.ShareTitle = outcome.ShareTitle
				item.Transfer = &outcome.Transfer
			}

			items[i] = item

			// Item failures are isolated; never propagate into the
			// group, which would cancel the remaining items.
			return nil
		})
	}

	// All goroutines return nil; Wait only orders the item writes.
	_ = g.Wait()

	result := &BatchOutcome{Total: len(items), Items: items}

	for _, item := range items {
		if item.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	o.logger.Info("batch complete",
		slog.String("batch_id", batchID),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
	)

	return result
}
