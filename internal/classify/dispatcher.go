package classify

import (
	"context"
	"log/slog"

	"neuroskip/internal/logging"
	"neuroskip/internal/segments"
)

// SegmentStore is the slice of the segment store the dispatcher needs.
type SegmentStore interface {
	GetByID(ctx context.Context, id int64) (*segments.Segment, error)
	MarkAd(ctx context.Context, id int64) error
}

// Result summarizes one classification batch.
type Result struct {
	Classified int
	Ads        int
	Failed     int
	Missing    int
}

// Dispatcher walks a persisted batch in order, carrying the previous
// segment's text and label into each call. A failed call leaves its
// segment unclassified and clears the context for the next one.
type Dispatcher struct {
	labeler Labeler
	store   SegmentStore
	logger  *slog.Logger
}

// NewDispatcher wires a classifier client to the segment store.
func NewDispatcher(labeler Labeler, store SegmentStore, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		labeler: labeler,
		store:   store,
		logger:  logging.NewComponentLogger(logger, "classifier"),
	}
}

// Run classifies the identified segments sequentially. Per-segment
// failures are absorbed; only context cancellation or a store read
// error aborts the batch.
func (d *Dispatcher) Run(ctx context.Context, ids []int64) (Result, error) {
	var result Result
	var previousText *string
	var previousClass *string

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		segment, err := d.store.GetByID(ctx, id)
		if err != nil {
			return result, err
		}
		if segment == nil {
			result.Missing++
			continue
		}

		label, err := d.labeler.Classify(ctx, Request{
			PreviousSegment: previousText,
			PreviousClass:   previousClass,
			CurrentSegment:  segment.Text,
		})
		if err != nil {
			d.logger.Warn("segment classification failed",
				logging.Int64("segment_id", id),
				logging.Error(err))
			previousText = nil
			previousClass = nil
			result.Failed++
			continue
		}

		text := segment.Text
		previousText = &text
		previousClass = &label
		result.Classified++

		if label != LabelAd {
			continue
		}
		if err := d.store.MarkAd(ctx, id); err != nil {
			d.logger.Warn("failed to mark segment as ad",
				logging.Int64("segment_id", id),
				logging.Error(err))
			result.Failed++
			continue
		}
		result.Ads++
	}

	d.logger.Info("classification batch complete",
		logging.Int("total", len(ids)),
		logging.Int("classified", result.Classified),
		logging.Int("ads", result.Ads),
		logging.Int("failed", result.Failed))
	return result, nil
}
