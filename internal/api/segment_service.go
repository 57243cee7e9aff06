package api

import (
	"context"
	"errors"

	"neuroskip/internal/segments"
	"neuroskip/internal/services"
	"neuroskip/internal/source"
	"neuroskip/internal/tasks"
)

// ProcessingDispatcher is the slice of the task dispatcher the lookup needs.
type ProcessingDispatcher interface {
	DispatchProcessing(ctx context.Context, externalID, provider string) (*tasks.Task, error)
}

// SegmentService answers segment lookups. A cache hit returns the stored
// segments; a miss triggers processing and reports the in-progress state
// without blocking on the pipeline.
type SegmentService struct {
	store      *segments.Store
	dispatcher ProcessingDispatcher
}

// NewSegmentService builds the lookup service.
func NewSegmentService(store *segments.Store, dispatcher ProcessingDispatcher) *SegmentService {
	return &SegmentService{store: store, dispatcher: dispatcher}
}

// Lookup resolves one (externalID, provider) pair. It never waits for
// processing to finish: the response is either the cached segments or an
// immediate "processing" acknowledgement.
func (s *SegmentService) Lookup(ctx context.Context, externalID, provider string) (*SegmentsResponse, error) {
	if err := source.ValidateID(externalID); err != nil {
		return nil, err
	}

	stored, err := s.store.Query(ctx, externalID, provider)
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 {
		views := make([]SegmentView, 0, len(stored))
		for _, segment := range stored {
			views = append(views, SegmentView{
				Start: segment.Start,
				End:   segment.End,
				Text:  segment.Text,
				Type:  segment.Type,
			})
		}
		return &SegmentsResponse{
			Message: MessageCached,
			Data: SegmentsData{
				Segments:   views,
				ExternalID: externalID,
				Provider:   provider,
				Cached:     true,
			},
		}, nil
	}

	message := MessageStarted
	if _, err := s.dispatcher.DispatchProcessing(ctx, externalID, provider); err != nil {
		if !errors.Is(err, services.ErrLockContention) {
			return nil, err
		}
		message = MessageInProgress
	}

	return &SegmentsResponse{
		Message: message,
		Data: SegmentsData{
			ExternalID: externalID,
			Provider:   provider,
			Status:     StatusProcessing,
			Cached:     false,
		},
	}, nil
}

// Stats aggregates stored segment counts for the status endpoint.
func (s *SegmentService) Stats(ctx context.Context) (SegmentStats, error) {
	counts, err := s.store.Stats(ctx)
	if err != nil {
		return SegmentStats{}, err
	}
	return SegmentStats{
		Ads:          counts[segments.TypeAd],
		Content:      counts[segments.TypeContent],
		Unclassified: counts["unclassified"],
	}, nil
}
