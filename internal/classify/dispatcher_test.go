package classify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"neuroskip/internal/classify"
	"neuroskip/internal/config"
	"neuroskip/internal/segments"
	"neuroskip/internal/testsupport"
	"neuroskip/internal/transcribe"
)

func TestNewRequiresURL(t *testing.T) {
	if _, err := classify.New(config.Classifier{}); err == nil {
		t.Fatal("expected error when classifier url missing")
	}
}

func TestClientClassify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req classify.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.CurrentSegment != "limited time offer" {
			t.Errorf("currentSegment = %q", req.CurrentSegment)
		}
		if req.NextSegment != nil {
			t.Errorf("nextSegment must be null, got %v", *req.NextSegment)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"1"}`))
	}))
	t.Cleanup(server.Close)

	client, err := classify.New(config.Classifier{URL: server.URL, TimeoutSeconds: 5})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	label, err := client.Classify(context.Background(), classify.Request{CurrentSegment: "limited time offer"})
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if label != classify.LabelAd {
		t.Errorf("label = %q, want %q", label, classify.LabelAd)
	}
}

func TestClientClassifyServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	client, err := classify.New(config.Classifier{URL: server.URL, TimeoutSeconds: 5})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.Classify(context.Background(), classify.Request{CurrentSegment: "x"}); err == nil {
		t.Fatal("expected error for 503 response")
	}
}

type scriptedLabeler struct {
	labels   map[string]string
	failures map[string]bool
	calls    []classify.Request
}

func (s *scriptedLabeler) Classify(_ context.Context, req classify.Request) (string, error) {
	s.calls = append(s.calls, req)
	if s.failures[req.CurrentSegment] {
		return "", errors.New("classifier unavailable")
	}
	if label, ok := s.labels[req.CurrentSegment]; ok {
		return label, nil
	}
	return "0", nil
}

func persistBatch(t *testing.T, store *segments.Store, texts ...string) []int64 {
	t.Helper()
	spans := make([]transcribe.Span, len(texts))
	for i, text := range texts {
		spans[i] = transcribe.Span{Start: float64(i * 10), End: float64(i*10 + 5), Text: text}
	}
	ids, err := store.Persist(context.Background(), "hash", "vid00000000", "youtube", spans, 100)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	return ids
}

func TestDispatcherThreadsContext(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenSegmentStore(t, cfg)
	ids := persistBatch(t, store, "intro", "buy now", "outro")

	labeler := &scriptedLabeler{labels: map[string]string{"buy now": "1"}}
	dispatcher := classify.NewDispatcher(labeler, store, nil)

	result, err := dispatcher.Run(context.Background(), ids)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Classified != 3 || result.Ads != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	if labeler.calls[0].PreviousSegment != nil || labeler.calls[0].PreviousClass != nil {
		t.Error("first call must carry empty context")
	}
	if got := labeler.calls[1].PreviousSegment; got == nil || *got != "intro" {
		t.Errorf("second call previousSegment = %v, want intro", got)
	}
	if got := labeler.calls[1].PreviousClass; got == nil || *got != "0" {
		t.Errorf("second call previousClass = %v, want 0", got)
	}
	if got := labeler.calls[2].PreviousClass; got == nil || *got != "1" {
		t.Errorf("third call previousClass = %v, want 1", got)
	}

	adSegment, err := store.GetByID(context.Background(), ids[1])
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !adSegment.IsAd() {
		t.Errorf("segment type = %q, want ad", adSegment.Type)
	}
	clean, err := store.GetByID(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if clean.Type != "" {
		t.Errorf("non-ad segment mutated to %q", clean.Type)
	}
}

func TestDispatcherFailureResetsContext(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenSegmentStore(t, cfg)
	ids := persistBatch(t, store, "first", "second", "third")

	labeler := &scriptedLabeler{failures: map[string]bool{"second": true}}
	dispatcher := classify.NewDispatcher(labeler, store, nil)

	result, err := dispatcher.Run(context.Background(), ids)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Classified != 2 || result.Failed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if labeler.calls[2].PreviousSegment != nil || labeler.calls[2].PreviousClass != nil {
		t.Error("failed call must clear context for the next segment")
	}

	failed, err := store.GetByID(context.Background(), ids[1])
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if failed.Type != "" {
		t.Errorf("failed segment must stay unclassified, got %q", failed.Type)
	}
}

func TestDispatcherSkipsMissingSegments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenSegmentStore(t, cfg)
	ids := persistBatch(t, store, "only")

	labeler := &scriptedLabeler{}
	dispatcher := classify.NewDispatcher(labeler, store, nil)

	result, err := dispatcher.Run(context.Background(), append([]int64{9999}, ids...))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Missing != 1 || result.Classified != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(labeler.calls) != 1 {
		t.Fatalf("expected one classifier call, got %d", len(labeler.calls))
	}
}
