package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"neuroskip/internal/media"
	"neuroskip/internal/services"
)

type fakeEngine struct {
	spans    map[string][]Span
	language string
	failFor  map[string]bool
	calls    []string
}

func (f *fakeEngine) Transcribe(_ context.Context, path, language string) ([]Span, string, error) {
	f.calls = append(f.calls, path+"|"+language)
	if f.failFor[path] {
		return nil, "", errors.New("decode error")
	}
	return f.spans[path], f.language, nil
}

type fakeProber struct {
	invalid map[string]bool
	longest string
}

func (f *fakeProber) Verify(_ context.Context, path string) bool {
	return !f.invalid[path]
}

func (f *fakeProber) LongestPart(_ context.Context, parts []media.Part) (media.Part, bool) {
	for _, part := range parts {
		if part.Path == f.longest {
			return part, true
		}
	}
	if len(parts) == 0 {
		return media.Part{}, false
	}
	return parts[0], true
}

type recordingCleaner struct {
	removed []string
}

func (r *recordingCleaner) RemoveFile(path string) {
	r.removed = append(r.removed, path)
	_ = os.Remove(path)
}

func writeParts(t *testing.T, dir string, names ...string) []media.Part {
	t.Helper()
	parts := make([]media.Part, len(names))
	for i, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
			t.Fatalf("write part: %v", err)
		}
		parts[i] = media.Part{Path: path, Index: i}
	}
	return parts
}

func TestRunReconstructsOffsets(t *testing.T) {
	dir := t.TempDir()
	parts := writeParts(t, dir, "p0.mp3", "p1.mp3", "p2.mp3")

	engine := &fakeEngine{
		language: "en",
		spans: map[string][]Span{
			parts[0].Path: {{Start: 1.0, End: 2.0, Text: "a"}},
			parts[1].Path: {{Start: 0.5, End: 3.0, Text: "b"}},
			parts[2].Path: {{Start: 2.0, End: 4.0, Text: "c"}},
		},
	}
	cleaner := &recordingCleaner{}
	stage := NewStage(engine, &fakeProber{}, cleaner, nil)

	var starts []float64
	err := stage.Run(context.Background(), parts, []float64{12.0, 30.0}, "en", func(_ int, spans []Span, _ string) error {
		for _, span := range spans {
			starts = append(starts, span.Start)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []float64{1.0, 12.5, 32.0}
	if len(starts) != len(want) {
		t.Fatalf("starts = %v, want %v", starts, want)
	}
	for i := range want {
		if starts[i] != want[i] {
			t.Errorf("start[%d] = %v, want %v", i, starts[i], want[i])
		}
	}
}

func TestRunDetectsLanguageFromLongestPart(t *testing.T) {
	dir := t.TempDir()
	parts := writeParts(t, dir, "p0.mp3", "p1.mp3")

	engine := &fakeEngine{language: "pt", spans: map[string][]Span{}}
	prober := &fakeProber{longest: parts[1].Path}
	stage := NewStage(engine, prober, &recordingCleaner{}, nil)

	err := stage.Run(context.Background(), parts, []float64{10}, "", func(int, []Span, string) error { return nil })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// First call is the detection pass on the longest part with no language.
	if len(engine.calls) == 0 || engine.calls[0] != parts[1].Path+"|" {
		t.Errorf("calls = %v, want detection on %s first", engine.calls, parts[1].Path)
	}
	// Subsequent transcriptions carry the detected language.
	for _, call := range engine.calls[1:] {
		if got := call[len(call)-2:]; got != "pt" {
			t.Errorf("expected detected language on call %q", call)
		}
	}
}

func TestRunLanguageDetectionFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	parts := writeParts(t, dir, "p0.mp3")

	engine := &fakeEngine{failFor: map[string]bool{parts[0].Path: true}}
	stage := NewStage(engine, &fakeProber{longest: parts[0].Path}, &recordingCleaner{}, nil)

	yielded := false
	err := stage.Run(context.Background(), parts, nil, "", func(int, []Span, string) error {
		yielded = true
		return nil
	})
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
	if yielded {
		t.Error("no parts should be yielded after fatal detection failure")
	}
}

func TestRunRejectsUnanchoredParts(t *testing.T) {
	dir := t.TempDir()
	parts := writeParts(t, dir, "p0.mp3", "p1.mp3", "p2.mp3")

	engine := &fakeEngine{language: "en", spans: map[string][]Span{}}
	stage := NewStage(engine, &fakeProber{}, &recordingCleaner{}, nil)

	err := stage.Run(context.Background(), parts, []float64{10}, "en", func(int, []Span, string) error {
		t.Fatal("no parts should be yielded")
		return nil
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTranscribePartDegradesAndDeletes(t *testing.T) {
	dir := t.TempDir()
	parts := writeParts(t, dir, "bad.mp3")

	engine := &fakeEngine{failFor: map[string]bool{parts[0].Path: true}}
	cleaner := &recordingCleaner{}
	stage := NewStage(engine, &fakeProber{}, cleaner, nil)

	spans, detected := stage.TranscribePart(context.Background(), parts[0], 0, "en")
	if len(spans) != 0 || detected != "" {
		t.Errorf("expected empty result, got %v %q", spans, detected)
	}
	if len(cleaner.removed) != 1 || cleaner.removed[0] != parts[0].Path {
		t.Errorf("part not deleted after failed attempt: %v", cleaner.removed)
	}
}

func TestTranscribePartSkipsZeroByteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.mp3")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	engine := &fakeEngine{language: "en", spans: map[string][]Span{path: {{Text: "should not appear"}}}}
	cleaner := &recordingCleaner{}
	stage := NewStage(engine, &fakeProber{}, cleaner, nil)

	spans, _ := stage.TranscribePart(context.Background(), media.Part{Path: path}, 0, "en")
	if len(spans) != 0 {
		t.Errorf("zero-byte part must yield no spans, got %v", spans)
	}
	if len(engine.calls) != 0 {
		t.Error("engine should not be invoked for a zero-byte part")
	}
	if len(cleaner.removed) != 1 {
		t.Error("zero-byte part should still be cleaned up")
	}
}

func TestRunYieldErrorStopsBatch(t *testing.T) {
	dir := t.TempDir()
	parts := writeParts(t, dir, "p0.mp3", "p1.mp3")
	engine := &fakeEngine{
		language: "en",
		spans: map[string][]Span{
			parts[0].Path: {{Text: "a"}},
			parts[1].Path: {{Text: "b"}},
		},
	}
	stage := NewStage(engine, &fakeProber{}, &recordingCleaner{}, nil)

	sentinel := errors.New("persist failed")
	count := 0
	err := stage.Run(context.Background(), parts, []float64{5}, "en", func(int, []Span, string) error {
		count++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected yield error, got %v", err)
	}
	if count != 1 {
		t.Errorf("expected batch to stop after first yield, got %d", count)
	}
}
