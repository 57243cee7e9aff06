package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"neuroskip/internal/services"
	"neuroskip/internal/testsupport"
)

func TestValidateID(t *testing.T) {
	valid := []string{"dQw4w9WgXcQ", "abc_def-123", "00000000000"}
	for _, id := range valid {
		if err := ValidateID(id); err != nil {
			t.Errorf("ValidateID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{"", "short", "waytoolongvideoid", "bad!chars@@", "dQw4w9WgXc"}
	for _, id := range invalid {
		err := ValidateID(id)
		if !errors.Is(err, services.ErrValidation) {
			t.Errorf("ValidateID(%q) = %v, want validation error", id, err)
		}
	}
}

func TestFetchAudioUsesCachedFile(t *testing.T) {
	dir := t.TempDir()
	fetcher := NewFetcher(dir, nil)
	cached := fetcher.AudioPath("dQw4w9WgXcQ")
	testsupport.WriteFile(t, cached, 64)

	called := false
	fetcher.WithCommandRunner(func(context.Context, string, ...string) ([]byte, error) {
		called = true
		return nil, nil
	})

	path, err := fetcher.FetchAudio(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("FetchAudio: %v", err)
	}
	if path != cached {
		t.Errorf("path = %q, want %q", path, cached)
	}
	if called {
		t.Error("cached file must skip the downloader")
	}
}

func TestFetchAudioRedownloadsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	fetcher := NewFetcher(dir, nil)
	target := fetcher.AudioPath("dQw4w9WgXcQ")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(target, nil, 0o644); err != nil {
		t.Fatalf("write empty file: %v", err)
	}

	fetcher.WithCommandRunner(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		// The runner writes the output file the way yt-dlp would.
		var out string
		for i, arg := range args {
			if arg == "--output" && i+1 < len(args) {
				out = args[i+1]
			}
		}
		if out == "" {
			t.Fatal("missing --output argument")
		}
		return nil, os.WriteFile(out, []byte("mp3data"), 0o644)
	})

	path, err := fetcher.FetchAudio(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("FetchAudio: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Fatalf("downloaded file missing or empty: %v", err)
	}
}

func TestFetchAudioToolFailure(t *testing.T) {
	fetcher := NewFetcher(t.TempDir(), nil)
	fetcher.WithCommandRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("video unavailable"), errors.New("exit status 1")
	})

	_, err := fetcher.FetchAudio(context.Background(), "dQw4w9WgXcQ")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestFetchAudioEmptyDownloadFails(t *testing.T) {
	fetcher := NewFetcher(t.TempDir(), nil)
	fetcher.WithCommandRunner(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		return nil, os.WriteFile(args[len(args)-2], nil, 0o644)
	})

	_, err := fetcher.FetchAudio(context.Background(), "dQw4w9WgXcQ")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty download, got %v", err)
	}
}
