package model

import (
	"errors"
	"testing"
	"time"
)

func TestFormatDerivation(t *testing.T) {
	tests := []struct {
		format      Format
		kind        MediaKind
		tier        QualityTier
		ext         string
		contentType string
	}{
		{FormatMP4, MediaVideo, TierStandard, "mp4", "video/mp4"},
		{FormatMP4HD, MediaVideo, TierHigh, "mp4", "video/mp4"},
		{FormatMP3, MediaAudio, TierStandard, "mp3", "audio/mpeg"},
		{FormatMP3HQ, MediaAudio, TierHigh, "mp3", "audio/mpeg"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			if got := tt.format.MediaKind(); got != tt.kind {
				t.Errorf("MediaKind() = %s, want %s", got, tt.kind)
			}
			if got := tt.format.Tier(); got != tt.tier {
				t.Errorf("Tier() = %s, want %s", got, tt.tier)
			}
			if got := tt.format.Extension(); got != tt.ext {
				t.Errorf("Extension() = %s, want %s", got, tt.ext)
			}
			if got := tt.format.MediaKind().ContentType(); got != tt.contentType {
				t.Errorf("ContentType() = %s, want %s", got, tt.contentType)
			}
		})
	}
}

func TestObjectKey(t *testing.T) {
	if got := ObjectKey("123", FormatMP4); got != "mp4/123.mp4" {
		t.Errorf("expected mp4/123.mp4, got %s", got)
	}
	if got := ObjectKey("abc", FormatMP3HQ); got != "mp3/abc.mp3" {
		t.Errorf("expected mp3/abc.mp3, got %s", got)
	}
}

func TestApply_SuccessfulLifecycle(t *testing.T) {
	now := time.Now()
	d := NewDownload("id-1", "https://youtu.be/abc", FormatMP4, now)

	if d.Status != StatusProcessing || d.Stage != StageDownloading || d.Progress != 0 {
		t.Fatalf("unexpected initial state: %+v", d)
	}

	steps := []DownloadUpdate{
		ProgressUpdate(40),
		ProgressUpdate(100),
		StageUpdate(StageProcessing),
		StageUpdate(StageUploading),
		ProgressUpdate(55),
		CompletedUpdate(),
	}
	for i, u := range steps {
		if err := d.Apply(u, now); err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if d.Progress < 0 || d.Progress > 100 {
			t.Fatalf("step %d: progress out of range: %d", i, d.Progress)
		}
	}

	if d.Status != StatusCompleted || d.Stage != StageCompleted || d.Progress != 100 {
		t.Errorf("unexpected final state: %+v", d)
	}
}

func TestApply_StageAdvanceResetsProgress(t *testing.T) {
	d := NewDownload("id", "u", FormatMP4, time.Now())
	_ = d.Apply(ProgressUpdate(80), time.Now())

	stage := StageProcessing
	if err := d.Apply(DownloadUpdate{Stage: &stage}, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Progress != 0 {
		t.Errorf("expected progress reset to 0, got %d", d.Progress)
	}
}

func TestApply_RejectsRegression(t *testing.T) {
	d := NewDownload("id", "u", FormatMP4, time.Now())
	_ = d.Apply(StageUpdate(StageUploading), time.Now())

	err := d.Apply(StageUpdate(StageDownloading), time.Now())
	if !errors.Is(err, ErrStageRegression) {
		t.Errorf("expected ErrStageRegression, got %v", err)
	}
	if d.Stage != StageUploading {
		t.Errorf("stage changed after rejected update: %s", d.Stage)
	}
}

func TestApply_TerminalIsFinal(t *testing.T) {
	d := NewDownload("id", "u", FormatMP3, time.Now())
	_ = d.Apply(ProgressUpdate(30), time.Now())
	if err := d.Apply(FailedUpdate("ExtractionFailed: boom"), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Progress != 30 {
		t.Errorf("failure must keep last progress, got %d", d.Progress)
	}

	err := d.Apply(CompletedUpdate(), time.Now())
	if !errors.Is(err, ErrTerminal) {
		t.Errorf("expected ErrTerminal, got %v", err)
	}
	if d.Status != StatusFailed {
		t.Errorf("status reverted to %s", d.Status)
	}
}

func TestApply_CompletedStageNeedsCompletedStatus(t *testing.T) {
	d := NewDownload("id", "u", FormatMP4, time.Now())
	stage := StageCompleted
	if err := d.Apply(DownloadUpdate{Stage: &stage}, time.Now()); err == nil {
		t.Error("expected error for completed stage without completed status")
	}
}

func TestApply_FilePathImmutable(t *testing.T) {
	d := NewDownload("id", "u", FormatMP4, time.Now())
	p1, p2 := "mp4/id.mp4", "mp4/other.mp4"
	if err := d.Apply(DownloadUpdate{FilePath: &p1}, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.Apply(DownloadUpdate{FilePath: &p2}, time.Now()); err == nil {
		t.Error("expected error when changing file path")
	}
}

func TestClampProgress(t *testing.T) {
	for in, want := range map[int]int{-5: 0, 0: 0, 42: 42, 100: 100, 130: 100} {
		if got := ClampProgress(in); got != want {
			t.Errorf("ClampProgress(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestErrorKindMatching(t *testing.T) {
	err := NewError(KindExtractionFailed, "vimeo config", errors.New("connection reset"))

	if !errors.Is(err, ErrExtractionFailed) {
		t.Error("expected errors.Is to match by kind")
	}
	if errors.Is(err, ErrTransferFailed) {
		t.Error("expected kinds to differ")
	}
	if kind, ok := KindOf(err); !ok || kind != KindExtractionFailed {
		t.Errorf("KindOf = %s, %v", kind, ok)
	}
	if got := err.Error(); got != "ExtractionFailed: vimeo config: connection reset" {
		t.Errorf("unexpected message %q", got)
	}
}
