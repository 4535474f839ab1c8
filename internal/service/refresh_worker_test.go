package service

import (
	"context"
	"testing"

	"github.com/mathieu-neron/nichescope/internal/model"
)

func TestRefreshWorker_FlushDeduplicates(t *testing.T) {
	f := newNicheFixture(t)
	ctx := context.Background()

	run, err := f.svc.Analyze(ctx, model.AnalyzeRequest{Query: "minecraft", UserID: "u"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	w := NewRefreshWorker(nil, f.svc, 0)
	if w.window <= 0 {
		t.Fatal("zero window should fall back to the default")
	}

	w.Enqueue(run.ID)
	w.Enqueue(run.ID)
	w.Enqueue("")

	if got := w.Flush(ctx); got != 1 {
		t.Errorf("recomputed = %d, want 1", got)
	}
	if f.history.runs[run.ID].RefreshedAt == nil {
		t.Error("run should be marked refreshed")
	}
	if got := w.Flush(ctx); got != 0 {
		t.Errorf("second flush recomputed %d, want 0", got)
	}
}

func TestRefreshWorker_FlushSkipsMissingRuns(t *testing.T) {
	f := newNicheFixture(t)
	w := NewRefreshWorker(nil, f.svc, 0)

	w.Enqueue("gone")
	if got := w.Flush(context.Background()); got != 0 {
		t.Errorf("recomputed = %d, want 0", got)
	}
}
