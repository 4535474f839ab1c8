package service

import (
	"context"
	"testing"
	"time"

	"github.com/mathieu-neron/nichescope/internal/model"
)

func TestCompetitorWorker_TickSnapshotsTracked(t *testing.T) {
	svc, _, store, _ := newCompetitorFixture()
	store.tracked[tracked{"u1", "UCbakes"}] = model.CompetitorChannel{ChannelID: "UCbakes"}

	w := NewCompetitorWorker(svc, time.Hour)
	w.tick(context.Background())

	snaps, err := svc.Snapshots(context.Background(), "UCbakes", 0)
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if len(snaps) != 1 {
		t.Errorf("got %d snapshots, want 1", len(snaps))
	}
}

func TestCompetitorWorker_StartReturnsOnCancel(t *testing.T) {
	svc, _, _, _ := newCompetitorFixture()
	w := NewCompetitorWorker(svc, 0)
	if w.interval != 6*time.Hour {
		t.Errorf("default interval = %s, want 6h", w.interval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
