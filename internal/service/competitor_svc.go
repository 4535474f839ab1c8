package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mathieu-neron/nichescope/internal/events"
	"github.com/mathieu-neron/nichescope/internal/logging"
	"github.com/mathieu-neron/nichescope/internal/model"
)

const (
	snapshotVideoLimit   = 25
	defaultSnapshotLimit = 30
	maxSnapshotLimit     = 365
)

// ChannelSource looks up channels and their recent uploads on YouTube.
type ChannelSource interface {
	Channel(ctx context.Context, channelID string) (*model.CompetitorChannel, error)
	ChannelVideos(ctx context.Context, channelID string, limit int64) ([]model.Video, error)
}

// CompetitorStore persists tracked channels and their snapshots.
type CompetitorStore interface {
	Upsert(ctx context.Context, ch *model.CompetitorChannel) error
	Delete(ctx context.Context, userID, channelID string) error
	ListByUser(ctx context.Context, userID string) ([]model.CompetitorChannel, error)
	IsTracked(ctx context.Context, userID, channelID string) (bool, error)
	DistinctChannelIDs(ctx context.Context) ([]string, error)
	SaveSnapshot(ctx context.Context, snap *model.CompetitorSnapshot) error
	ListSnapshots(ctx context.Context, channelID string, limit int) ([]model.CompetitorSnapshot, error)
}

// CompetitorService tracks competitor channels and captures periodic snapshots
// of their upload performance.
type CompetitorService struct {
	source  ChannelSource
	store   CompetitorStore
	metrics *MetricsService
	events  Publisher
}

func NewCompetitorService(source ChannelSource, store CompetitorStore, metrics *MetricsService, publisher Publisher) *CompetitorService {
	return &CompetitorService{source: source, store: store, metrics: metrics, events: publisher}
}

// Track adds channelID to the user's watch list and captures a first snapshot.
func (s *CompetitorService) Track(ctx context.Context, userID, channelID string) (*model.CompetitorChannel, error) {
	ch, err := s.source.Channel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	ch.UserID = userID
	ch.AddedAt = time.Now().UTC()

	if err := s.store.Upsert(ctx, ch); err != nil {
		return nil, fmt.Errorf("track channel %s: %w", channelID, err)
	}

	if _, err := s.Snapshot(ctx, channelID); err != nil {
		logging.Component("competitor").Warn().Err(err).Str("channel", channelID).Msg("initial snapshot failed")
	}
	return ch, nil
}

// Untrack removes channelID from the user's watch list.
func (s *CompetitorService) Untrack(ctx context.Context, userID, channelID string) error {
	return s.store.Delete(ctx, userID, channelID)
}

// List returns the user's tracked channels.
func (s *CompetitorService) List(ctx context.Context, userID string) ([]model.CompetitorChannel, error) {
	return s.store.ListByUser(ctx, userID)
}

// IsTracked reports whether the user tracks channelID.
func (s *CompetitorService) IsTracked(ctx context.Context, userID, channelID string) (bool, error) {
	return s.store.IsTracked(ctx, userID, channelID)
}

// Snapshot fetches a channel's recent uploads, scores them as a niche and
// stores the result.
func (s *CompetitorService) Snapshot(ctx context.Context, channelID string) (*model.CompetitorSnapshot, error) {
	videos, err := s.source.ChannelVideos(ctx, channelID, snapshotVideoLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch uploads for %s: %w", channelID, err)
	}
	videos = s.metrics.EnrichAll(videos)

	snap := &model.CompetitorSnapshot{
		ChannelID:  channelID,
		VideoCount: len(videos),
		Metrics:    s.metrics.CalculateNicheMetrics(videos),
		CapturedAt: time.Now().UTC(),
	}

	var bestVPH float64
	for i, v := range videos {
		if i == 0 || v.VPH > bestVPH {
			bestVPH = v.VPH
			snap.TopVideoID = v.ID
		}
	}

	if len(videos) > 0 {
		snap.SubscriberCount = videos[0].SubscriberCount
	} else {
		ch, err := s.source.Channel(ctx, channelID)
		if err != nil {
			return nil, err
		}
		snap.SubscriberCount = ch.SubscriberCount
	}

	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("save snapshot for %s: %w", channelID, err)
	}

	if s.events != nil {
		err := s.events.Publish(events.SubjectSnapshotCaptured, events.SnapshotEvent{
			ChannelID:        channelID,
			SubscriberCount:  snap.SubscriberCount,
			OpportunityScore: snap.Metrics.OpportunityScore,
			TrendScore:       snap.Metrics.TrendScore,
			At:               snap.CapturedAt,
		})
		if err != nil {
			logging.Component("competitor").Warn().Err(err).Str("channel", channelID).Msg("publish failed")
		}
	}
	return snap, nil
}

// SnapshotAll snapshots every channel tracked by any user. Individual
// failures are logged and counted; only a failure to list channels is returned.
func (s *CompetitorService) SnapshotAll(ctx context.Context) (captured, failed int, err error) {
	log := logging.Component("competitor")

	ids, err := s.store.DistinctChannelIDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list tracked channels: %w", err)
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return captured, failed, ctx.Err()
		}
		if _, err := s.Snapshot(ctx, id); err != nil {
			log.Warn().Err(err).Str("channel", id).Msg("snapshot failed")
			failed++
			continue
		}
		captured++
	}
	return captured, failed, nil
}

// Snapshots returns a channel's snapshot history, newest first.
func (s *CompetitorService) Snapshots(ctx context.Context, channelID string, limit int) ([]model.CompetitorSnapshot, error) {
	if limit <= 0 {
		limit = defaultSnapshotLimit
	}
	return s.store.ListSnapshots(ctx, channelID, min(limit, maxSnapshotLimit))
}
