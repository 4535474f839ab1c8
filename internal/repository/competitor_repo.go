package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathieu-neron/nichescope/internal/model"
)

type CompetitorRepo struct {
	pool *pgxpool.Pool
}

func NewCompetitorRepo(pool *pgxpool.Pool) *CompetitorRepo {
	return &CompetitorRepo{pool: pool}
}

// Upsert adds a channel to a user's watch list, refreshing its metadata if it
// is already tracked.
func (r *CompetitorRepo) Upsert(ctx context.Context, ch *model.CompetitorChannel) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO competitor_channels (user_id, channel_id, title, subscriber_count, video_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, channel_id) DO UPDATE
		SET title = EXCLUDED.title,
		    subscriber_count = EXCLUDED.subscriber_count,
		    video_count = EXCLUDED.video_count`,
		ch.UserID, ch.ChannelID, ch.Title, ch.SubscriberCount, ch.VideoCount)
	return err
}

// Delete removes a channel from a user's watch list. Returns pgx.ErrNoRows if
// the user was not tracking it.
func (r *CompetitorRepo) Delete(ctx context.Context, userID, channelID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM competitor_channels WHERE user_id = $1 AND channel_id = $2`,
		userID, channelID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListByUser returns the channels a user tracks, most recently added first.
func (r *CompetitorRepo) ListByUser(ctx context.Context, userID string) ([]model.CompetitorChannel, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT channel_id, user_id, title, subscriber_count, video_count, added_at, last_checked
		FROM competitor_channels
		WHERE user_id = $1
		ORDER BY added_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	channels := []model.CompetitorChannel{}
	for rows.Next() {
		var ch model.CompetitorChannel
		if err := rows.Scan(&ch.ChannelID, &ch.UserID, &ch.Title, &ch.SubscriberCount,
			&ch.VideoCount, &ch.AddedAt, &ch.LastChecked); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// IsTracked reports whether userID tracks channelID.
func (r *CompetitorRepo) IsTracked(ctx context.Context, userID, channelID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM competitor_channels WHERE user_id = $1 AND channel_id = $2)`,
		userID, channelID).Scan(&exists)
	return exists, err
}

// DistinctChannelIDs returns every channel tracked by at least one user,
// least recently checked first.
func (r *CompetitorRepo) DistinctChannelIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT channel_id
		FROM competitor_channels
		GROUP BY channel_id
		ORDER BY MAX(last_checked) ASC NULLS FIRST`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveSnapshot stores a snapshot and updates the tracked channel rows it belongs to.
func (r *CompetitorRepo) SaveSnapshot(ctx context.Context, snap *model.CompetitorSnapshot) error {
	metrics, err := json.Marshal(snap.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO competitor_snapshots (channel_id, subscriber_count, video_count, top_video_id, metrics, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		snap.ChannelID, snap.SubscriberCount, snap.VideoCount, snap.TopVideoID, metrics, snap.CapturedAt,
	).Scan(&snap.ID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE competitor_channels
		SET subscriber_count = $1, last_checked = $2
		WHERE channel_id = $3`,
		snap.SubscriberCount, snap.CapturedAt, snap.ChannelID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListSnapshots returns up to limit snapshots of a channel, newest first.
func (r *CompetitorRepo) ListSnapshots(ctx context.Context, channelID string, limit int) ([]model.CompetitorSnapshot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, channel_id, subscriber_count, video_count, top_video_id, metrics, captured_at
		FROM competitor_snapshots
		WHERE channel_id = $1
		ORDER BY captured_at DESC
		LIMIT $2`, channelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := []model.CompetitorSnapshot{}
	for rows.Next() {
		var s model.CompetitorSnapshot
		var metrics []byte
		if err := rows.Scan(&s.ID, &s.ChannelID, &s.SubscriberCount, &s.VideoCount,
			&s.TopVideoID, &metrics, &s.CapturedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(metrics, &s.Metrics); err != nil {
			return nil, fmt.Errorf("decode snapshot %d metrics: %w", s.ID, err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}
