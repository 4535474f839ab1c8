package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS analysis_runs (
    id              TEXT PRIMARY KEY,
    user_id         VARCHAR(64) NOT NULL,
    query           TEXT NOT NULL,
    specificity     VARCHAR(16) NOT NULL DEFAULT '',
    clusterer       VARCHAR(16) NOT NULL,
    video_count     INTEGER NOT NULL DEFAULT 0,
    top_niche       TEXT NOT NULL DEFAULT '',
    top_opportunity INTEGER NOT NULL DEFAULT 0,
    niches          JSONB NOT NULL DEFAULT '[]',
    videos          JSONB NOT NULL DEFAULT '[]',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    refreshed_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_analysis_runs_user ON analysis_runs(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS competitor_channels (
    user_id          VARCHAR(64) NOT NULL,
    channel_id       VARCHAR(32) NOT NULL,
    title            TEXT NOT NULL DEFAULT '',
    subscriber_count BIGINT NOT NULL DEFAULT 0,
    video_count      BIGINT NOT NULL DEFAULT 0,
    added_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_checked     TIMESTAMPTZ,
    PRIMARY KEY (user_id, channel_id)
);

CREATE INDEX IF NOT EXISTS idx_competitor_channels_channel ON competitor_channels(channel_id);

CREATE TABLE IF NOT EXISTS competitor_snapshots (
    id               BIGSERIAL PRIMARY KEY,
    channel_id       VARCHAR(32) NOT NULL,
    subscriber_count BIGINT NOT NULL DEFAULT 0,
    video_count      INTEGER NOT NULL DEFAULT 0,
    top_video_id     VARCHAR(16) NOT NULL DEFAULT '',
    metrics          JSONB NOT NULL,
    captured_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_competitor_snapshots_channel ON competitor_snapshots(channel_id, captured_at DESC);

CREATE TABLE IF NOT EXISTS subscriptions (
    user_id    VARCHAR(64) PRIMARY KEY,
    plan       VARCHAR(16) NOT NULL DEFAULT 'free',
    status     VARCHAR(16) NOT NULL DEFAULT 'active',
    expires_at TIMESTAMPTZ
);
`

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
