package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathieu-neron/nichescope/internal/model"
)

// RefreshChannel is the NOTIFY channel the refresh worker listens on.
const RefreshChannel = "analysis_refresh"

type HistoryRepo struct {
	pool *pgxpool.Pool
}

func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

// Save inserts a completed analysis run.
func (r *HistoryRepo) Save(ctx context.Context, run *model.AnalysisRun) error {
	niches, err := json.Marshal(run.Niches)
	if err != nil {
		return fmt.Errorf("marshal niches: %w", err)
	}
	videos, err := json.Marshal(run.Videos)
	if err != nil {
		return fmt.Errorf("marshal videos: %w", err)
	}
	topName, topScore := topNiche(run.Niches)

	_, err = r.pool.Exec(ctx, `
		INSERT INTO analysis_runs (id, user_id, query, specificity, clusterer, video_count,
		                           top_niche, top_opportunity, niches, videos, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		run.ID, run.UserID, run.Query, run.Specificity, run.Clusterer, run.VideoCount,
		topName, topScore, niches, videos, run.CreatedAt)
	return err
}

// FindByID returns a full run. Returns pgx.ErrNoRows if the run does not exist.
func (r *HistoryRepo) FindByID(ctx context.Context, id string) (*model.AnalysisRun, error) {
	var run model.AnalysisRun
	var niches, videos []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, query, specificity, clusterer, video_count, niches, videos,
		       created_at, refreshed_at
		FROM analysis_runs
		WHERE id = $1`, id).Scan(
		&run.ID, &run.UserID, &run.Query, &run.Specificity, &run.Clusterer, &run.VideoCount,
		&niches, &videos, &run.CreatedAt, &run.RefreshedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(niches, &run.Niches); err != nil {
		return nil, fmt.Errorf("decode niches for run %s: %w", id, err)
	}
	if err := json.Unmarshal(videos, &run.Videos); err != nil {
		return nil, fmt.Errorf("decode videos for run %s: %w", id, err)
	}
	return &run, nil
}

// ListByUser returns run summaries for a user, newest first.
func (r *HistoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.AnalysisSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, query, jsonb_array_length(niches), video_count, top_niche, top_opportunity, created_at
		FROM analysis_runs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []model.AnalysisSummary{}
	for rows.Next() {
		var s model.AnalysisSummary
		if err := rows.Scan(&s.ID, &s.Query, &s.NicheCount, &s.VideoCount, &s.TopNiche, &s.TopOpportunity, &s.CreatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Delete removes a run owned by userID. Returns pgx.ErrNoRows if nothing matched.
func (r *HistoryRepo) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM analysis_runs WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateNiches replaces the scored niches of a run and stamps refreshed_at.
func (r *HistoryRepo) UpdateNiches(ctx context.Context, id string, niches []model.NicheAnalysis, refreshedAt time.Time) error {
	data, err := json.Marshal(niches)
	if err != nil {
		return fmt.Errorf("marshal niches: %w", err)
	}
	topName, topScore := topNiche(niches)

	tag, err := r.pool.Exec(ctx, `
		UPDATE analysis_runs
		SET niches = $1, top_niche = $2, top_opportunity = $3, refreshed_at = $4
		WHERE id = $5`, data, topName, topScore, refreshedAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// NotifyRefresh queues a run for recomputation by the refresh worker.
func (r *HistoryRepo) NotifyRefresh(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, RefreshChannel, id)
	return err
}

// Stats returns aggregate history statistics.
func (r *HistoryRepo) Stats(ctx context.Context) (*model.StatsResponse, error) {
	stats := &model.StatsResponse{TopQueries: map[string]int{}}

	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT user_id),
			COALESCE(AVG(top_opportunity), 0),
			COUNT(*) FILTER (WHERE created_at > NOW() - INTERVAL '24 hours')
		FROM analysis_runs`).Scan(&stats.TotalRuns, &stats.TotalUsers, &stats.AvgOpportunity, &stats.RunsLast24h)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(DISTINCT channel_id) FROM competitor_channels),
			(SELECT COUNT(*) FROM competitor_snapshots)`).Scan(&stats.TrackedChannels, &stats.Snapshots)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT LOWER(query), COUNT(*)
		FROM analysis_runs
		GROUP BY LOWER(query)
		ORDER BY COUNT(*) DESC
		LIMIT 10`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var q string
		var n int
		if err := rows.Scan(&q, &n); err != nil {
			return nil, err
		}
		stats.TopQueries[q] = n
	}
	return stats, rows.Err()
}

func topNiche(niches []model.NicheAnalysis) (string, int) {
	name, best := "", 0
	for i, n := range niches {
		if i == 0 || n.Metrics.OpportunityScore > best {
			name, best = n.Name, n.Metrics.OpportunityScore
		}
	}
	return name, best
}
