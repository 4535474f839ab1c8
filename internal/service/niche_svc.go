package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mathieu-neron/nichescope/internal/cluster"
	"github.com/mathieu-neron/nichescope/internal/events"
	"github.com/mathieu-neron/nichescope/internal/logging"
	"github.com/mathieu-neron/nichescope/internal/model"
	"github.com/mathieu-neron/nichescope/internal/youtube"
	"github.com/mathieu-neron/nichescope/pkg/hash"
)

// ErrNoVideos is returned when a search yields nothing to analyze.
var ErrNoVideos = errors.New("no videos found for query")

const (
	defaultMaxResults   = 50
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Sort keys accepted by SortNiches.
const (
	SortOpportunity = "opportunity"
	SortViews       = "views"
	SortVPH         = "vph"
	SortSaturation  = "saturation"
	SortTrend       = "trend"
	SortChannels    = "channels"
)

// ValidSortKeys are the accepted SortNiches keys.
var ValidSortKeys = map[string]bool{
	SortOpportunity: true,
	SortViews:       true,
	SortVPH:         true,
	SortSaturation:  true,
	SortTrend:       true,
	SortChannels:    true,
}

// VideoSource searches YouTube for videos matching a query.
type VideoSource interface {
	SearchVideos(ctx context.Context, query string, opts youtube.SearchOptions) ([]model.Video, error)
}

// HistoryStore persists analysis runs.
type HistoryStore interface {
	Save(ctx context.Context, run *model.AnalysisRun) error
	FindByID(ctx context.Context, id string) (*model.AnalysisRun, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.AnalysisSummary, error)
	Delete(ctx context.Context, id, userID string) error
	UpdateNiches(ctx context.Context, id string, niches []model.NicheAnalysis, refreshedAt time.Time) error
	NotifyRefresh(ctx context.Context, id string) error
}

// Publisher sends domain events.
type Publisher interface {
	Publish(subject string, v any) error
}

// FilterOptions narrows a niche list. Zero values disable a filter.
type FilterOptions struct {
	MinOpportunity int
	MaxSaturation  int
	Specificity    string
}

// NicheService runs niche analyses: search, enrich, cluster, score, persist.
type NicheService struct {
	videos    VideoSource
	clusterer *cluster.Chain
	metrics   *MetricsService
	history   HistoryStore
	cache     *CacheService
	events    Publisher
}

func NewNicheService(videos VideoSource, clusterer *cluster.Chain, metrics *MetricsService,
	history HistoryStore, cache *CacheService, publisher Publisher) *NicheService {
	return &NicheService{
		videos:    videos,
		clusterer: clusterer,
		metrics:   metrics,
		history:   history,
		cache:     cache,
		events:    publisher,
	}
}

// Analyze runs a full niche analysis for req and stores it in the user's
// history. Identical requests within AnalysisCacheTTL reuse the cached
// result instead of calling YouTube and the clusterer again.
func (s *NicheService) Analyze(ctx context.Context, req model.AnalyzeRequest) (*model.AnalysisRun, error) {
	log := logging.Component("niche")
	if req.MaxResults <= 0 {
		req.MaxResults = defaultMaxResults
	}
	key := hash.AnalysisKey(req.Query, req.MaxResults, req.PublishedWithinDays, req.Specificity)

	run, err := s.cachedAnalysis(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	if run == nil {
		run, err = s.Compute(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetAnalysis(ctx, key, run); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	} else {
		run.Cached = true
	}

	run.ID = uuid.NewString()
	run.UserID = req.UserID
	run.CreatedAt = time.Now().UTC()
	run.RefreshedAt = nil

	if err := s.history.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("save analysis run: %w", err)
	}

	s.publish(events.SubjectAnalysisCompleted, run)
	log.Info().
		Str("run", run.ID).
		Str("query", run.Query).
		Str("clusterer", run.Clusterer).
		Int("videos", run.VideoCount).
		Int("niches", len(run.Niches)).
		Bool("cached", run.Cached).
		Msg("analysis complete")
	return run, nil
}

// Compute searches, enriches, clusters and scores without touching the cache
// or history. The returned run has no ID or owner.
func (s *NicheService) Compute(ctx context.Context, req model.AnalyzeRequest) (*model.AnalysisRun, error) {
	if req.MaxResults <= 0 {
		req.MaxResults = defaultMaxResults
	}
	opts := youtube.SearchOptions{MaxResults: int64(req.MaxResults)}
	if req.PublishedWithinDays > 0 {
		opts.PublishedAfter = time.Now().AddDate(0, 0, -req.PublishedWithinDays)
	}

	videos, err := s.videos.SearchVideos(ctx, req.Query, opts)
	if err != nil {
		return nil, fmt.Errorf("search videos: %w", err)
	}
	if len(videos) == 0 {
		return nil, ErrNoVideos
	}
	videos = s.metrics.EnrichAll(videos)

	clusters, name, err := s.clusterer.Cluster(ctx, videos, req.Specificity)
	if err != nil {
		return nil, fmt.Errorf("cluster videos: %w", err)
	}

	niches := s.scoreClusters(clusters, videos)
	SortNiches(niches, SortOpportunity)

	return &model.AnalysisRun{
		Query:       req.Query,
		Specificity: req.Specificity,
		Clusterer:   name,
		VideoCount:  len(videos),
		Niches:      niches,
		Videos:      videos,
	}, nil
}

func (s *NicheService) cachedAnalysis(ctx context.Context, key string) (*model.AnalysisRun, error) {
	data, err := s.cache.GetAnalysis(ctx, key)
	if err != nil || data == nil {
		return nil, err
	}
	var run model.AnalysisRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode cached analysis: %w", err)
	}
	return &run, nil
}

// Score enriches an ad-hoc video list and computes its niche metrics. Nothing is persisted.
func (s *NicheService) Score(videos []model.Video) model.ScoreResponse {
	enriched := s.metrics.EnrichAll(videos)
	return model.ScoreResponse{
		Videos:  enriched,
		Metrics: s.metrics.CalculateNicheMetrics(enriched),
	}
}

// scoreClusters computes metrics for each cluster over the enriched video set.
func (s *NicheService) scoreClusters(clusters []model.NicheCluster, videos []model.Video) []model.NicheAnalysis {
	byID := make(map[string]model.Video, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
	}

	niches := make([]model.NicheAnalysis, 0, len(clusters))
	for _, c := range clusters {
		members := make([]model.Video, 0, len(c.VideoIDs))
		for _, id := range c.VideoIDs {
			if v, ok := byID[id]; ok {
				members = append(members, v)
			}
		}
		niches = append(niches, model.NicheAnalysis{
			Name:        c.Name,
			Description: c.Description,
			VideoIDs:    c.VideoIDs,
			Keywords:    c.Keywords,
			Specificity: c.Specificity,
			Metrics:     s.metrics.CalculateNicheMetrics(members),
		})
	}
	return niches
}

// Recompute re-enriches a stored run's videos against the current clock and
// rescores every niche. The run is updated in place and persisted.
func (s *NicheService) Recompute(ctx context.Context, id string) (*model.AnalysisRun, error) {
	run, err := s.history.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	videos := s.metrics.EnrichAll(run.Videos)
	clusters := make([]model.NicheCluster, len(run.Niches))
	for i, n := range run.Niches {
		clusters[i] = model.NicheCluster{
			Name:        n.Name,
			Description: n.Description,
			VideoIDs:    n.VideoIDs,
			Keywords:    n.Keywords,
			Specificity: n.Specificity,
		}
	}
	niches := s.scoreClusters(clusters, videos)
	SortNiches(niches, SortOpportunity)

	now := time.Now().UTC()
	if err := s.history.UpdateNiches(ctx, id, niches, now); err != nil {
		return nil, fmt.Errorf("update run %s: %w", id, err)
	}
	if err := s.cache.InvalidateRun(ctx, id); err != nil {
		logging.Component("niche").Warn().Err(err).Str("run", id).Msg("cache invalidate failed")
	}

	run.Videos = videos
	run.Niches = niches
	run.RefreshedAt = &now
	s.publish(events.SubjectAnalysisRefreshed, run)
	return run, nil
}

// History lists a user's runs, newest first.
func (s *NicheService) History(ctx context.Context, userID string, limit, offset int) ([]model.AnalysisSummary, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)
	offset = max(offset, 0)
	return s.history.ListByUser(ctx, userID, limit, offset)
}

// GetRun returns one stored run, served from cache when possible.
func (s *NicheService) GetRun(ctx context.Context, id string) (*model.AnalysisRun, error) {
	log := logging.Component("niche")

	data, err := s.cache.GetRun(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("run", id).Msg("cache read failed")
	}
	if data != nil {
		var run model.AnalysisRun
		if err := json.Unmarshal(data, &run); err == nil {
			return &run, nil
		}
	}

	run, err := s.history.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetRun(ctx, id, run); err != nil {
		log.Warn().Err(err).Str("run", id).Msg("cache write failed")
	}
	return run, nil
}

// DeleteRun removes a run owned by userID.
func (s *NicheService) DeleteRun(ctx context.Context, userID, id string) error {
	if err := s.history.Delete(ctx, id, userID); err != nil {
		return err
	}
	if err := s.cache.InvalidateRun(ctx, id); err != nil {
		logging.Component("niche").Warn().Err(err).Str("run", id).Msg("cache invalidate failed")
	}
	return nil
}

// RequestRefresh queues a run for recomputation by the refresh worker.
func (s *NicheService) RequestRefresh(ctx context.Context, id string) error {
	if _, err := s.history.FindByID(ctx, id); err != nil {
		return err
	}
	return s.history.NotifyRefresh(ctx, id)
}

func (s *NicheService) publish(subject string, run *model.AnalysisRun) {
	if s.events == nil {
		return
	}
	ev := events.AnalysisEvent{
		RunID:      run.ID,
		UserID:     run.UserID,
		Query:      run.Query,
		NicheCount: len(run.Niches),
		At:         time.Now().UTC(),
	}
	if len(run.Niches) > 0 {
		ev.TopNiche = run.Niches[0].Name
		ev.TopOpportunity = run.Niches[0].Metrics.OpportunityScore
	}
	if err := s.events.Publish(subject, ev); err != nil {
		logging.Component("niche").Warn().Err(err).Str("subject", subject).Msg("publish failed")
	}
}

// SortNiches orders niches in place by the given key. Saturation and channel
// count sort ascending (less competition first); every other key sorts
// descending. Unknown keys sort by opportunity. Ties keep their input order.
func SortNiches(niches []model.NicheAnalysis, by string) {
	var less func(a, b model.NicheMetrics) bool
	switch strings.ToLower(by) {
	case SortViews:
		less = func(a, b model.NicheMetrics) bool { return a.TotalViews > b.TotalViews }
	case SortVPH:
		less = func(a, b model.NicheMetrics) bool { return a.AvgVPH > b.AvgVPH }
	case SortSaturation:
		less = func(a, b model.NicheMetrics) bool { return a.SaturationScore < b.SaturationScore }
	case SortTrend:
		less = func(a, b model.NicheMetrics) bool { return a.TrendScore > b.TrendScore }
	case SortChannels:
		less = func(a, b model.NicheMetrics) bool { return a.UniqueChannels < b.UniqueChannels }
	default:
		less = func(a, b model.NicheMetrics) bool { return a.OpportunityScore > b.OpportunityScore }
	}
	sort.SliceStable(niches, func(i, j int) bool {
		return less(niches[i].Metrics, niches[j].Metrics)
	})
}

// FilterNiches returns the niches matching opts, preserving order.
func FilterNiches(niches []model.NicheAnalysis, opts FilterOptions) []model.NicheAnalysis {
	out := make([]model.NicheAnalysis, 0, len(niches))
	for _, n := range niches {
		if opts.MinOpportunity > 0 && n.Metrics.OpportunityScore < opts.MinOpportunity {
			continue
		}
		if opts.MaxSaturation > 0 && n.Metrics.SaturationScore > opts.MaxSaturation {
			continue
		}
		if opts.Specificity != "" && n.Specificity != opts.Specificity {
			continue
		}
		out = append(out, n)
	}
	return out
}
