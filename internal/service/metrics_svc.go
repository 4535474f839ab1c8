package service

import (
	"math"
	"time"

	"github.com/mathieu-neron/nichescope/internal/model"
)

const (
	// Channel size buckets by subscriber count.
	smallChannelMax  = 10_000
	mediumChannelMax = 100_000

	// Trend windows.
	recentWindow = 30 * 24 * time.Hour
	olderWindow  = 60 * 24 * time.Hour

	// Opportunity weights.
	vphWeight         = 0.35
	competitionWeight = 0.25
	saturationWeight  = 0.25
	trendWeight       = 0.15

	// avgVPH is divided by this before capping at 100, so 1000 VPH scores full marks.
	vphNormalizer = 10.0

	maxViewSubRatio = 5.0
)

// MetricsService derives per-video velocity fields and aggregate niche metrics.
// It holds no state beyond its clock.
type MetricsService struct {
	now func() time.Time
}

func NewMetricsService() *MetricsService {
	return &MetricsService{now: time.Now}
}

// NewMetricsServiceAt returns a MetricsService whose clock is fixed at t.
func NewMetricsServiceAt(t time.Time) *MetricsService {
	return &MetricsService{now: func() time.Time { return t }}
}

// Enrich fills the derived fields of v:
//
//	ageInDays    = hours since publish / 24
//	vph          = views / max(hours since publish, 1)
//	engagement   = (likes + comments) / views * 100
//	viewSubRatio = views / subscribers
//	viralScore   = 20*log10(vph+1) + 8*min(viewSubRatio, 5), clamped to [0,100]
func (s *MetricsService) Enrich(v model.Video) model.Video {
	hours := s.now().Sub(v.PublishedAt).Hours()
	if hours < 0 {
		hours = 0
	}

	v.AgeInDays = round2(hours / 24)
	v.VPH = round2(float64(v.ViewCount) / math.Max(hours, 1))

	v.Engagement = 0
	if v.ViewCount > 0 {
		v.Engagement = round2(float64(v.LikeCount+v.CommentCount) / float64(v.ViewCount) * 100)
	}

	v.ViewSubRatio = 0
	if v.SubscriberCount > 0 {
		v.ViewSubRatio = round2(float64(v.ViewCount) / float64(v.SubscriberCount))
	}

	viral := 20*math.Log10(v.VPH+1) + 8*math.Min(v.ViewSubRatio, maxViewSubRatio)
	v.ViralScore = int(clamp(roundHalfUp(viral), 0, 100))
	return v
}

// EnrichAll returns a new slice with every video enriched.
func (s *MetricsService) EnrichAll(videos []model.Video) []model.Video {
	out := make([]model.Video, len(videos))
	for i, v := range videos {
		out[i] = s.Enrich(v)
	}
	return out
}

// CalculateNicheMetrics folds a video set into a NicheMetrics record.
// An empty set yields zeroed metrics.
func (s *MetricsService) CalculateNicheMetrics(videos []model.Video) model.NicheMetrics {
	if len(videos) == 0 {
		return model.NicheMetrics{}
	}

	var totalViews int64
	var vphSum, subSum float64
	for _, v := range videos {
		totalViews += v.ViewCount
		vphSum += v.VPH
		subSum += float64(v.SubscriberCount)
	}
	n := float64(len(videos))

	m := model.NicheMetrics{
		TotalViews:          totalViews,
		AvgVPH:              round2(vphSum / n),
		UniqueChannels:      len(uniqueChannels(videos)),
		AvgSubscribers:      math.Round(subSum / n),
		ChannelDistribution: s.CalculateChannelDistribution(videos),
		SaturationScore:     s.CalculateSaturationScore(videos),
		TrendScore:          s.DetectTrend(videos),
	}
	m.OpportunityScore = s.CalculateOpportunityScore(m)
	return m
}

// CalculateChannelDistribution returns the percentage of unique channels that are
// small (<10K), medium (10K-100K) and large (>=100K). Each channel is classified by
// the subscriber count of its first video in the list.
func (s *MetricsService) CalculateChannelDistribution(videos []model.Video) model.ChannelDistribution {
	channels := uniqueChannels(videos)
	if len(channels) == 0 {
		return model.ChannelDistribution{}
	}

	var small, medium, large int
	for _, subs := range channels {
		switch {
		case subs < smallChannelMax:
			small++
		case subs < mediumChannelMax:
			medium++
		default:
			large++
		}
	}

	total := float64(len(channels))
	return model.ChannelDistribution{
		Small:  int(roundHalfUp(float64(small) / total * 100)),
		Medium: int(roundHalfUp(float64(medium) / total * 100)),
		Large:  int(roundHalfUp(float64(large) / total * 100)),
	}
}

// CalculateSaturationScore returns the percentage of unique channels with more
// than 100K subscribers.
func (s *MetricsService) CalculateSaturationScore(videos []model.Video) int {
	channels := uniqueChannels(videos)
	if len(channels) == 0 {
		return 0
	}

	var big int
	for _, subs := range channels {
		if subs > mediumChannelMax {
			big++
		}
	}
	return int(roundHalfUp(float64(big) / float64(len(channels)) * 100))
}

// DetectTrend compares the mean view count of videos published in the last 30
// days with those published 30-60 days ago:
//
//	trend = round(100 * (recentAvg - olderAvg) / olderAvg)
//
// It returns 0 when either window is empty or the older average is 0. The result
// is not clamped; a niche can grow by more than 100%.
func (s *MetricsService) DetectTrend(videos []model.Video) int {
	now := s.now()

	var recentSum, olderSum float64
	var recentN, olderN int
	for _, v := range videos {
		age := now.Sub(v.PublishedAt)
		switch {
		case age < recentWindow:
			recentSum += float64(v.ViewCount)
			recentN++
		case age < olderWindow:
			olderSum += float64(v.ViewCount)
			olderN++
		}
	}

	if recentN == 0 || olderN == 0 {
		return 0
	}
	olderAvg := olderSum / float64(olderN)
	if olderAvg == 0 {
		return 0
	}
	recentAvg := recentSum / float64(recentN)
	return saturateInt(roundHalfUp(100 * (recentAvg - olderAvg) / olderAvg))
}

// CalculateOpportunityScore combines the metrics into a 0-100 score:
//
//	35% min(avgVPH/10, 100)
//	25% max(0, 100 - uniqueChannels)
//	25% (100 - saturationScore)
//	15% max(0, trendScore)
func (s *MetricsService) CalculateOpportunityScore(m model.NicheMetrics) int {
	vph := math.Min(math.Max(m.AvgVPH, 0)/vphNormalizer, 100)
	competition := math.Max(0, 100-float64(m.UniqueChannels))
	saturation := 100 - float64(m.SaturationScore)
	trend := math.Max(0, float64(m.TrendScore))

	score := vph*vphWeight +
		competition*competitionWeight +
		saturation*saturationWeight +
		trend*trendWeight

	return int(clamp(roundHalfUp(score), 0, 100))
}

// uniqueChannels maps each channel ID to the subscriber count of its first video.
func uniqueChannels(videos []model.Video) map[string]int64 {
	channels := make(map[string]int64, len(videos))
	for _, v := range videos {
		if v.ChannelID == "" {
			continue
		}
		if _, seen := channels[v.ChannelID]; !seen {
			channels[v.ChannelID] = v.SubscriberCount
		}
	}
	return channels
}

// roundHalfUp rounds .5 towards positive infinity, so -2.5 becomes -2.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// saturateInt converts x to int, pinning values outside the int range to
// math.MaxInt or math.MinInt.
func saturateInt(x float64) int {
	switch {
	case x >= math.MaxInt:
		return math.MaxInt
	case x <= math.MinInt:
		return math.MinInt
	}
	return int(x)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
