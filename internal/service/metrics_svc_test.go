package service

import (
	"math"
	"testing"
	"time"

	"github.com/mathieu-neron/nichescope/internal/model"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(d int) time.Time {
	return fixedNow.AddDate(0, 0, -d)
}

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestNicheMetrics_Example(t *testing.T) {
	svc := NewMetricsServiceAt(fixedNow)

	videos := []model.Video{
		{ID: "v1", ViewCount: 1000, VPH: 50, SubscriberCount: 5000, ChannelID: "a", PublishedAt: daysAgo(10)},
		{ID: "v2", ViewCount: 2000, VPH: 80, SubscriberCount: 200000, ChannelID: "b", PublishedAt: daysAgo(40)},
	}

	m := svc.CalculateNicheMetrics(videos)

	if m.UniqueChannels != 2 {
		t.Errorf("uniqueChannels = %d, want 2", m.UniqueChannels)
	}
	want := model.ChannelDistribution{Small: 50, Medium: 0, Large: 50}
	if m.ChannelDistribution != want {
		t.Errorf("channelDistribution = %+v, want %+v", m.ChannelDistribution, want)
	}
	if m.SaturationScore != 50 {
		t.Errorf("saturationScore = %d, want 50", m.SaturationScore)
	}
	if m.TotalViews != 3000 {
		t.Errorf("totalViews = %d, want 3000", m.TotalViews)
	}
	if !almostEqual(m.AvgVPH, 65, 0.001) {
		t.Errorf("avgVPH = %.2f, want 65.00", m.AvgVPH)
	}
	if m.AvgSubscribers != 102500 {
		t.Errorf("avgSubscribers = %.0f, want 102500", m.AvgSubscribers)
	}
	// recent avg 1000 vs older avg 2000
	if m.TrendScore != -50 {
		t.Errorf("trendScore = %d, want -50", m.TrendScore)
	}
	// 6.5*0.35 + 98*0.25 + 50*0.25 + 0 = 39.275
	if m.OpportunityScore != 39 {
		t.Errorf("opportunityScore = %d, want 39", m.OpportunityScore)
	}
}

func TestNicheMetrics_EmptyInput(t *testing.T) {
	svc := NewMetricsServiceAt(fixedNow)

	m := svc.CalculateNicheMetrics(nil)
	if m != (model.NicheMetrics{}) {
		t.Errorf("expected zeroed metrics for empty input, got %+v", m)
	}
}

func TestChannelDistribution_Empty(t *testing.T) {
	svc := NewMetricsServiceAt(fixedNow)

	got := svc.CalculateChannelDistribution([]model.Video{})
	if got != (model.ChannelDistribution{}) {
		t.Errorf("distribution = %+v, want all zero", got)
	}
}

func TestChannelDistribution_FirstSeenSubscriberCount(t *testing.T) {
	svc := NewMetricsServiceAt(fixedNow)

	// The same channel reported later with a larger count keeps its first classification.
	videos := []model.Video{
		{ChannelID: "a", SubscriberCount: 5000},
		{ChannelID: "a", SubscriberCount: 500000},
	}

	got := svc.CalculateChannelDistribution(videos)
	want := model.ChannelDistribution{Small: 100}
	if got != want {
		t.Errorf("distribution = %+v, want %+v", got, want)
	}
}

func TestChannelDistribution_Buckets(t *testing.T) {
	svc := NewMetricsServiceAt(fixedNow)

	videos := []model.Video{
		{ChannelID: "a", SubscriberCount: 9999},
		{ChannelID: "b", SubscriberCount: 10000},
		{ChannelID: "c", SubscriberCount: 99999},
	}

	got := svc.CalculateChannelDistribution(videos)
	// 1/3 = 33.33 -> 33, 2/3 = 66.67 -> 67
	want := model.ChannelDistribution{Small: 33, Medium: 67, Large: 0}
	if got != want {
		t.Errorf("distribution = %+v, want %+v", got, want)
	}
}

func TestSaturationScore(t *testing.T) {
	svc := NewMetricsServiceAt(fixedNow)

	tests := []struct {
		name   string
		videos []model.Video
		want   int
	}{
		{"no channels", nil, 0},
		{
			"all large",
			[]model.Video{
				{ChannelID: "a", SubscriberCount: 150000},
				{ChannelID: "b", SubscriberCount: 2000000},
				{ChannelID: "c", SubscriberCount: 100001},
			},
			100,
		},
		{
			"exactly 100K is not saturating",
			[]model.Video{
				{ChannelID: "a", SubscriberCount: 100000},
				{ChannelID: "b", SubscriberCount: 500},
			},
			0,
		},
		{
			"one of three",
			[]model.Video{
				{ChannelID: "a", SubscriberCount: 300000},
				{ChannelID: "b", SubscriberCount: 500},
				{ChannelID: "c", SubscriberCount: 20000},
			},
			33,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.CalculateSaturationScore(tt.videos)
			if got != tt.want {
				t.Errorf("CalculateSaturationScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDetectTrend(t *testing.T) {
	svc := NewMetricsServiceAt(fixedNow)

	tests := []struct {
		name   string
		videos []model.Video
		want   int
	}{
		{
			"no older videos",
			[]model.Video{
				{ViewCount: 1000, PublishedAt: daysAgo(5)},
				{ViewCount: 3000, PublishedAt: daysAgo(20)},
			},
			0,
		},
		{
			"no recent videos",
			[]model.Video{
				{ViewCount: 1000, PublishedAt: daysAgo(45)},
			},
			0,
		},
		{
			"older average is zero",
			[]model.Video{
				{ViewCount: 1000, PublishedAt: daysAgo(5)},
				{ViewCount: 0, PublishedAt: daysAgo(35)},
			},
			0,
		},
		{
			"growth",
			[]model.Video{
				{ViewCount: 1500, PublishedAt: daysAgo(5)},
				{ViewCount: 1000, PublishedAt: daysAgo(35)},
			},
			50,
		},
		{
			"growth above 100 is not clamped",
			[]model.Video{
				{ViewCount: 1000, PublishedAt: daysAgo(3)},
				{ViewCount: 100, PublishedAt: daysAgo(50)},
			},
			900,
		},
		{
			"videos older than 60 days are ignored",
			[]model.Video{
				{ViewCount: 1000, PublishedAt: daysAgo(3)},
				{ViewCount: 500, PublishedAt: daysAgo(40)},
				{ViewCount: 1000000, PublishedAt: daysAgo(90)},
			},
			100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.DetectTrend(tt.videos)
			if got != tt.want {
				t.Errorf("DetectTrend() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDetectTrend_HugeGrowthKeepsSign(t *testing.T) {
	svc := NewMetricsServiceAt(fixedNow)

	videos := []model.Video{
		{ViewCount: 1_000_000_000_000_000_000, PublishedAt: daysAgo(2)},
		{ViewCount: 1, PublishedAt: daysAgo(40)},
	}
	if got := svc.DetectTrend(videos); got != math.MaxInt {
		t.Errorf("DetectTrend() = %d, want math.MaxInt", got)
	}

	m := svc.CalculateNicheMetrics(svc.EnrichAll(videos))
	if m.OpportunityScore < 0 || m.OpportunityScore > 100 {
		t.Errorf("opportunity = %d, want within [0,100]", m.OpportunityScore)
	}
}

func TestOpportunityScore_MonotonicInVPH(t *testing.T) {
	svc := NewMetricsServiceAt(fixedNow)

	base := model.NicheMetrics{UniqueChannels: 40, SaturationScore: 30, TrendScore: 20}
	prev := -1
	for vph := 0.0; vph <= 5000; vph += 25 {
		m := base
		m.AvgVPH = vph
		got := svc.CalculateOpportunityScore(m)
		if got < prev {
			t.Fatalf("score decreased from %d to %d at avgVPH=%.0f", prev, got, vph)
		}
		prev = got
	}
}

func TestOpportunityScore_MonotonicInTrend(t *testing.T) {
	svc := NewMetricsServiceAt(fixedNow)

	base := model.NicheMetrics{AvgVPH: 120, UniqueChannels: 40, SaturationScore: 30}
	prev := -1
	for trend := 0; trend <= 1000; trend += 5 {
		m := base
		m.TrendScore = trend
		got := svc.CalculateOpportunityScore(m)
		if got < prev {
			t.Fatalf("score decreased from %d to %d at trendScore=%d", prev, got, trend)
		}
		prev = got
	}
}

func TestOpportunityScore_Bounds(t *testing.T) {
	svc := NewMetricsServiceAt(fixedNow)

	vphs := []float64{0, 1, 999, 1e6, 1e12}
	channels := []int{0, 1, 50, 100, 10000}
	saturations := []int{0, 50, 100, 250}
	trends := []int{0, 10, 100, 100000}

	for _, vph := range vphs {
		for _, ch := range channels {
			for _, sat := range saturations {
				for _, tr := range trends {
					m := model.NicheMetrics{AvgVPH: vph, UniqueChannels: ch, SaturationScore: sat, TrendScore: tr}
					got := svc.CalculateOpportunityScore(m)
					if got < 0 || got > 100 {
						t.Fatalf("score %d out of [0,100] for %+v", got, m)
					}
				}
			}
		}
	}
}

func TestOpportunityScore_NegativeTrendIgnored(t *testing.T) {
	svc := NewMetricsServiceAt(fixedNow)

	m := model.NicheMetrics{AvgVPH: 100, UniqueChannels: 20, SaturationScore: 40}
	flat := svc.CalculateOpportunityScore(m)
	m.TrendScore = -80
	falling := svc.CalculateOpportunityScore(m)

	if flat != falling {
		t.Errorf("negative trend changed score: %d vs %d", falling, flat)
	}
}

func TestEnrich(t *testing.T) {
	svc := NewMetricsServiceAt(fixedNow)

	v := svc.Enrich(model.Video{
		ViewCount:       1000,
		LikeCount:       40,
		CommentCount:    10,
		SubscriberCount: 500,
		PublishedAt:     fixedNow.Add(-10 * time.Hour),
	})

	if !almostEqual(v.VPH, 100, 0.001) {
		t.Errorf("vph = %.2f, want 100.00", v.VPH)
	}
	if !almostEqual(v.AgeInDays, 0.42, 0.001) {
		t.Errorf("ageInDays = %.2f, want 0.42", v.AgeInDays)
	}
	if !almostEqual(v.Engagement, 5, 0.001) {
		t.Errorf("engagement = %.2f, want 5.00", v.Engagement)
	}
	if !almostEqual(v.ViewSubRatio, 2, 0.001) {
		t.Errorf("viewSubRatio = %.2f, want 2.00", v.ViewSubRatio)
	}
	// 20*log10(101) + 8*2 = 40.09 + 16 = 56.09
	if v.ViralScore != 56 {
		t.Errorf("viralScore = %d, want 56", v.ViralScore)
	}
}

func TestEnrich_ZeroGuards(t *testing.T) {
	svc := NewMetricsServiceAt(fixedNow)

	// Published "in the future" (clock skew) and no views or subscribers.
	v := svc.Enrich(model.Video{PublishedAt: fixedNow.Add(time.Hour)})

	for name, f := range map[string]float64{
		"vph":          v.VPH,
		"engagement":   v.Engagement,
		"viewSubRatio": v.ViewSubRatio,
		"ageInDays":    v.AgeInDays,
	} {
		if math.IsNaN(f) || math.IsInf(f, 0) || f != 0 {
			t.Errorf("%s = %v, want 0", name, f)
		}
	}
	if v.ViralScore != 0 {
		t.Errorf("viralScore = %d, want 0", v.ViralScore)
	}
}

func TestEnrich_ViralScoreCapped(t *testing.T) {
	svc := NewMetricsServiceAt(fixedNow)

	v := svc.Enrich(model.Video{
		ViewCount:       50_000_000,
		SubscriberCount: 1000,
		PublishedAt:     fixedNow.Add(-2 * time.Hour),
	})
	if v.ViralScore != 100 {
		t.Errorf("viralScore = %d, want 100 (capped)", v.ViralScore)
	}
}
