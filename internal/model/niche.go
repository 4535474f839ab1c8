package model

import "time"

// Niche specificity tags assigned by the clusterer.
const (
	SpecificityBroad = "broad"
	SpecificitySub   = "sub-niche"
	SpecificityMicro = "micro-niche"
)

// ValidSpecificity are the accepted specificity tags.
var ValidSpecificity = map[string]bool{
	SpecificityBroad: true,
	SpecificitySub:   true,
	SpecificityMicro: true,
}

// ChannelDistribution holds the percentage of unique channels per size bucket.
type ChannelDistribution struct {
	Small  int `json:"small"`
	Medium int `json:"medium"`
	Large  int `json:"large"`
}

// NicheMetrics is derived from a video set and recomputed whenever that set changes.
type NicheMetrics struct {
	TotalViews          int64               `json:"totalViews"`
	AvgVPH              float64             `json:"avgVPH"`
	UniqueChannels      int                 `json:"uniqueChannels"`
	AvgSubscribers      float64             `json:"avgSubscribers"`
	ChannelDistribution ChannelDistribution `json:"channelDistribution"`
	SaturationScore     int                 `json:"saturationScore"`
	TrendScore          int                 `json:"trendScore"`
	OpportunityScore    int                 `json:"opportunityScore"`
}

// NicheCluster is a named group of videos produced by a clusterer, before scoring.
type NicheCluster struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	VideoIDs    []string `json:"videoIds"`
	Keywords    []string `json:"keywords"`
	Specificity string   `json:"specificity"`
}

// NicheAnalysis is a scored niche.
type NicheAnalysis struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	VideoIDs    []string     `json:"videoIds"`
	Keywords    []string     `json:"keywords"`
	Specificity string       `json:"specificity"`
	Metrics     NicheMetrics `json:"metrics"`
}

// AnalysisRun is one analysis request and its scored niches, as persisted to history.
type AnalysisRun struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Query       string          `json:"query"`
	Specificity string          `json:"specificity,omitempty"`
	Clusterer   string          `json:"clusterer"`
	VideoCount  int             `json:"videoCount"`
	Niches      []NicheAnalysis `json:"niches"`
	Videos      []Video         `json:"videos,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	RefreshedAt *time.Time      `json:"refreshedAt,omitempty"`
	Cached      bool            `json:"cached,omitempty"`
}

// AnalysisSummary is the list view of a persisted run.
type AnalysisSummary struct {
	ID             string    `json:"id"`
	Query          string    `json:"query"`
	NicheCount     int       `json:"nicheCount"`
	VideoCount     int       `json:"videoCount"`
	TopNiche       string    `json:"topNiche,omitempty"`
	TopOpportunity int       `json:"topOpportunity"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AnalyzeRequest is the API request body for running a niche analysis.
type AnalyzeRequest struct {
	Query               string `json:"query"`
	MaxResults          int    `json:"maxResults,omitempty"`
	PublishedWithinDays int    `json:"publishedWithinDays,omitempty"`
	Specificity         string `json:"specificity,omitempty"`
	UserID              string `json:"-"`
}

// StatsResponse is the API response for aggregate statistics.
type StatsResponse struct {
	TotalRuns       int            `json:"totalRuns"`
	TotalUsers      int            `json:"totalUsers"`
	TrackedChannels int            `json:"trackedChannels"`
	Snapshots       int            `json:"snapshots"`
	AvgOpportunity  float64        `json:"avgOpportunity"`
	RunsLast24h     int            `json:"runsLast24h"`
	TopQueries      map[string]int `json:"topQueries"`
}
