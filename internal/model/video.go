package model

import "time"

// Video is an immutable snapshot of a YouTube video as fetched from the Data API,
// with the derived velocity fields filled in by MetricsService.Enrich.
type Video struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	ChannelID       string    `json:"channelId"`
	ChannelTitle    string    `json:"channelTitle"`
	ViewCount       int64     `json:"viewCount"`
	LikeCount       int64     `json:"likeCount"`
	CommentCount    int64     `json:"commentCount"`
	SubscriberCount int64     `json:"subscriberCount"`
	PublishedAt     time.Time `json:"publishedAt"`

	AgeInDays    float64 `json:"ageInDays"`
	VPH          float64 `json:"vph"`
	Engagement   float64 `json:"engagement"`
	ViralScore   int     `json:"viralScore"`
	ViewSubRatio float64 `json:"viewSubRatio"`
}

// ScoreRequest is the API request body for scoring an ad-hoc list of videos.
type ScoreRequest struct {
	Videos []Video `json:"videos"`
}

// ScoreResponse is the API response for an ad-hoc scoring request.
type ScoreResponse struct {
	Videos  []Video      `json:"videos"`
	Metrics NicheMetrics `json:"metrics"`
}
