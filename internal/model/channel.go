package model

import "time"

// CompetitorChannel is a YouTube channel a user has asked us to monitor.
type CompetitorChannel struct {
	ChannelID       string     `json:"channelId"`
	UserID          string     `json:"-"`
	Title           string     `json:"title"`
	SubscriberCount int64      `json:"subscriberCount"`
	VideoCount      int64      `json:"videoCount"`
	AddedAt         time.Time  `json:"addedAt"`
	LastChecked     *time.Time `json:"lastChecked,omitempty"`
}

// CompetitorSnapshot captures a channel's recent uploads and their metrics at a point in time.
type CompetitorSnapshot struct {
	ID              int64        `json:"id"`
	ChannelID       string       `json:"channelId"`
	SubscriberCount int64        `json:"subscriberCount"`
	VideoCount      int          `json:"videoCount"`
	TopVideoID      string       `json:"topVideoId,omitempty"`
	Metrics         NicheMetrics `json:"metrics"`
	CapturedAt      time.Time    `json:"capturedAt"`
}

// TrackRequest is the API request body for adding a competitor channel.
type TrackRequest struct {
	ChannelID string `json:"channelId"`
}
