// Package youtube fetches video and channel snapshots from the YouTube Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/option"
	ytv3 "google.golang.org/api/youtube/v3"

	"github.com/mathieu-neron/nichescope/internal/model"
)

// The Data API caps ids per videos.list / channels.list call and results per search page.
const (
	maxIDsPerCall   = 50
	maxPerPage      = 50
	defaultMaxVideo = 50
	maxVideos       = 200
)

// ErrChannelNotFound is returned when a channel id resolves to nothing.
var ErrChannelNotFound = errors.New("channel not found")

// SearchOptions narrows a keyword search.
type SearchOptions struct {
	MaxResults     int64
	PublishedAfter time.Time
	RegionCode     string
	Language       string
}

// Client wraps the generated Data API service.
type Client struct {
	svc *ytv3.Service
}

// NewClient creates a client authenticated with an API key.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("youtube: API key required (set YOUTUBE_API_KEY)")
	}
	svc, err := ytv3.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// SearchVideos runs a keyword search ordered by view count and returns fully
// populated snapshots (statistics and channel subscriber counts included).
func (c *Client) SearchVideos(ctx context.Context, query string, opts SearchOptions) ([]model.Video, error) {
	limit := clampLimit(opts.MaxResults)

	ids, err := c.search(ctx, limit, func(call *ytv3.SearchListCall) *ytv3.SearchListCall {
		call = call.Q(query).Order("viewCount")
		if !opts.PublishedAfter.IsZero() {
			call = call.PublishedAfter(opts.PublishedAfter.UTC().Format(time.RFC3339))
		}
		if opts.RegionCode != "" {
			call = call.RegionCode(opts.RegionCode)
		}
		if opts.Language != "" {
			call = call.RelevanceLanguage(opts.Language)
		}
		return call
	})
	if err != nil {
		return nil, fmt.Errorf("youtube search %q: %w", query, err)
	}
	return c.Videos(ctx, ids)
}

// ChannelVideos returns the most recent uploads of a channel.
func (c *Client) ChannelVideos(ctx context.Context, channelID string, limit int64) ([]model.Video, error) {
	ids, err := c.search(ctx, clampLimit(limit), func(call *ytv3.SearchListCall) *ytv3.SearchListCall {
		return call.ChannelId(channelID).Order("date")
	})
	if err != nil {
		return nil, fmt.Errorf("youtube channel search %s: %w", channelID, err)
	}
	return c.Videos(ctx, ids)
}

// Videos fetches snippet and statistics for the given ids, then fills each
// video's channel subscriber count. Order follows the API response.
func (c *Client) Videos(ctx context.Context, ids []string) ([]model.Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var videos []model.Video
	for _, batch := range chunk(ids, maxIDsPerCall) {
		resp, err := c.svc.Videos.List([]string{"snippet", "statistics"}).
			Id(batch...).
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("youtube videos.list: %w", err)
		}
		for _, item := range resp.Items {
			videos = append(videos, videoFromAPI(item))
		}
	}

	channelIDs := make([]string, 0, len(videos))
	seen := make(map[string]bool, len(videos))
	for _, v := range videos {
		if v.ChannelID != "" && !seen[v.ChannelID] {
			seen[v.ChannelID] = true
			channelIDs = append(channelIDs, v.ChannelID)
		}
	}

	subs, err := c.subscriberCounts(ctx, channelIDs)
	if err != nil {
		return nil, err
	}
	for i := range videos {
		videos[i].SubscriberCount = subs[videos[i].ChannelID]
	}
	return videos, nil
}

// Channel returns metadata for a single channel.
func (c *Client) Channel(ctx context.Context, channelID string) (*model.CompetitorChannel, error) {
	resp, err := c.svc.Channels.List([]string{"snippet", "statistics"}).
		Id(channelID).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("youtube channels.list: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, ErrChannelNotFound
	}
	return channelFromAPI(resp.Items[0]), nil
}

func (c *Client) search(ctx context.Context, limit int64, configure func(*ytv3.SearchListCall) *ytv3.SearchListCall) ([]string, error) {
	var ids []string
	pageToken := ""

	for int64(len(ids)) < limit {
		call := c.svc.Search.List([]string{"id"}).
			Type("video").
			MaxResults(min(limit-int64(len(ids)), maxPerPage))
		call = configure(call)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		for _, item := range resp.Items {
			if item.Id != nil && item.Id.VideoId != "" {
				ids = append(ids, item.Id.VideoId)
			}
		}

		if resp.NextPageToken == "" || len(resp.Items) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}
	return ids, nil
}

func (c *Client) subscriberCounts(ctx context.Context, channelIDs []string) (map[string]int64, error) {
	subs := make(map[string]int64, len(channelIDs))
	for _, batch := range chunk(channelIDs, maxIDsPerCall) {
		resp, err := c.svc.Channels.List([]string{"statistics"}).
			Id(batch...).
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("youtube channels.list: %w", err)
		}
		for _, ch := range resp.Items {
			if ch.Statistics != nil {
				subs[ch.Id] = int64(ch.Statistics.SubscriberCount)
			}
		}
	}
	return subs, nil
}

func videoFromAPI(item *ytv3.Video) model.Video {
	v := model.Video{ID: item.Id}
	if item.Snippet != nil {
		v.Title = item.Snippet.Title
		v.ChannelID = item.Snippet.ChannelId
		v.ChannelTitle = item.Snippet.ChannelTitle
		if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			v.PublishedAt = t
		}
	}
	if item.Statistics != nil {
		v.ViewCount = int64(item.Statistics.ViewCount)
		v.LikeCount = int64(item.Statistics.LikeCount)
		v.CommentCount = int64(item.Statistics.CommentCount)
	}
	return v
}

func channelFromAPI(item *ytv3.Channel) *model.CompetitorChannel {
	ch := &model.CompetitorChannel{ChannelID: item.Id}
	if item.Snippet != nil {
		ch.Title = item.Snippet.Title
	}
	if item.Statistics != nil {
		ch.SubscriberCount = int64(item.Statistics.SubscriberCount)
		ch.VideoCount = int64(item.Statistics.VideoCount)
	}
	return ch
}

func clampLimit(n int64) int64 {
	if n <= 0 {
		return defaultMaxVideo
	}
	return min(n, maxVideos)
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
