package middleware

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/mathieu-neron/nichescope/internal/model"
)

// Field limits matching database schema constraints and YouTube API caps.
const (
	MaxChannelIDLen  = 32 // competitor_channels.channel_id VARCHAR(32)
	MaxUserIDLen     = 64 // analysis_runs.user_id VARCHAR(64)
	MinQueryLen      = 2
	MaxQueryLen      = 100
	MaxResults       = 200
	MaxWithinDays    = 365
	MaxScoreVideos   = 500
	DefaultMaxResult = 50
)

var (
	// channelIDRe matches YouTube channel IDs: alphanumeric, dash, underscore.
	channelIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	// userIDRe matches hashed user IDs.
	userIDRe = regexp.MustCompile(`^[0-9a-f]+$`)
)

// ErrorResponse is a helper that returns a standard API error response.
func ErrorResponse(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

// ValidateChannelID checks that a channel ID is well-formed.
func ValidateChannelID(id string) (string, string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "channelId is required"
	}
	if len(id) > MaxChannelIDLen {
		return "", "channelId must be at most 32 characters"
	}
	if !channelIDRe.MatchString(id) {
		return "", "channelId contains invalid characters"
	}
	return id, ""
}

// ValidateUserID accepts a UUID or a hex hash and returns it in canonical
// lower-case form.
func ValidateUserID(id string) (string, string) {
	id = strings.TrimSpace(strings.ToLower(id))
	if id == "" {
		return "", "X-User-ID header is required"
	}
	if u, err := uuid.Parse(id); err == nil && len(id) == 36 {
		return u.String(), ""
	}
	if len(id) > MaxUserIDLen {
		return "", "userId must be at most 64 characters"
	}
	if !userIDRe.MatchString(id) {
		return "", "userId must be a UUID or hexadecimal hash"
	}
	return id, ""
}

// ValidateRunID checks that a history run ID is a UUID.
func ValidateRunID(id string) (string, string) {
	id = strings.TrimSpace(strings.ToLower(id))
	u, err := uuid.Parse(id)
	if err != nil || len(id) != 36 {
		return "", "run id must be a UUID"
	}
	return u.String(), ""
}

// ValidateQuery trims a search query and checks its length.
func ValidateQuery(q string) (string, string) {
	q = strings.Join(strings.Fields(q), " ")
	n := utf8.RuneCountInString(q)
	if n == 0 {
		return "", "query is required"
	}
	if n < MinQueryLen || n > MaxQueryLen {
		return "", fmt.Sprintf("query must be %d-%d characters", MinQueryLen, MaxQueryLen)
	}
	return q, ""
}

// ValidateSpecificity accepts an empty value or one of the known niche levels.
func ValidateSpecificity(s string) (string, string) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || model.ValidSpecificity[s] {
		return s, ""
	}
	return "", "specificity must be one of: broad, sub-niche, micro-niche"
}

// ValidateAnalyzeRequest normalizes an analyze request in place.
func ValidateAnalyzeRequest(req *model.AnalyzeRequest) string {
	q, msg := ValidateQuery(req.Query)
	if msg != "" {
		return msg
	}
	req.Query = q

	spec, msg := ValidateSpecificity(req.Specificity)
	if msg != "" {
		return msg
	}
	req.Specificity = spec

	switch {
	case req.MaxResults == 0:
		req.MaxResults = DefaultMaxResult
	case req.MaxResults < 0 || req.MaxResults > MaxResults:
		return fmt.Sprintf("maxResults must be between 1 and %d", MaxResults)
	}
	if req.PublishedWithinDays < 0 || req.PublishedWithinDays > MaxWithinDays {
		return fmt.Sprintf("publishedWithinDays must be between 0 and %d", MaxWithinDays)
	}
	return ""
}
