// Package cluster groups videos into named niches.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mathieu-neron/nichescope/internal/logging"
	"github.com/mathieu-neron/nichescope/internal/model"
)

// ErrNoClusters is returned when a clusterer produced no usable niche.
var ErrNoClusters = errors.New("no clusters produced")

// Clusterer groups a set of videos into named niches.
type Clusterer interface {
	Name() string
	Cluster(ctx context.Context, videos []model.Video, specificity string) ([]model.NicheCluster, error)
}

// Chain tries each clusterer in order and returns the first non-empty result.
type Chain struct {
	clusterers []Clusterer
}

// NewChain builds a Chain, skipping nil clusterers.
func NewChain(clusterers ...Clusterer) *Chain {
	c := &Chain{}
	for _, cl := range clusterers {
		if cl != nil {
			c.clusterers = append(c.clusterers, cl)
		}
	}
	return c
}

// Cluster returns the clusters and the name of the clusterer that produced them.
func (c *Chain) Cluster(ctx context.Context, videos []model.Video, specificity string) ([]model.NicheCluster, string, error) {
	log := logging.Component("cluster")
	var lastErr error = ErrNoClusters

	for _, cl := range c.clusterers {
		clusters, err := cl.Cluster(ctx, videos, specificity)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			log.Warn().Err(err).Str("clusterer", cl.Name()).Msg("clusterer failed, trying next")
			lastErr = err
			continue
		}
		clusters = Sanitize(clusters, videos, specificity)
		if len(clusters) == 0 {
			log.Warn().Str("clusterer", cl.Name()).Msg("clusterer returned no usable clusters")
			lastErr = ErrNoClusters
			continue
		}
		return clusters, cl.Name(), nil
	}

	return nil, "", lastErr
}

var (
	// idPrefixRe matches labels LLMs like to put in front of IDs ("id: abc", "videoId=abc").
	idPrefixRe = regexp.MustCompile(`(?i)^(video[_\s-]?)?id\s*[:=]\s*`)
	// idJunkRe matches characters never present in a YouTube video ID.
	idJunkRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

// CleanID normalizes a video ID echoed back by a model.
func CleanID(raw string) string {
	id := strings.TrimSpace(raw)
	id = strings.Trim(id, "[]{}()\"'` ")
	id = idPrefixRe.ReplaceAllString(id, "")
	return idJunkRe.ReplaceAllString(id, "")
}

// Sanitize cleans IDs, drops unknown and duplicate IDs, normalizes keywords and
// specificity, and discards clusters left without videos.
func Sanitize(clusters []model.NicheCluster, videos []model.Video, specificity string) []model.NicheCluster {
	known := make(map[string]bool, len(videos))
	for _, v := range videos {
		known[v.ID] = true
	}

	defaultSpec := specificity
	if !model.ValidSpecificity[defaultSpec] {
		defaultSpec = model.SpecificitySub
	}

	out := make([]model.NicheCluster, 0, len(clusters))
	for i, c := range clusters {
		seen := make(map[string]bool, len(c.VideoIDs))
		var ids []string
		for _, raw := range c.VideoIDs {
			id := CleanID(raw)
			if id == "" || !known[id] || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			continue
		}

		c.VideoIDs = ids
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			c.Name = fmt.Sprintf("Niche %d", i+1)
		}
		c.Description = strings.TrimSpace(c.Description)
		c.Keywords = normalizeKeywords(c.Keywords)

		c.Specificity = strings.ToLower(strings.TrimSpace(c.Specificity))
		if !model.ValidSpecificity[c.Specificity] {
			c.Specificity = defaultSpec
		}
		out = append(out, c)
	}
	return out
}

func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// StripCodeFence removes a surrounding markdown code block, if any.
func StripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if idx := strings.Index(raw[3:], "\n"); idx >= 0 {
			raw = raw[3+idx+1:]
		} else {
			raw = raw[3:]
		}
		raw = strings.TrimSpace(raw)
		raw = strings.TrimSuffix(raw, "```")
	}
	return strings.TrimSpace(raw)
}
