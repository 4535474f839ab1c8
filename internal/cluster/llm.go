package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"

	"github.com/mathieu-neron/nichescope/internal/logging"
	"github.com/mathieu-neron/nichescope/internal/model"
)

const clusterPrompt = `You are a YouTube niche analyst. Group the videos below into content niches.

Target specificity: %s
- broad: a general category (e.g. "Gaming")
- sub-niche: a focused area inside a category (e.g. "Minecraft Survival")
- micro-niche: an ultra-specific angle (e.g. "Minecraft hardcore speedruns with no armor")

Videos (id | title | channel | views):
%s

Rules:
- Every niche needs at least 2 videos.
- Use the video ids exactly as given.
- A video belongs to at most one niche.

Respond with a JSON array. Each element must have: "name" (string), "description" (1 sentence),
"videoIds" (array of ids), "keywords" (array of 3-6 lower-case keywords), "specificity" ("broad", "sub-niche" or "micro-niche").
Return ONLY the JSON array, no other text.`

const fallbackPrompt = `Group these YouTube videos by topic. Videos (id | title):
%s

Return ONLY a JSON array like [{"name":"Topic","description":"...","videoIds":["id1","id2"],"keywords":["a","b"],"specificity":"%s"}].`

const maxTitleLen = 120

// ChatCompleter is the subset of the OpenAI client the clusterer needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// LLMClusterer asks a chat-completion model to group videos into niches. Any
// OpenAI-compatible endpoint works, including Gemini's compatibility layer.
type LLMClusterer struct {
	client  ChatCompleter
	model   string
	timeout time.Duration
}

// NewOpenAIClient builds a go-openai client, optionally pointed at a custom base URL.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

func NewLLMClusterer(client ChatCompleter, modelName string, timeout time.Duration) *LLMClusterer {
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LLMClusterer{client: client, model: modelName, timeout: timeout}
}

func (l *LLMClusterer) Name() string { return "llm" }

// Cluster sends the video list to the model. When the first answer yields no
// usable cluster it retries once with a shorter prompt.
func (l *LLMClusterer) Cluster(ctx context.Context, videos []model.Video, specificity string) ([]model.NicheCluster, error) {
	if len(videos) == 0 {
		return nil, ErrNoClusters
	}
	if !model.ValidSpecificity[specificity] {
		specificity = model.SpecificitySub
	}
	log := logging.Component("llm-clusterer")

	clusters, err := l.ask(ctx, buildClusterPrompt(videos, specificity), videos, specificity)
	if err == nil && len(clusters) > 0 {
		return clusters, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	log.Warn().Err(err).Int("videos", len(videos)).Msg("no clusters from primary prompt, retrying with fallback")

	clusters, err = l.ask(ctx, buildFallbackPrompt(videos, specificity), videos, specificity)
	if err != nil {
		return nil, err
	}
	if len(clusters) == 0 {
		return nil, ErrNoClusters
	}
	return clusters, nil
}

func (l *LLMClusterer) ask(ctx context.Context, prompt string, videos []model.Video, specificity string) ([]model.NicheCluster, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion: no choices returned")
	}

	clusters, err := ParseClusters(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return Sanitize(clusters, videos, specificity), nil
}

// ParseClusters decodes a model answer into clusters. It accepts a bare JSON
// array, an object wrapping the array under "niches" or "clusters", and either
// of those inside a markdown code block.
func ParseClusters(raw string) ([]model.NicheCluster, error) {
	raw = StripCodeFence(raw)

	// Models sometimes add a sentence before the JSON.
	if i := strings.IndexAny(raw, "[{"); i > 0 {
		raw = raw[i:]
	}

	var clusters []model.NicheCluster
	if err := json.Unmarshal([]byte(raw), &clusters); err == nil {
		return clusters, nil
	}

	var wrapped struct {
		Niches   []model.NicheCluster `json:"niches"`
		Clusters []model.NicheCluster `json:"clusters"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
		return nil, fmt.Errorf("parse llm response: %w (raw: %s)", err, truncate(raw, 300))
	}
	if len(wrapped.Niches) > 0 {
		return wrapped.Niches, nil
	}
	return wrapped.Clusters, nil
}

func buildClusterPrompt(videos []model.Video, specificity string) string {
	lines := make([]string, 0, len(videos))
	for _, v := range videos {
		lines = append(lines, fmt.Sprintf("- %s | %s | %s | %d",
			v.ID, truncate(oneLine(v.Title), maxTitleLen), oneLine(v.ChannelTitle), v.ViewCount))
	}
	return fmt.Sprintf(clusterPrompt, specificity, strings.Join(lines, "\n"))
}

func buildFallbackPrompt(videos []model.Video, specificity string) string {
	lines := make([]string, 0, len(videos))
	for _, v := range videos {
		lines = append(lines, fmt.Sprintf("- %s | %s", v.ID, truncate(oneLine(v.Title), maxTitleLen)))
	}
	return fmt.Sprintf(fallbackPrompt, strings.Join(lines, "\n"), specificity)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
