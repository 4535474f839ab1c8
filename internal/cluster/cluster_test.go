package cluster

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"

	"github.com/mathieu-neron/nichescope/internal/model"
)

func testVideos() []model.Video {
	return []model.Video{
		{ID: "aaaaaaaaaa1", Title: "Minecraft Survival Guide for Beginners", ChannelTitle: "Blocky"},
		{ID: "aaaaaaaaaa2", Title: "Hardcore Minecraft Survival: Day 100", ChannelTitle: "Crafty"},
		{ID: "aaaaaaaaaa3", Title: "Minecraft survival base tour", ChannelTitle: "Blocky"},
		{ID: "bbbbbbbbbb1", Title: "Sourdough bread recipe at home", ChannelTitle: "Bakes"},
		{ID: "bbbbbbbbbb2", Title: "Easy sourdough starter recipe", ChannelTitle: "Kitchen"},
		{ID: "ccccccccccc", Title: "My vlog", ChannelTitle: "Someone"},
	}
}

func TestCleanID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"whitespace", "  dQw4w9WgXcQ \n", "dQw4w9WgXcQ"},
		{"brackets", "[dQw4w9WgXcQ]", "dQw4w9WgXcQ"},
		{"quotes", `"dQw4w9WgXcQ"`, "dQw4w9WgXcQ"},
		{"id prefix", "id: dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"videoId prefix", "videoId=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"video_id prefix with quotes", `video_id: "ab-c_12"`, "ab-c_12"},
		{"junk chars", "ab c.d", "abcd"},
		{"empty", "  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanID(tt.input); got != tt.want {
				t.Errorf("CleanID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	videos := testVideos()
	clusters := []model.NicheCluster{
		{
			Name:        "  Minecraft  ",
			VideoIDs:    []string{"id: aaaaaaaaaa1", "[aaaaaaaaaa2]", "aaaaaaaaaa1", "unknown123"},
			Keywords:    []string{"Minecraft", "minecraft ", "", "survival"},
			Specificity: "Micro-Niche",
		},
		{Name: "Ghost", VideoIDs: []string{"nope"}},
		{Name: "", VideoIDs: []string{"bbbbbbbbbb1"}, Specificity: "weird"},
	}

	got := Sanitize(clusters, videos, model.SpecificityBroad)

	if len(got) != 2 {
		t.Fatalf("got %d clusters, want 2 (ghost cluster dropped)", len(got))
	}
	if got[0].Name != "Minecraft" {
		t.Errorf("name = %q, want trimmed", got[0].Name)
	}
	if !reflect.DeepEqual(got[0].VideoIDs, []string{"aaaaaaaaaa1", "aaaaaaaaaa2"}) {
		t.Errorf("videoIds = %v", got[0].VideoIDs)
	}
	if !reflect.DeepEqual(got[0].Keywords, []string{"minecraft", "survival"}) {
		t.Errorf("keywords = %v", got[0].Keywords)
	}
	if got[0].Specificity != model.SpecificityMicro {
		t.Errorf("specificity = %q, want micro-niche", got[0].Specificity)
	}
	if got[1].Name != "Niche 3" {
		t.Errorf("unnamed cluster name = %q, want \"Niche 3\"", got[1].Name)
	}
	if got[1].Specificity != model.SpecificityBroad {
		t.Errorf("invalid specificity should fall back to requested, got %q", got[1].Specificity)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no fence", `[{"a":1}]`, `[{"a":1}]`},
		{"json fence", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"bare fence", "```\n[]\n```", "[]"},
		{"surrounding space", "  \n```json\n[]\n```  ", "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.input); got != tt.want {
				t.Errorf("StripCodeFence() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseClusters(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"array", `[{"name":"A","videoIds":["x"]},{"name":"B","videoIds":["y"]}]`, 2, false},
		{"fenced array", "```json\n[{\"name\":\"A\",\"videoIds\":[\"x\"]}]\n```", 1, false},
		{"wrapped niches", `{"niches":[{"name":"A","videoIds":["x"]}]}`, 1, false},
		{"wrapped clusters", `{"clusters":[{"name":"A","videoIds":["x"]}]}`, 1, false},
		{"leading prose", `Here you go: [{"name":"A","videoIds":["x"]}]`, 1, false},
		{"empty array", `[]`, 0, false},
		{"garbage", `I cannot help with that`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClusters(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d clusters, want %d", len(got), tt.want)
			}
		})
	}
}

func TestExtractKeywords(t *testing.T) {
	titles := []string{
		"Minecraft Survival Guide",
		"Hardcore Minecraft survival",
		"Minecraft 2024 base tour",
		"The best of the best",
	}

	got := ExtractKeywords(titles, 3)
	want := []string{"minecraft", "survival", "base"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractKeywords() = %v, want %v", got, want)
	}
}

func TestKeywordClusterer(t *testing.T) {
	kc := NewKeywordClusterer()

	got, err := kc.Cluster(context.Background(), testVideos(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d clusters, want 2: %+v", len(got), got)
	}

	if got[0].Name != "Minecraft Survival" {
		t.Errorf("first cluster name = %q, want \"Minecraft Survival\"", got[0].Name)
	}
	if len(got[0].VideoIDs) != 3 {
		t.Errorf("first cluster has %d videos, want 3", len(got[0].VideoIDs))
	}
	if got[1].Name != "Recipe Sourdough" {
		t.Errorf("second cluster name = %q, want \"Recipe Sourdough\"", got[1].Name)
	}
	for _, c := range got {
		if c.Specificity != model.SpecificitySub {
			t.Errorf("specificity = %q, want default sub-niche", c.Specificity)
		}
	}

	again, _ := kc.Cluster(context.Background(), testVideos(), "")
	if !reflect.DeepEqual(got, again) {
		t.Error("keyword clustering is not deterministic")
	}
}

func TestKeywordClusterer_NothingInCommon(t *testing.T) {
	kc := NewKeywordClusterer()

	videos := []model.Video{
		{ID: "a", Title: "apples"},
		{ID: "b", Title: "bicycles"},
	}
	_, err := kc.Cluster(context.Background(), videos, "")
	if !errors.Is(err, ErrNoClusters) {
		t.Errorf("err = %v, want ErrNoClusters", err)
	}
}

type fakeCompleter struct {
	answers []string
	err     error
	calls   int
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	answer := f.answers[len(f.answers)-1]
	if f.calls <= len(f.answers) {
		answer = f.answers[f.calls-1]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: answer}}},
	}, nil
}

func TestLLMClusterer_RetriesWithFallbackPrompt(t *testing.T) {
	fc := &fakeCompleter{answers: []string{
		`[{"name":"Nothing","videoIds":["not-a-real-id"]}]`,
		"```json\n[{\"name\":\"Sourdough\",\"videoIds\":[\"bbbbbbbbbb1\",\"id: bbbbbbbbbb2\"],\"specificity\":\"micro-niche\"}]\n```",
	}}
	lc := NewLLMClusterer(fc, "", 0)

	got, err := lc.Cluster(context.Background(), testVideos(), model.SpecificityMicro)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.calls != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", fc.calls)
	}
	if len(got) != 1 || len(got[0].VideoIDs) != 2 {
		t.Fatalf("unexpected clusters: %+v", got)
	}
}

func TestLLMClusterer_NoClustersAfterRetry(t *testing.T) {
	fc := &fakeCompleter{answers: []string{`[]`}}
	lc := NewLLMClusterer(fc, "", 0)

	_, err := lc.Cluster(context.Background(), testVideos(), "")
	if !errors.Is(err, ErrNoClusters) {
		t.Errorf("err = %v, want ErrNoClusters", err)
	}
	if fc.calls != 2 {
		t.Errorf("calls = %d, want 2", fc.calls)
	}
}

func TestChain_FallsBackToKeywords(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("503 overloaded")}
	chain := NewChain(NewLLMClusterer(fc, "", 0), nil, NewKeywordClusterer())

	got, name, err := chain.Cluster(context.Background(), testVideos(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "keyword" {
		t.Errorf("clusterer = %q, want keyword", name)
	}
	if len(got) == 0 {
		t.Error("expected keyword clusters")
	}
}

func TestChain_AllFail(t *testing.T) {
	chain := NewChain(NewKeywordClusterer())

	_, _, err := chain.Cluster(context.Background(), []model.Video{{ID: "x", Title: "solo"}}, "")
	if !errors.Is(err, ErrNoClusters) {
		t.Errorf("err = %v, want ErrNoClusters", err)
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int
		want  string
	}{
		{"short", "pão", 5, "pão"},
		{"exact", "ação", 4, "ação"},
		{"cut after accent", "receita de pão caseiro", 13, "receita de pã..."},
		{"multibyte only", "ñññññ", 2, "ññ..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.input, tt.n)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.input, tt.n)
			}
		})
	}
}
