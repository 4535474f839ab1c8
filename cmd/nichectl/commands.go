package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mathieu-neron/nichescope/internal/cluster"
	"github.com/mathieu-neron/nichescope/internal/config"
	"github.com/mathieu-neron/nichescope/internal/logging"
	"github.com/mathieu-neron/nichescope/internal/middleware"
	"github.com/mathieu-neron/nichescope/internal/model"
	"github.com/mathieu-neron/nichescope/internal/service"
	"github.com/mathieu-neron/nichescope/internal/youtube"
)

type analyzeOptions struct {
	query       string
	maxResults  int
	days        int
	specificity string
	jsonOutput  bool
}

func runScore(out io.Writer, file, at string) error {
	data, err := readInput(file)
	if err != nil {
		return err
	}
	videos, err := decodeVideos(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}

	metrics := service.NewMetricsService()
	if at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
		metrics = service.NewMetricsServiceAt(t)
	}

	enriched := metrics.EnrichAll(videos)
	return writeJSON(out, model.ScoreResponse{
		Videos:  enriched,
		Metrics: metrics.CalculateNicheMetrics(enriched),
	})
}

func runAnalyze(ctx context.Context, out io.Writer, opts analyzeOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.InitConsole(cfg.LogLevel)

	req := model.AnalyzeRequest{
		Query:               opts.query,
		MaxResults:          opts.maxResults,
		PublishedWithinDays: opts.days,
		Specificity:         opts.specificity,
	}
	if msg := middleware.ValidateAnalyzeRequest(&req); msg != "" {
		return errors.New(msg)
	}

	yt, err := youtube.NewClient(ctx, cfg.YouTubeAPIKey)
	if err != nil {
		return err
	}

	var clusterers []cluster.Clusterer
	if cfg.LLMAPIKey != "" {
		client := cluster.NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMBaseURL)
		clusterers = append(clusterers, cluster.NewLLMClusterer(client, cfg.LLMModel, cfg.LLMTimeout))
	}
	clusterers = append(clusterers, cluster.NewKeywordClusterer())

	svc := service.NewNicheService(yt, cluster.NewChain(clusterers...), service.NewMetricsService(), nil, nil, nil)
	run, err := svc.Compute(ctx, req)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		run.Videos = nil
		return writeJSON(out, run)
	}
	return writeTable(out, run)
}

func readInput(file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(file)
}

// decodeVideos accepts either a bare JSON array or a {"videos": [...]} object.
func decodeVideos(data []byte) ([]model.Video, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var videos []model.Video
		err := json.Unmarshal(data, &videos)
		return videos, err
	}
	var req model.ScoreRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return req.Videos, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(out io.Writer, run *model.AnalysisRun) error {
	fmt.Fprintf(out, "%q: %d videos, %d niches (clusterer: %s)\n\n", run.Query, run.VideoCount, len(run.Niches), run.Clusterer)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OPPORTUNITY\tNICHE\tVIDEOS\tCHANNELS\tAVG VPH\tSATURATION\tTREND\tSPECIFICITY")
	for _, n := range run.Niches {
		m := n.Metrics
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%.1f\t%d\t%+d%%\t%s\n",
			m.OpportunityScore, n.Name, len(n.VideoIDs), m.UniqueChannels, m.AvgVPH,
			m.SaturationScore, m.TrendScore, n.Specificity)
	}
	return w.Flush()
}
