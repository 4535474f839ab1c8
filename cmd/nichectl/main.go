package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "nichectl",
		Short:         "Score YouTube niches from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				return os.Setenv("CONFIG_PATH", cfgFile)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (overrides CONFIG_PATH)")

	root.AddCommand(scoreCmd())
	root.AddCommand(analyzeCmd())

	return root
}

func scoreCmd() *cobra.Command {
	var (
		file string
		at   string
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Enrich and score a JSON list of videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.OutOrStdout(), file, at)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with a video array or {\"videos\": [...]} (- for stdin)")
	cmd.Flags().StringVar(&at, "at", "", "score as of this RFC3339 time instead of now")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var (
		query       string
		maxResults  int
		days        int
		specificity string
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Search YouTube and rank the niches found for a query",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), analyzeOptions{
				query:       query,
				maxResults:  maxResults,
				days:        days,
				specificity: specificity,
				jsonOutput:  jsonOutput,
			})
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "search query")
	cmd.Flags().IntVar(&maxResults, "max-results", 50, "videos to fetch (max 200)")
	cmd.Flags().IntVar(&days, "days", 0, "only videos published within this many days (0 = any)")
	cmd.Flags().StringVar(&specificity, "specificity", "", "broad, sub-niche or micro-niche")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}
