package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/straja-ai/placeholder/internal/detection"
	"github.com/straja-ai/placeholder/internal/events"
	"github.com/straja-ai/placeholder/internal/placeholder"
)

const benchWarmupRuns = 5

type benchStats struct {
	Mode    string  `json:"mode"`
	N       int     `json:"n"`
	Batch   int     `json:"batch"`
	AvgMs   float64 `json:"avg_ms"`
	P50Ms   float64 `json:"p50_ms"`
	P95Ms   float64 `json:"p95_ms"`
	PerSec  float64 `json:"texts_per_sec"`
	Backend string  `json:"backend"`
}

func newBenchCommand(ctx *commandContext) *cobra.Command {
	var (
		n          int
		batch      int
		sample     string
		mode       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure embedding or end-to-end detection latency",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if mode != "embed" && mode != "detect" {
				return fmt.Errorf("unknown mode %q (want embed or detect)", mode)
			}
			n = max(n, 1)
			batch = max(batch, 1)

			rt, err := bootstrap(cmd.Context(), cfg, bootOptions{quiet: true, noEvents: true, stderr: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer rt.Close()

			texts := make([]string, batch)
			for i := range texts {
				texts[i] = sample
			}
			run := benchEmbed(rt.embedder, texts)
			if mode == "detect" {
				run = benchDetect(rt.service, texts)
			}

			for i := 0; i < benchWarmupRuns; i++ {
				if err := run(cmd.Context()); err != nil {
					return fmt.Errorf("warmup: %w", err)
				}
			}
			durations := make([]time.Duration, 0, n)
			for i := 0; i < n; i++ {
				start := time.Now()
				if err := run(cmd.Context()); err != nil {
					return fmt.Errorf("run %d: %w", i, err)
				}
				durations = append(durations, time.Since(start))
			}

			stats := summarize(durations, batch)
			stats.Mode = mode
			stats.Backend = rt.service.Info().Embedder
			if jsonOutput {
				return writeJSON(cmd, stats)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bench: mode=%s n=%s batch=%d avg_ms=%.2f p50_ms=%.2f p95_ms=%.2f texts/s=%s backend=%s\n",
				stats.Mode,
				humanize.Comma(int64(stats.N)),
				stats.Batch,
				stats.AvgMs,
				stats.P50Ms,
				stats.P95Ms,
				humanize.CommafWithDigits(stats.PerSec, 1),
				stats.Backend,
			)
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "iterations", "n", 200, "Number of timed runs")
	cmd.Flags().IntVar(&batch, "batch", 1, "Texts per run")
	cmd.Flags().StringVar(&sample, "text", "YOUR COMPANY NAME", "Text to embed")
	cmd.Flags().StringVar(&mode, "mode", "embed", "embed | detect")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	return cmd
}

func benchEmbed(e placeholder.Embedder, texts []string) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := e.Embed(ctx, texts)
		return err
	}
}

func benchDetect(svc *detection.Service, texts []string) func(context.Context) error {
	candidates := candidatesFromArgs(texts)
	return func(ctx context.Context) error {
		_, err := svc.Detect(ctx, detection.Request{
			RequestID:  uuid.NewString(),
			Source:     events.SourceCLI,
			Candidates: candidates,
		})
		return err
	}
}

// summarize reports nearest-rank percentiles over the sorted durations.
func summarize(durations []time.Duration, batch int) benchStats {
	if len(durations) == 0 {
		return benchStats{Batch: batch}
	}
	sorted := slices.Clone(durations)
	slices.Sort(sorted)

	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000.0 }
	p95 := min(int(float64(len(sorted))*0.95), len(sorted)-1)

	stats := benchStats{
		N:     len(sorted),
		Batch: batch,
		AvgMs: ms(total) / float64(len(sorted)),
		P50Ms: ms(sorted[len(sorted)/2]),
		P95Ms: ms(sorted[p95]),
	}
	if total > 0 {
		stats.PerSec = float64(len(sorted)*batch) / total.Seconds()
	}
	return stats
}
