package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/straja-ai/placeholder/internal/detection"
	"github.com/straja-ai/placeholder/internal/events"
	"github.com/straja-ai/placeholder/internal/placeholder"
)

type detectFlags struct {
	jsonOutput bool
	threshold  float64
	exactOnly  bool
	noColor    bool
}

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var flags detectFlags

	cmd := &cobra.Command{
		Use:   "detect [text...]",
		Short: "Find the placeholder among candidate texts",
		Long: `Each argument is one candidate, indexed by position. Without arguments the
candidates are read from stdin: a JSON array of {"text","index"} objects, an
object with a "text_json" array, or one candidate per line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			candidates := candidatesFromArgs(args)
			if len(args) == 0 {
				candidates, err = readCandidates(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}

			rt, err := bootstrap(cmd.Context(), cfg, bootOptions{
				quiet:      true,
				noEmbedder: flags.exactOnly,
				stderr:     cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			defer rt.Close()

			opts := rt.service.Defaults()
			if cmd.Flags().Changed("threshold") {
				opts.Threshold = flags.threshold
			}
			v, err := rt.service.Detect(cmd.Context(), detection.Request{
				RequestID:  uuid.NewString(),
				Source:     events.SourceCLI,
				Candidates: candidates,
				Options:    &opts,
			})
			if err != nil && !(flags.exactOnly && errors.Is(err, placeholder.ErrNoEmbedder)) {
				return err
			}

			if flags.jsonOutput {
				return writeJSON(cmd, detectOutput(v))
			}
			out := cmd.OutOrStdout()
			if v == nil {
				fmt.Fprintln(out, "No standalone company name placeholders detected above threshold")
				return nil
			}
			fmt.Fprintln(out, renderVerdict(v, !flags.noColor && isTerminal(out)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print the verdict as JSON")
	cmd.Flags().Float64Var(&flags.threshold, "threshold", 0, "Override the configured threshold")
	cmd.Flags().BoolVar(&flags.exactOnly, "exact-only", false, "Skip the embedding model; only exact and structural matches")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")
	return cmd
}

// detectOutput mirrors the HTTP response body.
func detectOutput(v *placeholder.Verdict) map[string]any {
	if v == nil {
		return map[string]any{
			"status_code": 201,
			"error":       "No strong placeholder match found",
			"message":     "No standalone company name placeholders detected above threshold",
		}
	}
	return map[string]any{"status_code": 200, "data": v}
}

func renderVerdict(v *placeholder.Verdict, colorize bool) string {
	headers := []string{"Index", "Company name", "Similarity", "Confidence", "Method"}
	aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft}
	row := []string{
		strconv.Itoa(v.Index),
		v.CompanyName,
		formatScore(v.Similarity),
		confidenceColor(v.Confidence, colorize).Sprint(string(v.Confidence)),
		string(v.DetectionMethod),
	}
	if b := v.ScoreBreakdown; b != nil {
		headers = append(headers, "Semantic", "Fuzzy", "Format")
		aligns = append(aligns, alignRight, alignRight, alignRight)
		row = append(row, formatScore(b.Semantic), formatScore(b.Fuzzy), formatScore(b.Format))
	}
	return renderTable(headers, [][]string{row}, aligns)
}

func candidatesFromArgs(args []string) []placeholder.Candidate {
	out := make([]placeholder.Candidate, len(args))
	for i, a := range args {
		out[i] = placeholder.Candidate{Text: a, Index: i}
	}
	return out
}

type stdinCandidate struct {
	Text  string `json:"text"`
	Index *int   `json:"index"`
}

// readCandidates accepts a JSON array, a {"text_json": [...]} object, or
// plain lines. Blank lines keep their position.
func readCandidates(r io.Reader) ([]placeholder.Candidate, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("no candidates: pass texts as arguments or on stdin")
	}

	var items []stdinCandidate
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode candidates: %w", err)
		}
	case '{':
		var body struct {
			TextJSON []stdinCandidate `json:"text_json"`
		}
		if err := json.Unmarshal(trimmed, &body); err != nil {
			return nil, fmt.Errorf("decode candidates: %w", err)
		}
		items = body.TextJSON
	default:
		var out []placeholder.Candidate
		sc := bufio.NewScanner(bytes.NewReader(data))
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			out = append(out, placeholder.Candidate{Text: strings.TrimRight(sc.Text(), "\r"), Index: len(out)})
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return out, nil
	}

	out := make([]placeholder.Candidate, len(items))
	for i, it := range items {
		out[i] = placeholder.Candidate{Text: it.Text, Index: i}
		if it.Index != nil {
			out[i].Index = *it.Index
		}
	}
	return out, nil
}
