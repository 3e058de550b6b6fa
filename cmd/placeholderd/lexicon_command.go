package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/straja-ai/placeholder/internal/placeholder"
)

type lexiconView struct {
	Source      string   `json:"source"`
	Fingerprint string   `json:"fingerprint"`
	Entries     []string `json:"entries"`
	Patterns    []string `json:"patterns"`
}

func newLexiconCommand(ctx *commandContext) *cobra.Command {
	var (
		file       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "lexicon",
		Short: "Show the active lexicon and its fingerprint",
		Long:  "Loads --file, or detector.lexicon_file, or the built-in lexicon. A file that fails to load is reported as an error, so this also validates lexicon files.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.Detector.LexiconFile
			}
			view, err := loadLexiconView(file)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, view)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "source: %s\nfingerprint: %s\nentries: %d\npatterns: %d\n\n",
				view.Source, view.Fingerprint, len(view.Entries), len(view.Patterns))
			rows := make([][]string, 0, len(view.Entries))
			for i, e := range view.Entries {
				rows = append(rows, []string{strconv.Itoa(i), e, placeholder.Normalize(e)})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "Entry", "Normalized"}, rows, []columnAlignment{alignRight}))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Lexicon file (.yaml, .yml, .toml, .json)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the lexicon as JSON")
	return cmd
}

func loadLexiconView(file string) (lexiconView, error) {
	lex := placeholder.DefaultLexicon()
	source := "built-in"
	if file != "" {
		var err error
		lex, err = placeholder.LoadLexiconFile(file)
		if err != nil {
			return lexiconView{}, err
		}
		source = file
	}
	view := lexiconView{
		Source:      source,
		Fingerprint: lex.Fingerprint(),
		Entries:     lex.Entries(),
	}
	for _, re := range lex.Patterns() {
		view.Patterns = append(view.Patterns, re.String())
	}
	return view, nil
}
