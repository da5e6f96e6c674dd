/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/masktran/internal/detector"
	"github.com/valpere/masktran/internal/retrieval"
	"github.com/valpere/masktran/internal/translator"
	"github.com/valpere/masktran/internal/workflow"
)

var (
	inputFile  string
	outputFile string
	sourceLang string
	targetLang string

	engineName  string
	credentials string

	ollamaURL      string
	translateModel string
	inspectorModel string
	polisherModel  string

	dbPath       string
	noMemory     bool
	maxRetries   int
	callTimeout  time.Duration
	retryBackoff time.Duration

	noLanguageGate bool
	showStages     bool
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a file without leaking masked values",
	Long: `Translate a text file through the masking pipeline.

Sensitive values (emails, IP addresses, URLs) are replaced with opaque
placeholders before the text leaves the process; each sentence is
translated, tag-checked, quality-checked and polished independently, and
the original values are restored only into validated output.

Available engines:
  - ollama   Self-hosted LLM via Ollama (default)
  - google   Google Cloud Translation (requires credentials)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		// Bound viper keys resolve flag > config file > MASKTRAN_* env > default.
		ollamaURL = viper.GetString("ollama.url")
		translateModel = viper.GetString("ollama.model")
		dbPath = viper.GetString("db")

		raw, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}
		text := string(raw)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		det := detector.New()

		// Auto-detect source language when not specified.
		if sourceLang == "auto" {
			if detected, ok := det.DetectISO(text); ok {
				sourceLang = detected
				logger.Info("detected source language", "lang", sourceLang)
			} else {
				return fmt.Errorf("could not detect source language; pass --source explicitly")
			}
		}

		var retriever retrieval.Retriever = retrieval.Empty{}
		var memory workflow.MemoryWriter
		if dbPath != "" {
			db, err := retrieval.NewStore(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()
			retriever = db.ForPair(sourceLang, targetLang)
			if !noMemory {
				memory = db
			}
		}

		deps, err := buildDeps(retriever, memory)
		if err != nil {
			return err
		}
		if !noLanguageGate {
			deps.Detector = det
		}

		cfg := workflow.Config{
			SourceLang:   sourceLang,
			TargetLang:   targetLang,
			MaxRetries:   maxRetries,
			CallTimeout:  callTimeout,
			RetryBackoff: retryBackoff,
			Logger:       logger,
		}
		if showStages {
			cfg.Events = printEvent
		}

		result, err := workflow.New(deps, cfg).Run(ctx, text)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(outputFile, []byte(result.FinalText), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}

		fmt.Printf("Translated %s to %s: %d/%d segment(s) completed\n",
			sourceLang, targetLang, result.Done, result.Done+result.Failed)

		if result.Failed > 0 {
			for _, seg := range result.Segments {
				if seg.Err != nil {
					fmt.Fprintf(os.Stderr, "segment %d: %v\n", seg.Index, seg.Err)
				}
			}
			return fmt.Errorf("%d segment(s) failed; partial output written to %s", result.Failed, outputFile)
		}
		return nil
	},
}

// buildDeps assembles the engine collaborators for the selected engine. The
// inspector and polisher always run on Ollama; only the draft translator is
// switchable.
func buildDeps(retriever retrieval.Retriever, memory workflow.MemoryWriter) (workflow.Deps, error) {
	baseOpts := translator.DefaultOptions
	if ollamaURL != "" {
		baseOpts.BaseURL = ollamaURL
	}

	inspectorOpts := baseOpts
	if inspectorModel != "" {
		inspectorOpts.Model = inspectorModel
	}
	polisherOpts := baseOpts
	if polisherModel != "" {
		polisherOpts.Model = polisherModel
	}

	deps := workflow.Deps{
		Inspector: translator.NewOllamaInspector(inspectorOpts),
		Polisher:  translator.NewOllamaPolisher(polisherOpts),
		Retriever: retriever,
		Memory:    memory,
	}

	switch engineName {
	case "ollama":
		opts := baseOpts
		if translateModel != "" {
			opts.Model = translateModel
		}
		deps.Translator = translator.NewOllamaTranslator(opts)
	case "google":
		deps.Translator = translator.NewGoogleTranslator(credentials)
	default:
		return workflow.Deps{}, fmt.Errorf("unknown engine %q (want ollama or google)", engineName)
	}
	return deps, nil
}

func printEvent(ev workflow.Event) {
	if ev.Segment < 0 {
		fmt.Fprintf(os.Stderr, "[%s] run: %s %s\n", ev.RunID, ev.Status, ev.Detail)
		return
	}
	if ev.Detail != "" {
		fmt.Fprintf(os.Stderr, "[%s] segment %d: %s %s (%s)\n", ev.RunID, ev.Segment, ev.Stage, ev.Status, ev.Detail)
		return
	}
	fmt.Fprintf(os.Stderr, "[%s] segment %d: %s %s\n", ev.RunID, ev.Segment, ev.Stage, ev.Status)
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input file to translate (required)")
	translateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file for translation (required)")
	translateCmd.Flags().StringVarP(&sourceLang, "source", "s", "auto", "Source language code")
	translateCmd.Flags().StringVarP(&targetLang, "target", "t", "", "Target language code (required)")

	translateCmd.Flags().StringVar(&engineName, "engine", "ollama", "Translation engine: ollama or google")
	translateCmd.Flags().StringVarP(&credentials, "credentials", "c", "", "Path to Google Cloud credentials")

	translateCmd.Flags().StringVar(&ollamaURL, "ollama-url", "", "Ollama base URL (default http://localhost:11434)")
	translateCmd.Flags().StringVar(&translateModel, "model", "", "Translation model name")
	translateCmd.Flags().StringVar(&inspectorModel, "inspector-model", "", "Quality inspector model name")
	translateCmd.Flags().StringVar(&polisherModel, "polisher-model", "", "Polisher model name")

	translateCmd.Flags().StringVar(&dbPath, "db", "./data/masktran.db", "Database path for glossary and translation memory")
	translateCmd.Flags().BoolVar(&noMemory, "no-memory", false, "Disable translation memory writeback")
	translateCmd.Flags().IntVar(&maxRetries, "max-retries", workflow.DefaultMaxRetries, "Re-translation attempts per segment")
	translateCmd.Flags().DurationVar(&callTimeout, "call-timeout", 2*time.Minute, "Timeout per model call")
	translateCmd.Flags().DurationVar(&retryBackoff, "retry-backoff", 500*time.Millisecond, "Base backoff before a retry")

	translateCmd.Flags().BoolVar(&noLanguageGate, "no-language-gate", false, "Skip the local output-language check")
	translateCmd.Flags().BoolVar(&showStages, "show-stages", false, "Print per-segment stage transitions to stderr")

	bindFlag(translateCmd, "ollama-url", "ollama.url")
	bindFlag(translateCmd, "model", "ollama.model")
	bindFlag(translateCmd, "db", "db")

	translateCmd.MarkFlagRequired("input")
	translateCmd.MarkFlagRequired("output")
	translateCmd.MarkFlagRequired("target")
}
