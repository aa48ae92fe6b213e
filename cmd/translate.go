package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"transbooks/internal/app"
	"transbooks/internal/chunking"
	"transbooks/internal/extract"
	"transbooks/internal/fileingest"
	"transbooks/internal/protect"
	"transbooks/internal/translate"
)

var (
	translateOut         string
	translateChunkSize   int
	translateConcurrency int
)

// translateCmd runs the pipeline locally against one file or every supported
// file under a directory, bypassing the job lifecycle and billing. Useful for
// smoke-testing a model or a document.
var translateCmd = &cobra.Command{
	Use:   "translate <file-or-dir>",
	Short: "Translate documents locally (no job, no billing)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		info, err := os.Stat(args[0])
		if err != nil {
			return err
		}

		var paths []string
		if info.IsDir() {
			files, err := fileingest.DiscoverDocuments(args[0], appInstance.Config.Intake.AllowedExtensions)
			if err != nil {
				return fmt.Errorf("error discovering documents under %s: %w", args[0], err)
			}
			if len(files) == 0 {
				fmt.Println("No translatable documents found.")
				return nil
			}
			for _, f := range files {
				paths = append(paths, f.Path)
			}
		} else {
			paths = []string{args[0]}
		}

		for _, path := range paths {
			if err := translateFile(cmd.Context(), appInstance, path); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		return nil
	},
}

func translateFile(ctx context.Context, appInstance *app.App, path string) error {
	extractor, err := extract.ForFile(path)
	if err != nil {
		return err
	}
	meta, err := extractor.Metadata(path)
	if err != nil {
		return err
	}
	text, err := extractor.ExtractMarkdown(path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no extractable text")
	}

	chunkSize := translateChunkSize
	if chunkSize <= 0 {
		chunkSize = appInstance.Config.Translate.ChunkSize
	}
	concurrency := translateConcurrency
	if concurrency <= 0 {
		concurrency = appInstance.Config.Translate.Concurrency
	}

	title := translate.TranslateOne(ctx, appInstance.Translator, meta.Title)

	protected, table := protect.Protect(text)
	chunks := chunking.Split(protected, chunkSize)
	fmt.Printf("Translating %q: %d chunks, %d parallel\n", meta.Title, len(chunks), concurrency)

	results, err := translate.TranslateAll(ctx, appInstance.Translator, chunks, concurrency,
		func(done, total int) {
			fmt.Printf("\r%d/%d (%d%%)", done, total, done*100/total)
		})
	fmt.Println()
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}

	body := protect.Restore(translate.Join(results), table)

	outDir := translateOut
	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	outPath, err := extract.Assemble(outDir, filepath.Base(path), title, body)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", outPath)
	return nil
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVar(&translateOut, "out", "", "Output directory (defaults to each source's directory)")
	translateCmd.Flags().IntVar(&translateChunkSize, "chunk-size", 0, "Chunk size in characters (defaults to config)")
	translateCmd.Flags().IntVar(&translateConcurrency, "concurrency", 0, "Parallel translation calls (defaults to config)")
}
