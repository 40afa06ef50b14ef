package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	tikaext "github.com/fairyhunter13/ai-interview-coach/internal/adapter/textextractor/tika"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	"github.com/fairyhunter13/ai-interview-coach/internal/usecase"
)

// fileExtractor reads plain-text files and hands PDFs to Tika.
type fileExtractor struct {
	tika domain.TextExtractor
}

func (f fileExtractor) ExtractPath(ctx domain.Context, fileName, path string) (string, error) {
	if strings.EqualFold(filepath.Ext(fileName), ".pdf") {
		return f.tika.ExtractPath(ctx, fileName, path)
	}
	b, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type chunkOutput struct {
	Filename string         `json:"filename"`
	Chunks   []domain.Chunk `json:"chunks"`
}

func newChunkCmd() *cobra.Command {
	var (
		size, overlap int
		kind, tikaURL string
	)
	cmd := &cobra.Command{
		Use:   "chunk <file>...",
		Short: "Split documents into the overlapping chunks used for retrieval",
		Long: "Extracts each file (PDFs through Apache Tika, anything else read as plain text) " +
			"and prints its chunks as JSON, using the same splitter as interview ingestion.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if size <= 0 || overlap < 0 || overlap >= size {
				return fmt.Errorf("need --size > 0 and 0 <= --overlap < --size")
			}
			abs := make([]string, 0, len(args))
			docs := make([]usecase.UploadedDocument, 0, len(args))
			for _, a := range args {
				p, err := filepath.Abs(a)
				if err != nil {
					return err
				}
				abs = append(abs, filepath.Dir(p))
				docs = append(docs, usecase.UploadedDocument{Kind: kind, Filename: filepath.Base(p), Path: p})
			}
			x := fileExtractor{tika: tikaext.New(tikaURL, tikaext.WithAllowedRoots(abs...))}
			refs, err := usecase.NewIngestionService(x, size, overlap).Ingest(cmd.Context(), docs)
			if err != nil {
				return err
			}
			out := make([]chunkOutput, 0, len(refs))
			for _, r := range refs {
				out = append(out, chunkOutput{Filename: r.Filename, Chunks: r.Chunks})
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().IntVar(&size, "size", 1000, "Maximum chunk size in characters")
	cmd.Flags().IntVar(&overlap, "overlap", 100, "Characters shared between neighbouring chunks")
	cmd.Flags().StringVar(&kind, "kind", domain.DocumentResume, "Document kind recorded on the chunks")
	cmd.Flags().StringVar(&tikaURL, "tika-url", envOr("TIKA_URL", "http://localhost:9998"), "Apache Tika base URL for PDFs")
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
