package usecase

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	intobs "github.com/fairyhunter13/ai-interview-coach/internal/observability"
	"github.com/fairyhunter13/ai-interview-coach/pkg/textx"
)

// UploadedDocument is a document already written to a local file.
type UploadedDocument struct {
	Kind     string
	Filename string
	Path     string
}

// IngestionService extracts text from uploaded documents and splits it into
// overlapping chunks.
type IngestionService struct {
	Extractor    domain.TextExtractor
	ChunkSize    int
	ChunkOverlap int
}

// NewIngestionService constructs an IngestionService. Non-positive sizes
// fall back to the textx defaults.
func NewIngestionService(x domain.TextExtractor, size, overlap int) IngestionService {
	if size <= 0 {
		size = textx.DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = textx.DefaultChunkOverlap
	}
	return IngestionService{Extractor: x, ChunkSize: size, ChunkOverlap: overlap}
}

// Ingest extracts and chunks every document. An unreadable or empty document
// fails the whole call. Zero documents yield an empty result.
func (s IngestionService) Ingest(ctx domain.Context, docs []UploadedDocument) ([]domain.DocumentRef, error) {
	lg := intobs.LoggerFromContext(ctx)
	refs := make([]domain.DocumentRef, 0, len(docs))
	for _, d := range docs {
		text, err := s.Extractor.ExtractPath(ctx, d.Filename, d.Path)
		if err != nil {
			return nil, fmt.Errorf("op=usecase.Ingest: extract %s: %w", d.Filename, err)
		}
		text = textx.SanitizeText(text)
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("op=usecase.Ingest: %w: no text extracted from %s", domain.ErrInvalidArgument, d.Filename)
		}
		parts := textx.SplitText(text, s.ChunkSize, s.ChunkOverlap)
		chunks := make([]domain.Chunk, len(parts))
		for i, p := range parts {
			chunks[i] = domain.Chunk{Index: i, Text: p}
		}
		refs = append(refs, domain.DocumentRef{
			ID:       uuid.NewString(),
			Kind:     d.Kind,
			Filename: d.Filename,
			Chunks:   chunks,
		})
		lg.Info("document ingested",
			slog.String("kind", d.Kind),
			slog.String("filename", d.Filename),
			slog.Int("chars", len(text)),
			slog.Int("chunks", len(chunks)))
	}
	return refs, nil
}
