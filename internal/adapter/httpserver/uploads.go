package httpserver

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	"github.com/fairyhunter13/ai-interview-coach/internal/usecase"
)

// allowedAudio lists recorder formats accepted for answers. Browsers record
// webm/opus, which mimetype may report as video/webm.
var allowedAudio = map[string]bool{
	"audio/webm":   true,
	"video/webm":   true,
	"audio/ogg":    true,
	"audio/mpeg":   true,
	"audio/wav":    true,
	"audio/x-wav":  true,
	"audio/mp4":    true,
	"audio/x-m4a":  true,
	"audio/flac":   true,
	"audio/x-flac": true,
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

func acceptsJSON(r *http.Request) error {
	a := r.Header.Get("Accept")
	if a == "" || strings.Contains(a, "*/*") || strings.Contains(a, "application/json") {
		return nil
	}
	return fmt.Errorf("%w: %s", errNotAcceptable, a)
}

// readFormFile returns the bytes of an optional multipart file. A missing
// field yields nil data and no error.
func readFormFile(r *http.Request, field string, limit int64) ([]byte, *multipart.FileHeader, error) {
	f, h, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidArgument, field, err)
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s read: %v", domain.ErrInvalidArgument, field, err)
	}
	if int64(len(data)) > limit {
		return nil, nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrInvalidArgument, field, limit)
	}
	return data, h, nil
}

// savePDF validates an uploaded PDF by extension and content and writes it
// to a temp file. The caller removes the file.
func savePDF(kind string, data []byte, h *multipart.FileHeader) (usecase.UploadedDocument, error) {
	if !strings.EqualFold(filepath.Ext(h.Filename), ".pdf") {
		return usecase.UploadedDocument{}, fmt.Errorf("%w: %s must be a .pdf file", errUnsupportedMedia, kind)
	}
	if mt := mimetype.Detect(data); !mt.Is("application/pdf") {
		return usecase.UploadedDocument{}, fmt.Errorf("%w: %s content is %s", errUnsupportedMedia, kind, mt.String())
	}
	tmp, err := os.CreateTemp("", "upload-*.pdf")
	if err != nil {
		return usecase.UploadedDocument{}, fmt.Errorf("op=httpserver.savePDF: %w", err)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmp.Name())
		return usecase.UploadedDocument{}, fmt.Errorf("op=httpserver.savePDF: %w", err)
	}
	return usecase.UploadedDocument{Kind: kind, Filename: filepath.Base(h.Filename), Path: tmp.Name()}, nil
}

// audioExt sniffs recorded audio and returns the file extension to hand to
// the transcription service.
func audioExt(data []byte, h *multipart.FileHeader) (string, error) {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if allowedAudio[m.String()] {
			ext := strings.ToLower(filepath.Ext(h.Filename))
			if ext == "" {
				ext = mt.Extension()
			}
			return ext, nil
		}
	}
	return "", fmt.Errorf("%w: audio content is %s", errUnsupportedMedia, mt.String())
}
