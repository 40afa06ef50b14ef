package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

const (
	maxJSONBody       = 1 << 20
	maxJobDescription = 20000
)

type startRequest struct {
	JobDescription string `json:"job_description" validate:"max=20000"`
}

type answerRequest struct {
	Text string `json:"text" validate:"required,max=10000"`
}

type resetRequest struct {
	KeepDocuments bool `json:"keep_documents"`
}

type podcastRequest struct {
	IncludeTranscript bool `json:"include_transcript"`
}

type chatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required,max=20000"`
}

type chatRequest struct {
	Messages []chatMessage `json:"messages" validate:"required,min=1,max=50,dive"`
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New(validator.WithRequiredStructEnabled())
		vld.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return vld
}

// decodeJSON reads a capped JSON body into dst and validates it. An empty
// body leaves dst at its zero value when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return validateStruct(dst)
		}
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return fmt.Errorf("%w: request body too large", domain.ErrInvalidArgument)
		}
		return fmt.Errorf("%w: invalid json: %v", domain.ErrInvalidArgument, err)
	}
	return validateStruct(dst)
}

// validationError carries per-field failures for the error envelope details.
type validationError struct {
	Fields map[string]string
}

func (e validationError) Error() string { return "validation failed" }

func (e validationError) Unwrap() error { return domain.ErrInvalidArgument }

func validateStruct(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fieldPath(fe.Namespace())] = fe.Tag()
	}
	return validationError{Fields: fields}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func detailsOf(err error) any {
	var ve validationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

// validSessionID accepts canonical UUIDs only, so path values never reach
// file names or storage keys unchecked.
func validSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: session id required", domain.ErrInvalidArgument)
	}
	u, err := uuid.Parse(id)
	if err != nil || u.String() != id {
		return fmt.Errorf("%w: malformed session id", domain.ErrInvalidArgument)
	}
	return nil
}

// SanitizeString removes NUL bytes and invalid UTF-8, trims whitespace and
// caps the length in runes.
func SanitizeString(input string, maxRunes int) string {
	input = strings.ReplaceAll(input, "\x00", "")
	if !utf8.ValidString(input) {
		input = strings.ToValidUTF8(input, "")
	}
	input = strings.TrimSpace(input)
	if maxRunes > 0 && utf8.RuneCountInString(input) > maxRunes {
		input = string([]rune(input)[:maxRunes])
	}
	return input
}
