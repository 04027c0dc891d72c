package ingestion

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
)

var (
	// ErrUnsupportedFormat indicates a declared file type this adapter
	// cannot parse.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrEmptyDocument indicates extraction produced no text at all.
	ErrEmptyDocument = errors.New("no text extracted from document")
)

// Extractor converts a raw uploaded file into normalized plain text.
type Extractor interface {
	Extract(data []byte, declaredType string) (string, error)
}

// mimeByType maps the declared upload types onto the MIME types docconv
// dispatches on.
var mimeByType = map[string]string{
	"pdf":  "application/pdf",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"doc":  "application/msword",
	"txt":  "text/plain",
	"text": "text/plain",
	"md":   "text/markdown",
}

// DocconvExtractor implements Extractor using sajari/docconv.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

func (e *DocconvExtractor) Extract(data []byte, declaredType string) (string, error) {
	mime, ok := mimeByType[strings.ToLower(strings.TrimPrefix(declaredType, "."))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, declaredType)
	}

	// Plain text needs no conversion; docconv would route it through the
	// HTML cleaner and mangle whitespace.
	if mime == "text/plain" || mime == "text/markdown" {
		text := strings.TrimSpace(string(data))
		if text == "" {
			return "", ErrEmptyDocument
		}
		return text, nil
	}

	res, err := docconv.Convert(bytes.NewReader(data), mime, e.useReadability)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", declaredType, err)
	}
	text := strings.TrimSpace(res.Body)
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

var _ Extractor = (*DocconvExtractor)(nil)
