package ingestion

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"
)

// TextUnit is one ordered chunk of extracted text carrying its source
// filename as metadata.
type TextUnit struct {
	Text     string
	Source   string
	Position int
}

// Splitter turns extracted document text into ordered TextUnits using
// langchaingo's recursive-character splitter.
type Splitter struct {
	inner textsplitter.RecursiveCharacter
}

func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	return &Splitter{
		inner: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

// Split chunks text and stamps each unit with the source filename and its
// zero-based position.
func (s *Splitter) Split(text, source string) ([]TextUnit, error) {
	parts, err := s.inner.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", source, err)
	}

	units := make([]TextUnit, 0, len(parts))
	for i, p := range parts {
		if p == "" {
			continue
		}
		units = append(units, TextUnit{Text: p, Source: source, Position: i})
	}
	return units, nil
}
