// Package chunk implements the sliding-window splitter that turns page
// records into the units of embedding and retrieval.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"iter"
	"strconv"

	"github.com/lumen-docs/corpusqa/internal/domain/record"
)

// Default sliding-window constants.
const (
	DefaultWindow  = 1000
	DefaultOverlap = 200
)

// Chunk is a bounded substring of a page's text with its source attribution.
// StartOffset is the character (rune) offset within that page's text.
type Chunk struct {
	Content     string
	DocName     string
	Page        int
	StartOffset int
}

// Fingerprint returns a stable content identity for the chunk, used as the
// similarity-index upsert key so that re-ingesting identical content
// replaces prior entries instead of duplicating them.
func (c Chunk) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(c.DocName))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(c.Page)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(c.StartOffset)))
	h.Write([]byte{0})
	h.Write([]byte(c.Content))
	return hex.EncodeToString(h.Sum(nil))
}

// Splitter slides a fixed window over page text.
type Splitter struct {
	window  int
	overlap int
}

// NewSplitter validates the window constants. The stride is window - overlap.
func NewSplitter(window, overlap int) (Splitter, error) {
	if window <= 0 {
		return Splitter{}, fmt.Errorf("chunk window must be positive, got %d", window)
	}
	if overlap < 0 || overlap >= window {
		return Splitter{}, fmt.Errorf("chunk overlap must be in [0, window), got %d", overlap)
	}
	return Splitter{window: window, overlap: overlap}, nil
}

// Split emits the chunks of one page record as a lazy, finite sequence.
// The final window may be shorter than the configured size and is still
// emitted; empty text yields no chunks. Offsets are rune offsets so a
// window never splits a multi-byte character.
func (s Splitter) Split(rec record.PageRecord) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		text := []rune(rec.Text)
		n := len(text)
		if n == 0 {
			return
		}

		stride := s.window - s.overlap
		for start := 0; ; start += stride {
			end := start + s.window
			if end > n {
				end = n
			}
			c := Chunk{
				Content:     string(text[start:end]),
				DocName:     rec.DocName,
				Page:        rec.PageNum,
				StartOffset: start,
			}
			if !yield(c) || end == n {
				return
			}
		}
	}
}

// SplitAll chunks every page of an aggregate in assembly order.
func (s Splitter) SplitAll(agg record.DocumentAggregate) []Chunk {
	var chunks []Chunk
	for _, page := range agg.Pages {
		for c := range s.Split(page) {
			chunks = append(chunks, c)
		}
	}
	return chunks
}
