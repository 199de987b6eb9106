package chunking

import (
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docqa/core"
	"github.com/tmc/langchaingo/textsplitter"
)

// DefaultChunkSize is the maximum chunk length, in LenFunc units, when none is configured.
const DefaultChunkSize = 1000

// Chunker is a deterministic recursive character splitter.
// It is safe for concurrent use.
type Chunker struct {
	size       int
	separators []string
	lenFunc    func(string) int
}

var _ textsplitter.TextSplitter = (*Chunker)(nil)

// NewChunker creates a chunker from textsplitter options.
// Chunk overlap and token settings are ignored.
func NewChunker(opts ...textsplitter.Option) *Chunker {
	o := textsplitter.DefaultOptions()
	o.ChunkSize = DefaultChunkSize
	for _, opt := range opts {
		opt(&o)
	}

	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.LenFunc == nil {
		o.LenFunc = utf8.RuneCountInString
	}

	seps := append([]string(nil), o.Separators...)
	if len(seps) == 0 || seps[len(seps)-1] != "" {
		// The empty separator guarantees termination on unbreakable text.
		seps = append(seps, "")
	}

	return &Chunker{
		size:       o.ChunkSize,
		separators: seps,
		lenFunc:    o.LenFunc,
	}
}

// ChunkSize returns the configured maximum chunk length.
func (c *Chunker) ChunkSize() int {
	return c.size
}

// SplitText splits text into chunk strings. It never returns an error.
func (c *Chunker) SplitText(text string) ([]string, error) {
	if text == "" {
		return []string{}, nil
	}
	return c.split(text, c.separators), nil
}

// Split splits text into ordered chunks attributed to source.
// Empty text yields no chunks.
func (c *Chunker) Split(source, text string) []core.Chunk {
	if text == "" {
		return []core.Chunk{}
	}

	pieces := c.split(text, c.separators)
	chunks := make([]core.Chunk, 0, len(pieces))

	offset := 0
	line := 1
	for i, piece := range pieces {
		to := line + strings.Count(strings.TrimRight(piece, "\n"), "\n")
		chunks = append(chunks, core.Chunk{
			Source: source,
			Index:  i,
			Text:   piece,
			Location: core.Location{
				Offset:   offset,
				Length:   len(piece),
				FromLine: line,
				ToLine:   to,
			},
		})
		offset += len(piece)
		line += strings.Count(piece, "\n")
	}

	return chunks
}

// split recursively breaks text on the first separator present, then packs
// the pieces greedily.
func (c *Chunker) split(text string, seps []string) []string {
	if c.lenFunc(text) <= c.size {
		return []string{text}
	}

	sep, rest := "", []string(nil)
	for i, s := range seps {
		if s == "" || strings.Contains(text, s) {
			sep, rest = s, seps[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		pieces = splitRunes(text)
	} else {
		pieces = strings.SplitAfter(text, sep)
	}

	var (
		out []string
		buf strings.Builder
	)
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
		}
	}

	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		if c.lenFunc(piece) > c.size {
			flush()
			if sep == "" {
				// A single rune that still measures over the limit.
				out = append(out, piece)
			} else {
				out = append(out, c.split(piece, rest)...)
			}
			continue
		}
		if buf.Len() > 0 && c.lenFunc(buf.String()+piece) > c.size {
			flush()
		}
		buf.WriteString(piece)
	}
	flush()

	return out
}

func splitRunes(text string) []string {
	out := make([]string, 0, utf8.RuneCountInString(text))
	for i, w := 0, 0; i < len(text); i += w {
		_, w = utf8.DecodeRuneInString(text[i:])
		out = append(out, text[i:i+w])
	}
	return out
}
