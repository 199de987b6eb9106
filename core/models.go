package core

import (
	"encoding/json"
	"strconv"
)

// Metadata keys written on every vector record.
const (
	MetaPageContent = "pageContent"
	MetaSource      = "txtPath"
	MetaLocation    = "loc"
)

// Document is a unit of source text loaded for ingestion.
// Source identifies the document (usually its file path) and must be unique
// within a store, since record ids are derived from it.
type Document struct {
	Source   string
	Content  string
	Metadata map[string]any
}

// Chunk is a bounded, contiguous span of a Document's content.
type Chunk struct {
	Source   string
	Index    int
	Text     string
	Location Location
}

// ID returns the vector record id for this chunk.
func (c Chunk) ID() string {
	return RecordID(c.Source, c.Index)
}

// Location places a chunk inside its source text.
// Offset and Length are in bytes, lines are 1-based and inclusive.
type Location struct {
	Offset   int
	Length   int
	FromLine int
	ToLine   int
}

type locationJSON struct {
	Lines struct {
		From int `json:"from"`
		To   int `json:"to"`
	} `json:"lines"`
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// MarshalJSON encodes the location as {"lines":{"from":F,"to":T},"offset":O,"length":L}.
func (l Location) MarshalJSON() ([]byte, error) {
	var out locationJSON
	out.Lines.From = l.FromLine
	out.Lines.To = l.ToLine
	out.Offset = l.Offset
	out.Length = l.Length
	return json.Marshal(out)
}

// UnmarshalJSON decodes the format produced by MarshalJSON.
func (l *Location) UnmarshalJSON(data []byte) error {
	var in locationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*l = Location{
		Offset:   in.Offset,
		Length:   in.Length,
		FromLine: in.Lines.From,
		ToLine:   in.Lines.To,
	}
	return nil
}

// String returns the JSON encoding stored under the "loc" metadata key.
func (l Location) String() string {
	b, err := l.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
}

// RecordID builds the deterministic vector record id "<source>_<index>".
func RecordID(source string, index int) string {
	return source + "_" + strconv.Itoa(index)
}
