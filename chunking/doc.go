// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package chunking splits document text into bounded, contiguous chunks.
//
// The Chunker walks a separator hierarchy (paragraphs, lines, words, then
// individual characters) and greedily packs the resulting pieces into chunks
// no longer than the configured size. Separators stay attached to the piece
// they end, so concatenating every chunk of a document yields the document
// text exactly. Each chunk carries its byte offset and line range.
//
// Chunker satisfies langchaingo's textsplitter.TextSplitter and is configured
// with textsplitter options:
//
//	c := chunking.NewChunker(textsplitter.WithChunkSize(1000))
//	chunks := c.Split("docs/guide.md", text)
package chunking
