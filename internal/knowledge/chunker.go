package knowledge

import (
	"strings"
	"unicode"
)

// ChunkConfig defines chunking parameters for indexing documents.
type ChunkConfig struct {
	// TargetSize: ideal chunk size when splitting by sentences
	TargetSize int
	// MinSize: minimum chunk size (smaller chunks merge with neighbors)
	MinSize int
	// MaxSize: maximum chunk size (larger paragraphs split at sentences)
	MaxSize int
}

// DefaultChunkConfig returns defaults sized for toxicity criteria blocks,
// which are a heading line plus a handful of grade descriptions.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		TargetSize: 750,
		MinSize:    50,
		MaxSize:    1200,
	}
}

// ChunkDocument splits a document into retrieval chunks at paragraph
// boundaries. Paragraphs larger than MaxSize are split at sentences;
// paragraphs smaller than MinSize merge with the previous chunk so a bare
// heading never becomes its own chunk.
func ChunkDocument(content string, config ChunkConfig) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if current.Len()+len(para) > config.MaxSize && current.Len() >= config.MinSize {
			flush()
		}

		if len(para) > config.MaxSize {
			flush()
			chunks = append(chunks, chunkBySentences(para, config.TargetSize)...)
			continue
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return chunks
}

// chunkBySentences splits oversized text at sentence boundaries, packing
// sentences up to the target size.
func chunkBySentences(text string, targetSize int) []string {
	var chunks []string
	var current strings.Builder

	for _, sentence := range splitSentences(text) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		if current.Len()+len(sentence) > targetSize && current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}

	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

// splitSentences splits text into sentences.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				// Not an abbreviation (simple heuristic)
				if i > 1 && unicode.IsUpper(runes[i-1]) {
					continue
				}
				sentences = append(sentences, current.String())
				current.Reset()
			}
		}
	}

	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}
