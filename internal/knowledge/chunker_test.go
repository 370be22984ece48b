package knowledge

import (
	"strings"
	"testing"
)

func TestChunkDocument_EmptyContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "completely empty", content: ""},
		{name: "whitespace only", content: "   \n\n\t  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ChunkDocument(tt.content, DefaultChunkConfig())
			if len(chunks) != 0 {
				t.Errorf("ChunkDocument() got %d chunks, want 0", len(chunks))
			}
		})
	}
}

func TestChunkDocument_ShortContent(t *testing.T) {
	content := "Nausea\n\nGrade 1: Loss of appetite without alteration in eating habits."
	chunks := ChunkDocument(content, DefaultChunkConfig())

	if len(chunks) != 1 {
		t.Fatalf("ChunkDocument() got %d chunks, want 1", len(chunks))
	}
	if !strings.Contains(chunks[0], "Grade 1") {
		t.Errorf("chunk missing content: %q", chunks[0])
	}
}

func TestChunkDocument_SplitsAtParagraphs(t *testing.T) {
	config := ChunkConfig{TargetSize: 60, MinSize: 10, MaxSize: 80}

	para := strings.Repeat("x", 70)
	content := para + "\n\n" + para + "\n\n" + para
	chunks := ChunkDocument(content, config)

	if len(chunks) != 3 {
		t.Fatalf("ChunkDocument() got %d chunks, want 3", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > config.MaxSize {
			t.Errorf("chunk[%d] length %d exceeds max %d", i, len(c), config.MaxSize)
		}
	}
}

func TestChunkDocument_TinyParagraphMergesWithNeighbor(t *testing.T) {
	config := ChunkConfig{TargetSize: 100, MinSize: 30, MaxSize: 120}

	content := "Fever\n\n" + strings.Repeat("y", 90)
	chunks := ChunkDocument(content, config)

	if len(chunks) != 1 {
		t.Fatalf("ChunkDocument() got %d chunks, want 1: %q", len(chunks), chunks)
	}
	if !strings.HasPrefix(chunks[0], "Fever") {
		t.Errorf("heading not merged into chunk: %q", chunks[0])
	}
}

func TestChunkDocument_OversizedParagraphSplitsAtSentences(t *testing.T) {
	config := ChunkConfig{TargetSize: 50, MinSize: 10, MaxSize: 80}

	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteString("This sentence describes one toxicity grade. ")
	}
	chunks := ChunkDocument(b.String(), config)

	if len(chunks) < 2 {
		t.Fatalf("ChunkDocument() got %d chunks, want multiple", len(chunks))
	}
	for i, c := range chunks {
		if !strings.HasSuffix(strings.TrimSpace(c), ".") {
			t.Errorf("chunk[%d] does not end at a sentence boundary: %q", i, c)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "single sentence", text: "Fever above 38C.", want: 1},
		{name: "two sentences", text: "Grade 1 is mild. Grade 2 is moderate.", want: 2},
		{name: "question and exclamation", text: "Is it severe? Call now!", want: 2},
		{name: "abbreviation not split", text: "The U.S. guideline applies here.", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.text)
			if len(got) != tt.want {
				t.Errorf("splitSentences() got %d sentences %q, want %d", len(got), got, tt.want)
			}
		})
	}
}
