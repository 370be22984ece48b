package knowledge

import (
	"fmt"
	"os"
)

// Reader extracts plain text from a knowledge file. Format-specific
// extraction (PDF, DOCX) is an external concern; implementations are plugged
// in at composition time.
type Reader interface {
	Read(path string) (string, error)
}

// TextReader reads plain-text files verbatim.
type TextReader struct{}

var _ Reader = TextReader{}

func (TextReader) Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(data), nil
}
