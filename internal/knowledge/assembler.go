// Package knowledge assembles the prompt context for model turns: static
// clinical documents, the symptom-specific retrieval block, and the
// serialized conversation history.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oncoline/chemochat-go/internal/models"
	"github.com/oncoline/chemochat-go/internal/vectorindex"
)

const (
	// SystemPromptFile holds the model's standing instructions, kept out of
	// the static document set.
	SystemPromptFile = "system_prompt.txt"

	// DefaultRetrievalK is the number of criteria excerpts retrieved per
	// symptom query.
	DefaultRetrievalK = 5

	retrievalHeader  = "### Relevant CTCAE v5 Criteria (from knowledge base)\n"
	sectionSeparator = "\n\n---\n\n"
)

// Embedder encodes text into the fixed-dimension vector space the index was
// built with.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Assembler builds prompt context. Static documents and the system prompt are
// loaded once under an initialization guard and cached for the process
// lifetime; the vector index is read-only, so the assembler is safe for
// concurrent use.
type Assembler struct {
	dir      string
	index    *vectorindex.Index
	embedder Embedder
	reader   Reader
	logger   *slog.Logger

	loadOnce     sync.Once
	staticDocs   []string
	systemPrompt string
}

// NewAssembler creates an assembler over the model-inputs directory.
// A nil embedder or empty index disables symptom retrieval; context assembly
// still works on the static documents alone.
func NewAssembler(dir string, index *vectorindex.Index, embedder Embedder, reader Reader, logger *slog.Logger) *Assembler {
	if reader == nil {
		reader = TextReader{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if index == nil {
		index = mustEmptyIndex()
	}
	return &Assembler{
		dir:      dir,
		index:    index,
		embedder: embedder,
		reader:   reader,
		logger:   logger,
	}
}

func mustEmptyIndex() *vectorindex.Index {
	ix, _ := vectorindex.New(nil, nil, vectorindex.MetricCosine)
	return ix
}

// load reads the static documents and system prompt exactly once. Concurrent
// first callers share the single load.
func (a *Assembler) load() {
	a.loadOnce.Do(func() {
		entries, err := os.ReadDir(a.dir)
		if err != nil {
			a.logger.Warn("model inputs directory unavailable, static context disabled",
				"dir", a.dir, "error", err)
			return
		}

		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || name == SystemPromptFile || strings.HasSuffix(name, ".json") {
				continue
			}
			if !strings.HasSuffix(name, ".txt") {
				a.logger.Debug("skipping unsupported document format", "file", name)
				continue
			}
			content, err := a.reader.Read(filepath.Join(a.dir, name))
			if err != nil {
				a.logger.Warn("failed to read knowledge document", "file", name, "error", err)
				continue
			}
			if content != "" {
				a.staticDocs = append(a.staticDocs, content)
			}
		}

		promptPath := filepath.Join(a.dir, SystemPromptFile)
		if prompt, err := a.reader.Read(promptPath); err == nil {
			a.systemPrompt = prompt
		} else {
			a.logger.Warn("system prompt not found", "path", promptPath)
		}

		a.logger.Info("knowledge context loaded", "static_documents", len(a.staticDocs))
	})
}

// SystemPrompt returns the cached standing instructions, or "" when the file
// is absent.
func (a *Assembler) SystemPrompt() string {
	a.load()
	return a.systemPrompt
}

// RetrieveSymptomContext returns the top-k criteria excerpts nearest to the
// joined symptom list, under a labeled header. An empty return means "no
// enhancement", never an error: missing index, missing embedder, empty
// symptoms, and embedding failures all degrade to "".
func (a *Assembler) RetrieveSymptomContext(ctx context.Context, symptoms []string, k int) string {
	if len(symptoms) == 0 || a.embedder == nil || a.index.Len() == 0 {
		return ""
	}
	if k <= 0 {
		k = DefaultRetrievalK
	}

	query := strings.Join(symptoms, ", ")
	vector, err := a.embedder.Embed(ctx, query)
	if err != nil {
		a.logger.Warn("symptom query embedding failed, retrieval skipped", "error", err)
		return ""
	}

	results := a.index.Search(vector, k)
	if len(results) == 0 {
		return ""
	}

	docs := make([]string, 0, len(results))
	for _, r := range results {
		if doc, ok := a.index.Document(r.Index); ok {
			docs = append(docs, doc)
		}
	}
	if len(docs) == 0 {
		return ""
	}

	a.logger.Debug("symptom context retrieved", "query", query, "documents", len(docs))
	return retrievalHeader + strings.Join(docs, "\n---\n")
}

// LoadContext concatenates the symptom retrieval block (first, for prompt
// primacy) with all static documents.
func (a *Assembler) LoadContext(ctx context.Context, symptoms []string) string {
	a.load()

	sections := make([]string, 0, len(a.staticDocs)+1)
	if retrieved := a.RetrieveSymptomContext(ctx, symptoms, DefaultRetrievalK); retrieved != "" {
		sections = append(sections, retrieved)
	}
	sections = append(sections, a.staticDocs...)
	return strings.Join(sections, sectionSeparator)
}

type historyEntry struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// BuildPrompt assembles the (system, user) prompt pair for one model turn.
// Apart from LoadContext's file cache, this is pure text assembly: the same
// inputs always yield the same prompts.
func (a *Assembler) BuildPrompt(ctx context.Context, history []models.Message, latestInput string, symptoms []string) (string, string) {
	entries := make([]historyEntry, 0, len(history))
	for _, m := range history {
		entries = append(entries, historyEntry{Sender: string(m.Sender), Content: m.Content})
	}
	historyJSON, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		historyJSON = []byte("[]")
	}
	symptomsJSON, err := json.Marshal(symptoms)
	if err != nil {
		symptomsJSON = []byte("[]")
	}

	parts := []string{
		"### Knowledge Base Context ###",
		a.LoadContext(ctx, symptoms),
		"\n### Conversation Context ###",
		fmt.Sprintf("Current Symptoms: %s", symptomsJSON),
		fmt.Sprintf("Chat History (most recent messages): %s", historyJSON),
		"\n### User's Latest Message ###",
		fmt.Sprintf("User: %q", latestInput),
		"\n### Instructions ###",
		"Follow the conversation workflow defined in your system instructions. Remember to respond with valid JSON only.",
	}
	return a.SystemPrompt(), strings.Join(parts, "\n")
}
