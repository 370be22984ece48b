package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oncoline/chemochat-go/internal/knowledge"
)

var (
	indexDir    string
	indexOut    string
	indexDryRun bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the knowledge base vector index",
	Long: `Build the vector index from the knowledge base documents.

Reads every .txt file under the source directory, splits it into
paragraph chunks, embeds each chunk, and writes vectors.json and
documents.json next to the source documents. The server loads these
files on startup.

Examples:
  chemochat index
  chemochat index --dir model_inputs/ctcae --out model_inputs
  chemochat index --dry-run`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexDir, "dir", "", "source document directory (default: model inputs dir)")
	indexCmd.Flags().StringVar(&indexOut, "out", "", "output directory (default: model inputs dir)")
	indexCmd.Flags().BoolVar(&indexDryRun, "dry-run", false, "chunk documents without embedding or writing")
}

func runIndex(cmd *cobra.Command, args []string) error {
	dir := indexDir
	if dir == "" {
		dir = cfg.ModelInputsDir
	}
	out := indexOut
	if out == "" {
		out = cfg.ModelInputsDir
	}

	chunks, err := collectChunks(dir)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no .txt documents found under %s", dir)
	}
	fmt.Printf("Collected %d chunks from %s\n", len(chunks), dir)

	if indexDryRun {
		for i, c := range chunks {
			if verbose {
				fmt.Printf("--- chunk %d ---\n%s\n", i, c)
			}
		}
		return nil
	}

	emb, err := getEmbedder()
	if err != nil {
		return err
	}

	ctx := context.Background()
	vectors := make([][]float32, 0, len(chunks))
	for i, c := range chunks {
		vec, err := emb.Embed(ctx, c)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", i, err)
		}
		vectors = append(vectors, vec)
		if verbose {
			fmt.Printf("embedded chunk %d/%d\n", i+1, len(chunks))
		}
	}

	if err := writeJSON(filepath.Join(out, "vectors.json"), vectors); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(out, "documents.json"), chunks); err != nil {
		return err
	}

	fmt.Printf("Wrote %d vectors (dimension %d) to %s\n", len(vectors), emb.Dimension(), out)
	return nil
}

// collectChunks reads all .txt files under dir and splits them into
// paragraph chunks. The system prompt is not indexed.
func collectChunks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read document directory: %w", err)
	}

	var chunks []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".txt" {
			continue
		}
		if entry.Name() == "system_prompt.txt" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		chunks = append(chunks, knowledge.ChunkDocument(string(data), knowledge.DefaultChunkConfig())...)
	}
	return chunks, nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
