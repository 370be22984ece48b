package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oncoline/chemochat-go/internal/vectorindex"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Query the knowledge base index",
	Long: `Search the knowledge base index with a free-text query.

Embeds the query and returns the closest document chunks. Useful for
checking what criteria the engine will retrieve for a given symptom.

Examples:
  chemochat search "nausea"
  chemochat search "grade 3 diarrhea" -n 3`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "max results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]
	ctx := context.Background()

	emb, err := getEmbedder()
	if err != nil {
		return err
	}

	index, err := vectorindex.Load(
		filepath.Join(cfg.ModelInputsDir, "vectors.json"),
		filepath.Join(cfg.ModelInputsDir, "documents.json"),
		vectorindex.MetricCosine,
		nil,
	)
	if err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	if index.Len() == 0 {
		fmt.Println("Index is empty. Run 'chemochat index' first.")
		return nil
	}

	vec, err := emb.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}

	results := index.Search(vec, searchLimit)
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(results))
	for i, r := range results {
		doc, _ := index.Document(r.Index)
		fmt.Printf("%d. distance=%.4f\n", i+1, r.Distance)
		if verbose {
			fmt.Printf("%s\n\n", doc)
		} else {
			fmt.Printf("   %s\n\n", firstLine(doc))
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 100 {
		s = s[:100] + "..."
	}
	return s
}
