// Package cli provides the command-line interface for chemochat.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oncoline/chemochat-go/internal/config"
	"github.com/oncoline/chemochat-go/internal/llm"
	"github.com/oncoline/chemochat-go/internal/store"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and session store
	cfg config.Config
	st  *store.SQLite

	// Lazy-initialized embedder
	embedder *llm.Embedder
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "chemochat",
	Short: "Chemotherapy symptom triage administration",
	Long: `Chemochat guides oncology patients through a daily symptom check-in.

This tool administers a chemochat deployment: build the knowledge base
index, try retrieval queries, and inspect or clean up stored sessions.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		st, err = store.OpenSQLite(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if st != nil {
			if err := st.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
			}
		}
	},
}

// getEmbedder initializes the embedder on first use. Index and search
// commands need it; session commands don't.
func getEmbedder() (*llm.Embedder, error) {
	if embedder == nil {
		var err error
		embedder, err = llm.NewEmbedder(cfg)
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
	}
	return embedder, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(sessionCmd)
}
