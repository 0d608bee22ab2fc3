package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Lllllllleong/bookpagevectors/internal/config"
	"github.com/Lllllllleong/bookpagevectors/internal/models"
	"github.com/Lllllllleong/bookpagevectors/internal/services"
	"github.com/Lllllllleong/bookpagevectors/internal/store"
	"github.com/spf13/cobra"
)

var errRunFailed = errors.New("run failed")

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "page-vectorizer",
		Short:         "Vectorize the pages of book PDFs stored in GCS",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.GetEnv("CONFIG_FILE", ""), "config file path")

	root.AddCommand(newRunCmd(&cfgFile), newMigrateCmd(&cfgFile))
	return root
}

func newRunCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:     "run key=<storageKey>",
		Short:   "Rasterize, embed, store and republish every page of one document",
		Example: "page-vectorizer run key=books/english-reader-A.pdf",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return err
			}
			vectorizer, rt, err := services.NewPageVectorizerFromConfig(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			result := vectorizer.Handle(cmd.Context(), args[0])
			return writeResult(cmd.OutOrStdout(), result)
		},
	}
}

// writeResult prints result as JSON and turns a failed run into an error so
// the process exits non-zero.
func writeResult(w io.Writer, result models.RunResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if result.Status != models.StatusSuccess {
		return fmt.Errorf("%w: %s", errRunFailed, result.Message)
	}
	return nil
}

func newMigrateCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ContentPageVector table and its unique indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return err
			}
			pool, err := store.NewPool(cmd.Context(), cfg.Database.ConnString())
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := store.EnsureSchema(cmd.Context(), pool, cfg.Database.Schema, cfg.Embedding.Dimension); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema %q is ready\n", cfg.Database.Schema)
			return nil
		},
	}
}
