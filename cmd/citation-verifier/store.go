package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/itisaevalex/citation-verifier-sub001/internal/docstore"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Query and maintain the document store",
	Long: `Store inspects the JSON document store: list stored documents, fetch one
by id, DOI, or title words, and rebuild the lookup index from the document
units on disk.`,
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored document ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		for _, id := range store.List() {
			fmt.Println(id)
		}
		return nil
	},
}

var storeGetCmd = &cobra.Command{
	Use:   "get <id|doi|title words>",
	Short: "Fetch one stored document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		rec, err := store.Get(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

var storeRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the lookup index from document units on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		summary, err := store.RebuildIndex()
		if err != nil {
			return err
		}
		fmt.Printf("indexed %d document(s), skipped %d\n", summary.Indexed, summary.Skipped)
		if summary.HasFailures() {
			return fmt.Errorf("%d document unit(s) could not be indexed", summary.Skipped)
		}
		return nil
	},
}

func openStore(cmd *cobra.Command) (*docstore.Store, error) {
	cfg := loadConfig(cmd)
	return docstore.New(cfg.Store.DataDir)
}

func init() {
	storeCmd.PersistentFlags().String("data-dir", "data", "document store directory")

	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storeGetCmd)
	storeCmd.AddCommand(storeRebuildCmd)
	rootCmd.AddCommand(storeCmd)
}
