package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itisaevalex/citation-verifier-sub001/internal/grobid"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the fulltext-extraction service is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		client := grobid.NewClient(cfg.Extraction)
		if err := client.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("extraction service not reachable: %w", err)
		}
		fmt.Printf("extraction service at %s is alive\n", cfg.Extraction.BaseURL)
		return nil
	},
}

func init() {
	pingCmd.Flags().String("grobid-url", defaultGrobidURL, "fulltext-extraction service URL")
	pingCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")

	rootCmd.AddCommand(pingCmd)
}
