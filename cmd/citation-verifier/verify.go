package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/itisaevalex/citation-verifier-sub001/internal/docstore"
	"github.com/itisaevalex/citation-verifier-sub001/internal/grobid"
	"github.com/itisaevalex/citation-verifier-sub001/internal/oracle"
	"github.com/itisaevalex/citation-verifier-sub001/internal/verifier"
	"github.com/itisaevalex/citation-verifier-sub001/pkg/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "citation-verifier/0.1"
	defaultGrobidURL = "http://localhost:8070"
	defaultModel     = "gemini-2.0-flash"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <paper.pdf|paper.tei.xml>",
	Short: "Extract, link, and verify the citations of one paper",
	Long: `Verify runs the full pipeline on one paper: fulltext extraction (skipped
when the input is already TEI markup), citation linking, document storage,
and oracle verification of every cited reference. Progress is streamed to
stdout as it happens.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")
	verifyCmd.Flags().String("grobid-url", defaultGrobidURL, "fulltext-extraction service URL")
	verifyCmd.Flags().String("model", defaultModel, "oracle model identifier")
	verifyCmd.Flags().String("api-key", "", "oracle API key (default: gemini-api-key secret)")
	verifyCmd.Flags().String("data-dir", "data", "document store directory")
	verifyCmd.Flags().String("reports-dir", "reports", "session report output directory")
	verifyCmd.Flags().Bool("skip-verification", false, "extract and link citations without calling the oracle")
	verifyCmd.Flags().Bool("json", false, "emit progress events as JSON lines")

	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	input := args[0]

	cfg := loadConfig(cmd)
	apiKey, _ := cmd.Flags().GetString("api-key")
	skipVerification, _ := cmd.Flags().GetBool("skip-verification")
	asJSON, _ := cmd.Flags().GetBool("json")

	store, err := docstore.New(cfg.Store.DataDir)
	if err != nil {
		return err
	}
	audit, err := verifier.NewAuditStore(cfg.Store.DataDir)
	if err != nil {
		return err
	}
	defer audit.Close()

	extractor := grobid.NewClient(cfg.Extraction)

	var orc oracle.Oracle
	if !skipVerification {
		cfg.Oracle.APIKey = secretDefault("gemini-api-key", apiKey)
		if cfg.Oracle.APIKey == "" {
			return fmt.Errorf("no oracle API key: pass --api-key or add gemini-api-key to .secrets/")
		}
		orc = oracle.NewGeminiOracle(cfg.Oracle)
	}

	m := verifier.NewManager(extractor, store, orc, audit, cfg.Verifier)

	if prev, err := store.FindBySource(input); err == nil {
		fmt.Fprintf(os.Stderr, "re-extracting %s (previously stored as %s)\n", input, prev.ID)
	}

	req := types.UploadRequest{Verify: !skipVerification}
	if isMarkup(input) {
		tei, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("reading markup %s: %w", input, err)
		}
		req.TEI = tei
		req.PDFPath = input
	} else {
		req.PDFPath = input
	}

	resp, err := m.StartSession(context.Background(), req)
	if err != nil {
		return err
	}

	events, err := m.Subscribe(resp.SessionID)
	if err != nil {
		return err
	}

	final, err := streamProgress(os.Stdout, events, asJSON)
	if err != nil {
		return err
	}
	if final.Status == types.SessionError {
		return fmt.Errorf("session failed: %s", final.Error)
	}
	return nil
}

// isMarkup reports whether the input is pre-extracted TEI rather than a PDF.
func isMarkup(path string) bool {
	return strings.HasSuffix(path, ".xml") || strings.HasSuffix(path, ".tei")
}

// streamProgress writes progress events to w until the session ends and
// returns the terminal event.
func streamProgress(w io.Writer, events <-chan types.ProgressEvent, asJSON bool) (types.ProgressEvent, error) {
	var last types.ProgressEvent
	enc := json.NewEncoder(w)

	for ev := range events {
		last = ev
		if asJSON {
			if err := enc.Encode(ev); err != nil {
				return last, err
			}
			continue
		}

		switch {
		case ev.GeminiStatus != "":
			fmt.Fprintf(w, "%-10s [%d/%d] %s: %s\n", ev.Status, ev.CurrentIndex, ev.TotalReferences, ev.GeminiStatus, ev.GeminiStatusMessage)
		case ev.Status == types.SessionError:
			fmt.Fprintf(w, "failed: %s\n", ev.Error)
		case ev.Status == types.SessionCompleted:
			var verified, failed int
			for _, ref := range ev.ProcessedReferences {
				switch ref.Status {
				case types.ReferenceVerified:
					verified++
				case types.ReferenceError:
					failed++
				}
			}
			fmt.Fprintf(w, "completed: %d reference(s), %d verified, %d failed\n", ev.TotalReferences, verified, failed)
		default:
			fmt.Fprintf(w, "%s\n", ev.Status)
		}
	}
	return last, nil
}
