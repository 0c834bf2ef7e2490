package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("grobid-url", defaultGrobidURL, "")
	cmd.Flags().String("model", defaultModel, "")
	cmd.Flags().String("data-dir", "data", "")
	cmd.Flags().String("reports-dir", "reports", "")
	cmd.Flags().Duration("timeout", 0, "")
	return cmd
}

func TestLoadConfigFlagDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cfg := loadConfig(settingsCmd())
	if cfg.Extraction.BaseURL != defaultGrobidURL {
		t.Errorf("BaseURL = %q, want flag default %q", cfg.Extraction.BaseURL, defaultGrobidURL)
	}
	if cfg.Oracle.Model != defaultModel {
		t.Errorf("Model = %q, want flag default %q", cfg.Oracle.Model, defaultModel)
	}
	if cfg.Store.DataDir != "data" {
		t.Errorf("DataDir = %q, want %q", cfg.Store.DataDir, "data")
	}
	if cfg.Extraction.Timeout != defaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Extraction.Timeout, defaultTimeout)
	}
}

func TestLoadConfigViperOverridesFlagDefault(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("extraction.base_url", "http://grobid.internal:8070")
	viper.Set("oracle.requests_per_minute", 12)
	viper.Set("verifier.retention", "48h")

	cfg := loadConfig(settingsCmd())
	if cfg.Extraction.BaseURL != "http://grobid.internal:8070" {
		t.Errorf("BaseURL = %q, want viper value", cfg.Extraction.BaseURL)
	}
	if cfg.Oracle.RequestsPerMinute != 12 {
		t.Errorf("RequestsPerMinute = %d, want 12", cfg.Oracle.RequestsPerMinute)
	}
	if cfg.Verifier.Retention != 48*time.Hour {
		t.Errorf("Retention = %v, want 48h", cfg.Verifier.Retention)
	}
}

func TestLoadConfigExplicitFlagWinsOverViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("extraction.base_url", "http://grobid.internal:8070")
	viper.Set("http.timeout", "5s")

	cmd := settingsCmd()
	if err := cmd.Flags().Set("grobid-url", "http://localhost:9999"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("timeout", "90s"); err != nil {
		t.Fatal(err)
	}

	cfg := loadConfig(cmd)
	if cfg.Extraction.BaseURL != "http://localhost:9999" {
		t.Errorf("BaseURL = %q, want explicit flag value", cfg.Extraction.BaseURL)
	}
	if cfg.Extraction.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", cfg.Extraction.Timeout)
	}
}

func TestLoadConfigMissingFlagFallsBackToViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("store.data_dir", "/var/lib/citations")

	// A command without the data-dir flag, like ping.
	cmd := &cobra.Command{Use: "test"}
	cfg := loadConfig(cmd)
	if cfg.Store.DataDir != "/var/lib/citations" {
		t.Errorf("DataDir = %q, want viper value", cfg.Store.DataDir)
	}
}
