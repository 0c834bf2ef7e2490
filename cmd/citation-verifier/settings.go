package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/itisaevalex/citation-verifier-sub001/pkg/types"
)

// Setting precedence: an explicitly set flag wins, then the viper config
// file or environment, then the flag default.

func stringSetting(cmd *cobra.Command, name, key string) string {
	f := cmd.Flags().Lookup(name)
	if f == nil {
		return viper.GetString(key)
	}
	if f.Changed || !viper.IsSet(key) {
		return f.Value.String()
	}
	return viper.GetString(key)
}

func durationSetting(cmd *cobra.Command, name, key string) time.Duration {
	f := cmd.Flags().Lookup(name)
	if f == nil {
		return viper.GetDuration(key)
	}
	if f.Changed || !viper.IsSet(key) {
		d, err := time.ParseDuration(f.Value.String())
		if err != nil {
			return 0
		}
		return d
	}
	return viper.GetDuration(key)
}

// loadConfig materializes the full configuration for one invocation from
// the command's flags and the viper state. Flags a command does not define
// fall back to viper alone; component defaults apply in the constructors.
func loadConfig(cmd *cobra.Command) types.Config {
	timeout := durationSetting(cmd, "timeout", "http.timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}
	httpCfg := types.HTTPConfig{Timeout: timeout, UserAgent: defaultUserAgent}

	return types.Config{
		Extraction: types.ExtractionServiceConfig{
			HTTPConfig: httpCfg,
			BaseURL:    stringSetting(cmd, "grobid-url", "extraction.base_url"),
		},
		Oracle: types.OracleConfig{
			HTTPConfig:        httpCfg,
			Model:             stringSetting(cmd, "model", "oracle.model"),
			BaseURL:           viper.GetString("oracle.base_url"),
			MaxRetries:        viper.GetInt("oracle.max_retries"),
			RequestsPerMinute: viper.GetInt("oracle.requests_per_minute"),
		},
		Store: types.StoreConfig{
			DataDir: stringSetting(cmd, "data-dir", "store.data_dir"),
		},
		Verifier: types.VerifierConfig{
			ReportsDir:      stringSetting(cmd, "reports-dir", "verifier.reports_dir"),
			Retention:       viper.GetDuration("verifier.retention"),
			MaxExcerptBytes: viper.GetInt("verifier.max_excerpt_bytes"),
		},
	}
}
