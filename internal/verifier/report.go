// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verifier

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"go.yaml.in/yaml/v3"

	"github.com/itisaevalex/citation-verifier-sub001/pkg/types"
)

// Report is the per-session verification report written to the reports
// directory when a session completes.
type Report struct {
	SessionID       string                     `yaml:"session_id"`
	DocumentID      string                     `yaml:"document_id,omitempty"`
	TotalReferences int                        `yaml:"total_references"`
	Verified        int                        `yaml:"verified"`
	Failed          int                        `yaml:"failed"`
	Unchecked       int                        `yaml:"unchecked"`
	References      []types.ProcessedReference `yaml:"references"`
}

// BuildReport summarizes one terminal session.
func BuildReport(s types.VerificationSession) Report {
	r := Report{
		SessionID:       s.SessionID,
		DocumentID:      s.DocumentID,
		TotalReferences: s.TotalReferences,
		References:      s.ProcessedReferences,
	}
	for _, ref := range s.ProcessedReferences {
		switch ref.Status {
		case types.ReferenceVerified:
			r.Verified++
		case types.ReferenceError:
			r.Failed++
		default:
			r.Unchecked++
		}
	}
	return r
}

// writeReport marshals the session report to dir/<session-id>.yaml.
func writeReport(dir string, s types.VerificationSession) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating reports directory: %w", err)
	}
	data, err := yaml.Marshal(BuildReport(s))
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	path := filepath.Join(dir, s.SessionID+".yaml")
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
