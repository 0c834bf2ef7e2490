// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/itisaevalex/citation-verifier-sub001/internal/citation"
	"github.com/itisaevalex/citation-verifier-sub001/internal/grobid"
	"github.com/itisaevalex/citation-verifier-sub001/internal/metadata"
	"github.com/itisaevalex/citation-verifier-sub001/internal/oracle"
	"github.com/itisaevalex/citation-verifier-sub001/pkg/types"
)

// Pipeline steps surfaced on progress events: 1 extraction, 2 verification.
const (
	stepExtracting = 1
	stepVerifying  = 2
	totalSteps     = 2
)

// run drives one session from created to a terminal status. Every state
// transition and oracle sub-step emits exactly one progress event.
func (m *Manager) run(ctx context.Context, s *session, req types.UploadRequest) {
	usages, excerpt, err := m.extract(ctx, s, req)
	if err != nil {
		m.finish(s, types.SessionError, err.Error())
		return
	}

	if !req.Verify {
		m.finish(s, types.SessionCompleted, "")
		return
	}

	s.mu.Lock()
	s.state.Status = types.SessionVerifying
	s.mu.Unlock()
	s.emit(types.ProgressEvent{
		Status:      types.SessionVerifying,
		CurrentStep: stepVerifying,
		TotalSteps:  totalSteps,
	})

	for i, usage := range usages {
		if ctx.Err() != nil {
			m.finish(s, types.SessionError, "session cancelled")
			return
		}
		m.verifyReference(ctx, s, i, usage, excerpt)
	}

	if ctx.Err() != nil {
		m.finish(s, types.SessionError, "session cancelled")
		return
	}
	m.finish(s, types.SessionCompleted, "")
}

// extract runs the extraction step: fulltext extraction (unless markup was
// supplied), metadata and reference extraction, citation linking, and
// storage. On success the session holds a pending entry per cited
// reference; on failure the session has no processed references at all.
func (m *Manager) extract(ctx context.Context, s *session, req types.UploadRequest) ([]types.ReferenceUsage, string, error) {
	s.mu.Lock()
	s.state.Status = types.SessionExtracting
	s.mu.Unlock()
	s.emit(types.ProgressEvent{
		Status:      types.SessionExtracting,
		CurrentStep: stepExtracting,
		TotalSteps:  totalSteps,
	})

	tei := req.TEI
	if len(tei) == 0 {
		var err error
		tei, err = m.extractor.ProcessFulltext(ctx, req.PDFPath)
		if err != nil {
			return nil, "", fmt.Errorf("extraction service: %w", err)
		}
	}

	doc, err := grobid.ParseTEI(tei)
	if err != nil {
		return nil, "", fmt.Errorf("parsing structured markup: %w", err)
	}

	meta := metadata.Extract(doc)
	refs := doc.References()
	contexts := citation.NewLinker(refs).Link(doc.Blocks())
	usages := citation.GroupByReference(refs, contexts)

	if m.store != nil {
		rec := types.DocumentRecord{
			Title:     meta.Title,
			Authors:   meta.Authors,
			Content:   meta.FullText,
			SourcePDF: req.PDFPath,
			DOI:       meta.DOI,
			Year:      meta.Year,
			Journal:   meta.Journal,
		}
		saved, err := m.store.Save(rec)
		if err != nil {
			return nil, "", fmt.Errorf("storing document: %w", err)
		}
		s.mu.Lock()
		s.state.DocumentID = saved.ID
		s.mu.Unlock()
	}

	pending := make([]types.ProcessedReference, len(usages))
	for i, u := range usages {
		pending[i] = types.ProcessedReference{
			ReferenceID: u.Reference.ID,
			Title:       u.Reference.Title,
			Status:      types.ReferencePending,
		}
	}

	s.mu.Lock()
	s.state.TotalReferences = len(usages)
	s.state.ProcessedReferences = pending
	s.mu.Unlock()

	return usages, capExcerpt(meta.FullText, m.cfg.MaxExcerptBytes), nil
}

// verifyReference runs one oracle call, emitting the submitted,
// awaiting-result, and scored sub-step events. Oracle failures mark the
// reference as errored and never abort the session.
func (m *Manager) verifyReference(ctx context.Context, s *session, i int, usage types.ReferenceUsage, excerpt string) {
	refID := usage.Reference.ID

	s.mu.Lock()
	s.state.CurrentIndex = i + 1
	s.state.ProcessedReferences[i].Status = types.ReferenceVerifying
	s.mu.Unlock()

	s.emit(types.ProgressEvent{
		Status:              types.SessionVerifying,
		CurrentReference:    refID,
		GeminiStatus:        types.OracleSubmitted,
		CurrentStep:         stepVerifying,
		StepProgress:        i,
		TotalSteps:          totalSteps,
		GeminiStatusMessage: fmt.Sprintf("submitted %s for verification", refID),
	})
	s.emit(types.ProgressEvent{
		Status:              types.SessionVerifying,
		CurrentReference:    refID,
		GeminiStatus:        types.OracleAwaiting,
		CurrentStep:         stepVerifying,
		StepProgress:        i,
		TotalSteps:          totalSteps,
		GeminiStatusMessage: fmt.Sprintf("awaiting verdict for %s", refID),
	})

	result, err := m.oracle.Verify(ctx, oracle.VerificationRequest{
		Excerpt:   excerpt,
		Reference: usage.Reference,
		Contexts:  usage.UsageContexts,
	})

	var scored types.ProgressEvent
	s.mu.Lock()
	switch {
	case err == nil:
		r := result
		s.state.ProcessedReferences[i].Status = types.ReferenceVerified
		s.state.ProcessedReferences[i].Result = &r
		scored = types.ProgressEvent{
			GeminiResult:        &r,
			GeminiStatusMessage: fmt.Sprintf("scored %s", refID),
		}
	default:
		s.state.ProcessedReferences[i].Status = types.ReferenceError
		s.state.ProcessedReferences[i].Error = err.Error()
		var malformed *oracle.MalformedReplyError
		if errors.As(err, &malformed) {
			s.state.ProcessedReferences[i].RawReply = malformed.RawReply
		}
		scored = types.ProgressEvent{
			GeminiStatusMessage: fmt.Sprintf("verification of %s failed: %v", refID, err),
		}
		slog.Warn("reference verification failed", "reference", refID, "error", err)
	}
	s.mu.Unlock()

	scored.Status = types.SessionVerifying
	scored.CurrentReference = refID
	scored.GeminiStatus = types.OracleScored
	scored.CurrentStep = stepVerifying
	scored.StepProgress = i + 1
	scored.TotalSteps = totalSteps
	s.emit(scored)
}

// finish moves the session to a terminal status, writes the report and
// audit row, and emits the terminal event (closing subscriber channels).
func (m *Manager) finish(s *session, status types.SessionStatus, errMsg string) {
	s.mu.Lock()
	s.state.Status = status
	s.state.Error = errMsg
	s.state.FinishedAt = nowFunc()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if m.cfg.ReportsDir != "" && status == types.SessionCompleted {
		if err := writeReport(m.cfg.ReportsDir, snapshot); err != nil {
			slog.Warn("writing session report failed", "session", snapshot.SessionID, "error", err)
		}
	}
	if m.audit != nil {
		if err := m.audit.Record(snapshot); err != nil {
			slog.Warn("recording session audit failed", "session", snapshot.SessionID, "error", err)
		}
	}

	s.emit(types.ProgressEvent{Status: status, Error: errMsg})
}

// capExcerpt truncates body text to the configured byte budget on a rune
// boundary.
func capExcerpt(text string, maxBytes int) string {
	if len(text) <= maxBytes {
		return text
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
