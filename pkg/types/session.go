// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SessionStatus is the lifecycle state of a verification session.
type SessionStatus string

const (
	SessionCreated    SessionStatus = "created"
	SessionExtracting SessionStatus = "extracting"
	SessionVerifying  SessionStatus = "verifying"
	SessionCompleted  SessionStatus = "completed"
	SessionError      SessionStatus = "error"
)

// Terminal reports whether no further transitions can occur.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionError
}

// ReferenceStatus is the per-reference sub-status within a session.
type ReferenceStatus string

const (
	ReferencePending   ReferenceStatus = "pending"
	ReferenceVerifying ReferenceStatus = "verifying"
	ReferenceVerified  ReferenceStatus = "verified"
	ReferenceError     ReferenceStatus = "error"
)

// OracleStep is the sub-state of a single oracle call, surfaced to the
// progress channel while one reference is being verified.
type OracleStep string

const (
	OracleSubmitted OracleStep = "submitted"
	OracleAwaiting  OracleStep = "awaiting-result"
	OracleScored    OracleStep = "scored"
)

// VerificationResult is the oracle's verdict for one reference usage.
type VerificationResult struct {
	// IsVerified reports whether the citing text accurately represents
	// the cited source.
	IsVerified bool `json:"isVerified" yaml:"is_verified"`

	// ConfidenceScore is the oracle's confidence in [0,1].
	ConfidenceScore float64 `json:"confidenceScore" yaml:"confidence_score"`

	// MatchLocation describes where in the source the support was found.
	MatchLocation string `json:"matchLocation,omitempty" yaml:"match_location,omitempty"`

	// Explanation is the oracle's reasoning.
	Explanation string `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// ProcessedReference is one reference's outcome within a session. Every
// reference appears exactly once, whether it verified cleanly or failed.
type ProcessedReference struct {
	// ReferenceID is the bibliography id.
	ReferenceID string `json:"referenceId" yaml:"reference_id"`

	// Title is the cited work's title, carried for display.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Status is pending, verifying, verified, or error.
	Status ReferenceStatus `json:"status" yaml:"status"`

	// Result is the oracle verdict when Status is verified.
	Result *VerificationResult `json:"result,omitempty" yaml:"result,omitempty"`

	// Error describes a per-reference failure. Such failures never abort
	// the session.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// RawReply preserves an unparsable oracle reply for diagnostics.
	RawReply string `json:"rawReply,omitempty" yaml:"raw_reply,omitempty"`
}

// VerificationSession is the client-visible state of one upload.
type VerificationSession struct {
	SessionID           string               `json:"sessionId" yaml:"session_id"`
	DocumentID          string               `json:"documentId,omitempty" yaml:"document_id,omitempty"`
	Status              SessionStatus        `json:"status" yaml:"status"`
	ProcessedReferences []ProcessedReference `json:"processedReferences" yaml:"processed_references"`
	CurrentIndex        int                  `json:"currentIndex" yaml:"current_index"`
	TotalReferences     int                  `json:"totalReferences" yaml:"total_references"`
	StartedAt           time.Time            `json:"startedAt" yaml:"started_at"`
	FinishedAt          time.Time            `json:"finishedAt,omitempty" yaml:"finished_at,omitempty"`
	Error               string               `json:"error,omitempty" yaml:"error,omitempty"`
}

// ProgressEvent is one update pushed to a session's progress channel. One
// event is emitted per state transition and per oracle sub-step; terminal
// statuses are completed and error.
type ProgressEvent struct {
	Status              SessionStatus        `json:"status"`
	CurrentReference    string               `json:"currentReference,omitempty"`
	CurrentIndex        int                  `json:"currentIndex"`
	TotalReferences     int                  `json:"totalReferences"`
	GeminiStatus        OracleStep           `json:"geminiStatus,omitempty"`
	CurrentStep         int                  `json:"currentStep,omitempty"`
	StepProgress        int                  `json:"stepProgress,omitempty"`
	TotalSteps          int                  `json:"totalSteps,omitempty"`
	GeminiStatusMessage string               `json:"geminiStatusMessage,omitempty"`
	GeminiResult        *VerificationResult  `json:"geminiResult,omitempty"`
	ProcessedReferences []ProcessedReference `json:"processedReferences"`
	Error               string               `json:"error,omitempty"`
}

// UploadRequest is a document payload plus the flag selecting whether
// oracle-based verification runs.
type UploadRequest struct {
	// PDFPath is the input PDF, sent to the extraction service.
	PDFPath string `json:"pdfPath,omitempty"`

	// TEI is pre-extracted structured markup. When set the extraction
	// service is not called.
	TEI []byte `json:"-"`

	// Verify selects whether the oracle runs. When false the session
	// completes after extraction and aggregation.
	Verify bool `json:"verify"`
}

// UploadResponse acknowledges a started session.
type UploadResponse struct {
	SessionID string `json:"sessionId"`

	// Progress is the channel-subscribe path for this session.
	Progress string `json:"progress"`
}
