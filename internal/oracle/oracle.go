// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package oracle abstracts the external verification model that judges
// whether citing text accurately represents a cited source.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/itisaevalex/citation-verifier-sub001/pkg/types"
)

// Oracle judges one reference usage at a time. Implementations make at
// most one upstream call per Verify; retries and pacing live inside.
type Oracle interface {
	Verify(ctx context.Context, req VerificationRequest) (types.VerificationResult, error)
}

// VerificationRequest is the material for one verdict: the cited work's
// metadata, every context citing it, and an excerpt of the citing
// document's body text.
type VerificationRequest struct {
	// Excerpt is the citing document's body text, already capped by the
	// caller.
	Excerpt string

	// Reference is the bibliography entry under test.
	Reference types.Reference

	// Contexts lists every place the reference is cited, in document order.
	Contexts []types.CitationContext
}

// ErrMalformedReply marks a reply the oracle produced but that could not
// be parsed into a verdict. Callers record the raw reply and continue.
var ErrMalformedReply = errors.New("malformed oracle reply")

// MalformedReplyError wraps ErrMalformedReply with the unparsable reply
// text preserved for diagnostics.
type MalformedReplyError struct {
	RawReply string
	Cause    error
}

func (e *MalformedReplyError) Error() string {
	return fmt.Sprintf("malformed oracle reply: %v", e.Cause)
}

func (e *MalformedReplyError) Unwrap() error { return ErrMalformedReply }
