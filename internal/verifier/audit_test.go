// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itisaevalex/citation-verifier-sub001/pkg/types"
)

func terminalSession(id string, finished time.Time) types.VerificationSession {
	return types.VerificationSession{
		SessionID:       id,
		DocumentID:      "deep_learning_for_nlp",
		Status:          types.SessionCompleted,
		TotalReferences: 2,
		ProcessedReferences: []types.ProcessedReference{
			{ReferenceID: "b0", Status: types.ReferenceVerified},
			{ReferenceID: "b1", Status: types.ReferenceError, Error: "malformed oracle reply"},
		},
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
	}
}

func TestAuditRecordAndCount(t *testing.T) {
	audit, err := NewAuditStore(t.TempDir())
	require.NoError(t, err)
	defer audit.Close()

	require.NoError(t, audit.Record(terminalSession("s1", time.Now())))
	require.NoError(t, audit.Record(terminalSession("s2", time.Now())))
	// Re-recording replaces, not duplicates.
	require.NoError(t, audit.Record(terminalSession("s1", time.Now())))

	n, err := audit.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAuditPurgeExpired(t *testing.T) {
	audit, err := NewAuditStore(t.TempDir())
	require.NoError(t, err)
	defer audit.Close()

	require.NoError(t, audit.Record(terminalSession("old", time.Now().Add(-48*time.Hour))))
	require.NoError(t, audit.Record(terminalSession("fresh", time.Now())))

	purged, err := audit.PurgeExpired(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	n, err := audit.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBuildReportCounts(t *testing.T) {
	r := BuildReport(terminalSession("s1", time.Now()))
	assert.Equal(t, "s1", r.SessionID)
	assert.Equal(t, 2, r.TotalReferences)
	assert.Equal(t, 1, r.Verified)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 0, r.Unchecked)
}
