// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itisaevalex/citation-verifier-sub001/internal/docstore"
	"github.com/itisaevalex/citation-verifier-sub001/internal/oracle"
	"github.com/itisaevalex/citation-verifier-sub001/pkg/types"
)

// sampleTEI is a minimal structured document: one titled paper citing two
// bibliography entries from its body text.
const sampleTEI = `<?xml version="1.0" encoding="UTF-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
  <teiHeader>
    <fileDesc>
      <titleStmt>
        <title level="a" type="main">Deep Learning for NLP</title>
      </titleStmt>
      <publicationStmt>
        <date type="published" when="2021-06-15">June 2021</date>
      </publicationStmt>
      <sourceDesc>
        <biblStruct>
          <analytic>
            <title level="a" type="main">Deep Learning for NLP</title>
            <author><persName><forename type="first">John</forename><surname>Smith</surname></persName></author>
            <idno type="DOI">10.1234/dl-nlp.2021</idno>
          </analytic>
        </biblStruct>
      </sourceDesc>
    </fileDesc>
  </teiHeader>
  <text>
    <body>
      <div>
        <head>Introduction</head>
        <p>Attention architectures <ref type="bibr" target="#b0">[1]</ref> changed the field.</p>
        <p>Later work on language models <ref type="bibr" target="#b1">[2]</ref> scaled this further.</p>
      </div>
    </body>
    <back>
      <div type="references">
        <listBibl>
          <biblStruct xml:id="b0">
            <analytic>
              <title level="a" type="main">Attention Is All You Need</title>
              <author><persName><forename type="first">Ashish</forename><surname>Vaswani</surname></persName></author>
            </analytic>
            <monogr>
              <title level="m">NIPS</title>
              <imprint><date type="published" when="2017"/></imprint>
            </monogr>
          </biblStruct>
          <biblStruct xml:id="b1">
            <analytic>
              <title level="a" type="main">Language Models are Few-Shot Learners</title>
              <author><persName><forename type="first">Tom</forename><surname>Brown</surname></persName></author>
            </analytic>
            <monogr>
              <title level="m">NeurIPS</title>
              <imprint><date type="published" when="2020"/></imprint>
            </monogr>
          </biblStruct>
        </listBibl>
      </div>
    </back>
  </text>
</TEI>`

// mockOracle returns canned verdicts, optionally blocking until the
// context is cancelled.
type mockOracle struct {
	mu     sync.Mutex
	calls  []string
	verify func(req oracle.VerificationRequest) (types.VerificationResult, error)
	block  bool
}

func (m *mockOracle) Verify(ctx context.Context, req oracle.VerificationRequest) (types.VerificationResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req.Reference.ID)
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return types.VerificationResult{}, ctx.Err()
	}
	if m.verify != nil {
		return m.verify(req)
	}
	return types.VerificationResult{IsVerified: true, ConfidenceScore: 0.9}, nil
}

func (m *mockOracle) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func testManager(t *testing.T, orc oracle.Oracle) *Manager {
	t.Helper()
	store, err := docstore.New(t.TempDir())
	require.NoError(t, err)
	return NewManager(nil, store, orc, nil, types.VerifierConfig{
		ReportsDir: t.TempDir(),
	})
}

// collect drains a progress channel until it closes.
func collect(t *testing.T, ch <-chan types.ProgressEvent) []types.ProgressEvent {
	t.Helper()
	var events []types.ProgressEvent
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("progress channel never closed")
		}
	}
}

func statuses(events []types.ProgressEvent) []types.SessionStatus {
	out := make([]types.SessionStatus, len(events))
	for i, ev := range events {
		out[i] = ev.Status
	}
	return out
}

func TestSessionCompletesWithoutVerification(t *testing.T) {
	m := testManager(t, &mockOracle{})

	resp, err := m.StartSession(context.Background(), types.UploadRequest{
		PDFPath: "paper.pdf",
		TEI:     []byte(sampleTEI),
		Verify:  false,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.SessionID)
	assert.Contains(t, resp.Progress, resp.SessionID)

	ch, err := m.Subscribe(resp.SessionID)
	require.NoError(t, err)
	events := collect(t, ch)

	assert.Equal(t, []types.SessionStatus{
		types.SessionCreated,
		types.SessionExtracting,
		types.SessionCompleted,
	}, statuses(events))

	final, err := m.Session(resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, types.SessionCompleted, final.Status)
	assert.Equal(t, "deep_learning_for_nlp", final.DocumentID)
	assert.Equal(t, 2, final.TotalReferences)
	for _, ref := range final.ProcessedReferences {
		assert.Equal(t, types.ReferencePending, ref.Status)
	}
}

func TestSessionVerifiesEachReference(t *testing.T) {
	orc := &mockOracle{}
	m := testManager(t, orc)

	resp, err := m.StartSession(context.Background(), types.UploadRequest{
		PDFPath: "paper.pdf",
		TEI:     []byte(sampleTEI),
		Verify:  true,
	})
	require.NoError(t, err)

	ch, err := m.Subscribe(resp.SessionID)
	require.NoError(t, err)
	events := collect(t, ch)

	assert.Equal(t, 2, orc.callCount())

	// Each reference contributes submitted, awaiting-result, and scored.
	var steps []types.OracleStep
	lastIndex := 0
	for _, ev := range events {
		if ev.GeminiStatus != "" {
			steps = append(steps, ev.GeminiStatus)
		}
		assert.GreaterOrEqual(t, ev.CurrentIndex, lastIndex, "currentIndex regressed")
		lastIndex = ev.CurrentIndex
	}
	assert.Equal(t, []types.OracleStep{
		types.OracleSubmitted, types.OracleAwaiting, types.OracleScored,
		types.OracleSubmitted, types.OracleAwaiting, types.OracleScored,
	}, steps)

	final := events[len(events)-1]
	assert.Equal(t, types.SessionCompleted, final.Status)
	require.Len(t, final.ProcessedReferences, 2)
	for _, ref := range final.ProcessedReferences {
		assert.Equal(t, types.ReferenceVerified, ref.Status)
		require.NotNil(t, ref.Result)
		assert.True(t, ref.Result.IsVerified)
	}
}

func TestMalformedReplyFailsReferenceNotSession(t *testing.T) {
	orc := &mockOracle{
		verify: func(req oracle.VerificationRequest) (types.VerificationResult, error) {
			if req.Reference.ID == "b0" {
				return types.VerificationResult{}, &oracle.MalformedReplyError{
					RawReply: "I cannot verify this citation.",
					Cause:    assert.AnError,
				}
			}
			return types.VerificationResult{IsVerified: true, ConfidenceScore: 0.8}, nil
		},
	}
	m := testManager(t, orc)

	resp, err := m.StartSession(context.Background(), types.UploadRequest{
		PDFPath: "paper.pdf",
		TEI:     []byte(sampleTEI),
		Verify:  true,
	})
	require.NoError(t, err)

	ch, err := m.Subscribe(resp.SessionID)
	require.NoError(t, err)
	events := collect(t, ch)

	final := events[len(events)-1]
	assert.Equal(t, types.SessionCompleted, final.Status, "per-reference failures never abort the session")
	require.Len(t, final.ProcessedReferences, 2)

	assert.Equal(t, types.ReferenceError, final.ProcessedReferences[0].Status)
	assert.Equal(t, "I cannot verify this citation.", final.ProcessedReferences[0].RawReply)
	assert.Equal(t, types.ReferenceVerified, final.ProcessedReferences[1].Status)
}

func TestExtractionFailureErrorsSession(t *testing.T) {
	m := testManager(t, &mockOracle{})

	resp, err := m.StartSession(context.Background(), types.UploadRequest{
		PDFPath: "paper.pdf",
		TEI:     []byte("<TEI><unclosed"),
		Verify:  true,
	})
	require.NoError(t, err)

	ch, err := m.Subscribe(resp.SessionID)
	require.NoError(t, err)
	events := collect(t, ch)

	final := events[len(events)-1]
	assert.Equal(t, types.SessionError, final.Status)
	assert.NotEmpty(t, final.Error)
	assert.Empty(t, final.ProcessedReferences)
}

func TestStartSessionRejectsEmptyUpload(t *testing.T) {
	m := testManager(t, &mockOracle{})
	_, err := m.StartSession(context.Background(), types.UploadRequest{})
	assert.Error(t, err)
}

func TestSubscribeUnknownSession(t *testing.T) {
	m := testManager(t, &mockOracle{})
	_, err := m.Subscribe("no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSubscribeAfterCompletionReplaysHistory(t *testing.T) {
	m := testManager(t, &mockOracle{})

	resp, err := m.StartSession(context.Background(), types.UploadRequest{
		PDFPath: "paper.pdf",
		TEI:     []byte(sampleTEI),
		Verify:  true,
	})
	require.NoError(t, err)

	first, err := m.Subscribe(resp.SessionID)
	require.NoError(t, err)
	live := collect(t, first)

	second, err := m.Subscribe(resp.SessionID)
	require.NoError(t, err)
	replayed := collect(t, second)

	assert.Equal(t, statuses(live), statuses(replayed))
	assert.Equal(t, types.SessionCompleted, replayed[len(replayed)-1].Status)
}

func TestCancelErrorsSession(t *testing.T) {
	orc := &mockOracle{block: true}
	m := testManager(t, orc)

	resp, err := m.StartSession(context.Background(), types.UploadRequest{
		PDFPath: "paper.pdf",
		TEI:     []byte(sampleTEI),
		Verify:  true,
	})
	require.NoError(t, err)

	ch, err := m.Subscribe(resp.SessionID)
	require.NoError(t, err)

	// Wait for the first oracle call, then cancel mid-verification.
	deadline := time.Now().Add(10 * time.Second)
	for orc.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("oracle never called")
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, m.Cancel(resp.SessionID))

	events := collect(t, ch)
	final := events[len(events)-1]
	assert.Equal(t, types.SessionError, final.Status)
	assert.Contains(t, final.Error, "cancelled")
}

func TestEmitTerminalToFullSubscriber(t *testing.T) {
	s := &session{
		state: types.VerificationSession{SessionID: "s1", Status: types.SessionVerifying},
		subs:  make(map[int]chan types.ProgressEvent),
	}
	ch := make(chan types.ProgressEvent, 1)
	s.subs[0] = ch
	ch <- types.ProgressEvent{Status: types.SessionVerifying}

	done := make(chan struct{})
	go func() {
		s.emit(types.ProgressEvent{Status: types.SessionCompleted})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("emit blocked on a full subscriber channel")
	}

	var last types.ProgressEvent
	for ev := range ch {
		last = ev
	}
	assert.Equal(t, types.SessionCompleted, last.Status, "terminal event must land despite the full buffer")
}

func TestEmitTerminalWhileSubscriberDrains(t *testing.T) {
	s := &session{
		state: types.VerificationSession{SessionID: "s1", Status: types.SessionVerifying},
		subs:  make(map[int]chan types.ProgressEvent),
	}
	ch := make(chan types.ProgressEvent, 4)
	s.subs[0] = ch
	for i := 0; i < 4; i++ {
		ch <- types.ProgressEvent{Status: types.SessionVerifying}
	}

	// Drain concurrently so the channel can empty out between the failed
	// send and the eviction.
	received := make(chan types.ProgressEvent, 8)
	go func() {
		for ev := range ch {
			received <- ev
		}
		close(received)
	}()

	done := make(chan struct{})
	go func() {
		s.emit(types.ProgressEvent{Status: types.SessionCompleted})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("emit blocked while the subscriber was draining")
	}

	var last types.ProgressEvent
	for ev := range received {
		last = ev
	}
	assert.Equal(t, types.SessionCompleted, last.Status)
}

func TestSweepRemovesExpiredSessions(t *testing.T) {
	m := testManager(t, &mockOracle{})

	resp, err := m.StartSession(context.Background(), types.UploadRequest{
		PDFPath: "paper.pdf",
		TEI:     []byte(sampleTEI),
	})
	require.NoError(t, err)

	ch, err := m.Subscribe(resp.SessionID)
	require.NoError(t, err)
	collect(t, ch)

	// Too young to sweep.
	assert.Equal(t, 0, m.Sweep())

	old := nowFunc
	nowFunc = func() time.Time { return old().Add(25 * time.Hour) }
	defer func() { nowFunc = old }()

	assert.Equal(t, 1, m.Sweep())
	_, err = m.Session(resp.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
