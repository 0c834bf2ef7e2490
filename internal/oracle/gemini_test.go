// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/itisaevalex/citation-verifier-sub001/pkg/types"
)

// geminiReply wraps text in the generateContent response envelope.
func geminiReply(text string) string {
	resp := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{map[string]any{"text": text}},
				},
			},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func testOracle(baseURL string) *GeminiOracle {
	return NewGeminiOracle(types.OracleConfig{
		Model:             "gemini-2.0-flash",
		APIKey:            "gk_test",
		BaseURL:           baseURL,
		RequestsPerMinute: 6000,
	})
}

func testRequest() VerificationRequest {
	return VerificationRequest{
		Excerpt:   "Recent advances in deep learning [1] have shown remarkable results.",
		Reference: types.Reference{ID: "b1", Title: "Deep Learning", Year: "2015"},
		Contexts: []types.CitationContext{
			{Text: "Recent advances in deep learning [1] have shown remarkable results.", ReferenceIDs: []string{"b1"}},
		},
	}
}

func TestVerifyParsesVerdict(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		io.WriteString(w, geminiReply(`{"isVerified": true, "confidenceScore": 0.92, "matchLocation": "paragraph 1", "explanation": "The claim is supported."}`))
	}))
	defer server.Close()

	result, err := testOracle(server.URL).Verify(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.IsVerified {
		t.Error("expected verified verdict")
	}
	if result.ConfidenceScore != 0.92 {
		t.Errorf("confidence = %v, want 0.92", result.ConfidenceScore)
	}
	if !strings.Contains(gotBody, "Deep Learning") {
		t.Error("prompt does not mention the reference title")
	}
	if !strings.Contains(gotBody, "Recent advances") {
		t.Error("prompt does not include the citing passage")
	}
}

func TestVerifyStripsCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, geminiReply("```json\n{\"isVerified\": false, \"confidenceScore\": 0.3}\n```"))
	}))
	defer server.Close()

	result, err := testOracle(server.URL).Verify(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.IsVerified {
		t.Error("expected unverified verdict")
	}
}

func TestVerifyMalformedReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, geminiReply("I cannot verify this citation, sorry."))
	}))
	defer server.Close()

	_, err := testOracle(server.URL).Verify(context.Background(), testRequest())
	if !errors.Is(err, ErrMalformedReply) {
		t.Fatalf("error = %v, want ErrMalformedReply", err)
	}
	var malformed *MalformedReplyError
	if !errors.As(err, &malformed) {
		t.Fatal("error does not carry the raw reply")
	}
	if !strings.Contains(malformed.RawReply, "cannot verify") {
		t.Errorf("raw reply not preserved: %q", malformed.RawReply)
	}
}

func TestVerifyClampsConfidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, geminiReply(`{"isVerified": true, "confidenceScore": 4.5}`))
	}))
	defer server.Close()

	result, err := testOracle(server.URL).Verify(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.ConfidenceScore != 1.0 {
		t.Errorf("confidence = %v, want clamped to 1.0", result.ConfidenceScore)
	}
}

func TestVerifyServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := testOracle(server.URL).Verify(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected error on 500 response")
	}
	if errors.Is(err, ErrMalformedReply) {
		t.Error("service error must not classify as malformed reply")
	}
}

func TestVerifyServiceDown(t *testing.T) {
	server := httptest.NewServer(nil)
	server.Close()

	_, err := testOracle(server.URL).Verify(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected error when the oracle is unreachable")
	}
}
