// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"

	"golang.org/x/time/rate"

	"github.com/itisaevalex/citation-verifier-sub001/internal/httputil"
	"github.com/itisaevalex/citation-verifier-sub001/pkg/types"
)

// verifyPromptTmpl is the prompt sent to the Gemini API for one reference.
// It instructs the model to return a strict JSON verdict.
var verifyPromptTmpl = template.Must(template.New("verify").Parse(`You are a citation verification system. You are given a cited reference, the places in a paper where it is cited, and an excerpt of the paper's body text. Judge whether the citing text accurately represents the cited work.

Cited reference:
- title: {{.Reference.Title}}
{{- if .Reference.Authors}}
- authors: {{range $i, $a := .Reference.Authors}}{{if $i}}, {{end}}{{$a.DisplayName}}{{end}}
{{- end}}
{{- if .Reference.Journal}}
- venue: {{.Reference.Journal}}
{{- end}}
{{- if .Reference.Year}}
- year: {{.Reference.Year}}
{{- end}}

Citing passages:
{{- range .Contexts}}
- "{{.Text}}"
{{- end}}

Paper excerpt:
{{.Excerpt}}

Respond with a single JSON object and no text outside it:
{"isVerified": true or false, "confidenceScore": a float between 0.0 and 1.0, "matchLocation": "where in the excerpt the claim is supported, or empty", "explanation": "one or two sentences of reasoning"}
`))

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

const (
	defaultMaxRetries        = 3
	defaultRequestsPerMinute = 30
)

// GeminiOracle verifies reference usages against the Gemini API. One
// limiter paces calls across every session sharing the oracle.
type GeminiOracle struct {
	cfg     types.OracleConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewGeminiOracle builds an oracle from config, applying defaults for
// retries and pacing.
func NewGeminiOracle(cfg types.OracleConfig) *GeminiOracle {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaultRequestsPerMinute
	}
	return &GeminiOracle{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1),
	}
}

// geminiRequest is the request body for the Gemini generateContent API.
type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

// geminiResponse is the response body from the Gemini generateContent API.
type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Verify renders the prompt, calls the Gemini API once (with retry on
// rate limiting), and parses the JSON verdict. An unparsable reply is
// returned as a MalformedReplyError carrying the raw text.
func (g *GeminiOracle) Verify(ctx context.Context, vreq VerificationRequest) (types.VerificationResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return types.VerificationResult{}, err
	}

	prompt, err := renderPrompt(vreq)
	if err != nil {
		return types.VerificationResult{}, fmt.Errorf("rendering prompt: %w", err)
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return types.VerificationResult{}, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.cfg.BaseURL, g.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return types.VerificationResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)
	if g.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", g.cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, g.client, req, g.cfg.MaxRetries)
	if err != nil {
		return types.VerificationResult{}, fmt.Errorf("calling Gemini API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.VerificationResult{}, fmt.Errorf("Gemini API returned %d: %s", resp.StatusCode, string(body))
	}

	var gResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return types.VerificationResult{}, fmt.Errorf("decoding Gemini response: %w", err)
	}
	if len(gResp.Candidates) == 0 || len(gResp.Candidates[0].Content.Parts) == 0 {
		return types.VerificationResult{}, fmt.Errorf("Gemini API returned empty content")
	}

	reply := gResp.Candidates[0].Content.Parts[0].Text
	return parseVerdict(reply)
}

// parseVerdict extracts the JSON verdict from the model's reply text.
// Models sometimes wrap JSON in a Markdown code fence; that is stripped
// before parsing.
func parseVerdict(reply string) (types.VerificationResult, error) {
	var result types.VerificationResult
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &result); err != nil {
		return types.VerificationResult{}, &MalformedReplyError{RawReply: reply, Cause: err}
	}

	if result.ConfidenceScore < 0 {
		result.ConfidenceScore = 0
	}
	if result.ConfidenceScore > 1 {
		result.ConfidenceScore = 1
	}
	return result, nil
}

// stripCodeFence removes a surrounding ```json ... ``` fence, if present.
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if i := strings.Index(t, "\n"); i >= 0 {
		t = t[i+1:]
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

// renderPrompt executes the verification prompt template for one request.
func renderPrompt(vreq VerificationRequest) (string, error) {
	var buf bytes.Buffer
	if err := verifyPromptTmpl.Execute(&buf, vreq); err != nil {
		return "", err
	}
	return buf.String(), nil
}
