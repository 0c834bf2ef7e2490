// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package grobid

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/itisaevalex/citation-verifier-sub001/internal/httputil"
	"github.com/itisaevalex/citation-verifier-sub001/pkg/types"
)

// Client talks to a running extraction service instance.
type Client struct {
	cfg    types.ExtractionServiceConfig
	client *http.Client
}

// NewClient builds a client from config. The HTTP timeout covers the whole
// fulltext request, which can run tens of seconds for long PDFs.
func NewClient(cfg types.ExtractionServiceConfig) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Ping probes the service health endpoint. A failing ping means sessions
// should not be started.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/isalive", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("extraction service unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("extraction service returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// ProcessFulltext uploads a PDF and returns the TEI markup the service
// produced. Transport errors and non-200 responses are fatal to the
// current operation only.
func (c *Client) ProcessFulltext(ctx context.Context, pdfPath string) ([]byte, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("input", filepath.Base(pdfPath))
	if err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("reading PDF %s: %w", pdfPath, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing upload form: %w", err)
	}

	url := c.cfg.BaseURL + "/api/processFulltextDocument"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("extraction service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("extraction service returned HTTP %d: %s", resp.StatusCode, snippet)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading TEI response: %w", err)
	}
	return data, nil
}

// ProcessAndParse uploads a PDF and parses the resulting TEI in one step.
func (c *Client) ProcessAndParse(ctx context.Context, pdfPath string) (*TEIDocument, error) {
	data, err := c.ProcessFulltext(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	return ParseTEI(data)
}
