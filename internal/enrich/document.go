package enrich

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"

	"github.com/superbrain/gateway/internal/message"
)

// DocumentEnricher extracts plain text from PDF attachments and the main
// article body from HTML page attachments, so downstream flow matching and
// routing see readable content instead of an opaque media URL.
type DocumentEnricher struct {
	httpClient *http.Client
}

// NewDocumentEnricher returns an enricher that fetches MediaURL over HTTP.
func NewDocumentEnricher() *DocumentEnricher {
	return &DocumentEnricher{httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (e *DocumentEnricher) Name() string { return "document" }

func (e *DocumentEnricher) Applies(msg *message.Unified) bool {
	return msg.ContentType == message.ContentDocument && msg.MediaURL != ""
}

func (e *DocumentEnricher) Enrich(ctx context.Context, msg *message.Unified) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, msg.MediaURL, nil)
	if err != nil {
		return false, fmt.Errorf("enrich/document: build request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("enrich/document: fetch %s: %w", msg.MediaURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("enrich/document: fetch %s: status %d", msg.MediaURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return false, fmt.Errorf("enrich/document: read body: %w", err)
	}

	var extracted string
	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "pdf") || strings.HasSuffix(strings.ToLower(msg.MediaURL), ".pdf"):
		extracted, err = extractPDF(body)
	case strings.Contains(contentType, "html"):
		extracted, err = extractArticle(body, msg.MediaURL)
	default:
		extracted = string(body)
	}
	if err != nil {
		return false, fmt.Errorf("enrich/document: extract: %w", err)
	}

	msg.Content = extracted
	msg.AppendAnalysis(map[string]interface{}{
		"enricher":   e.Name(),
		"mediaUrl":   msg.MediaURL,
		"extraction": contentType,
	})
	return true, nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var buf bytes.Buffer
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}
	return buf.String(), nil
}

func extractArticle(data []byte, pageURL string) (string, error) {
	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(bytes.NewReader(data), parsed)
	if err != nil {
		return "", fmt.Errorf("parse article: %w", err)
	}
	if article.TextContent == "" {
		return "", fmt.Errorf("no extractable article content at %s", pageURL)
	}
	return article.TextContent, nil
}
