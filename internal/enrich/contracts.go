// Package enrich runs the fixed-order media enrichment chain the pipeline
// applies to ACTIVE-classified messages after classification: document
// extraction, image OCR/vision description, and voice transcription. Each
// enricher mutates the message's Content in place and must pair the
// mutation with message.Unified.AppendAnalysis.
package enrich

import (
	"context"

	"github.com/superbrain/gateway/internal/message"
)

// Enricher inspects a message and, if it applies, rewrites Content with an
// extracted or generated textual representation of the attached media.
// Enrichers that don't apply to the message's ContentType return it
// unchanged with applied=false.
type Enricher interface {
	Name() string
	Applies(msg *message.Unified) bool
	Enrich(ctx context.Context, msg *message.Unified) (applied bool, err error)
}

// OCRBackend extracts text from an image. Concrete OCR engines are outside
// this repo's scope (spec Non-goals); callers inject a backend, and tests
// use testfakes.OCR.
type OCRBackend interface {
	ExtractText(ctx context.Context, imageBytes []byte, mimeType string) (string, error)
}

// VisionBackend produces a natural-language description of an image,
// distinct from OCR in that it describes content rather than transcribing
// text. Concrete vision model backends are outside this repo's scope.
type VisionBackend interface {
	Describe(ctx context.Context, imageBytes []byte, mimeType string) (string, error)
}

// VoiceBackend transcribes spoken audio to text. Concrete ASR backends are
// outside this repo's scope.
type VoiceBackend interface {
	Transcribe(ctx context.Context, audioBytes []byte, mimeType string) (string, error)
}

// Chain runs enrichers in the fixed order they were registered, running
// every one that applies (a message has exactly one ContentType, so at
// most one enricher is expected to match, but the chain does not assume
// that — it keeps running so a document enricher and a follow-on OCR pass
// over an embedded image could both contribute analysis entries). It stops
// at the first enricher that returns an error.
type Chain struct {
	enrichers []Enricher
}

// NewChain returns a Chain that runs enrichers in the given fixed order.
func NewChain(enrichers ...Enricher) *Chain {
	return &Chain{enrichers: enrichers}
}

// Run applies every enricher that matches msg, in order.
func (c *Chain) Run(ctx context.Context, msg *message.Unified) error {
	for _, e := range c.enrichers {
		if !e.Applies(msg) {
			continue
		}
		if _, err := e.Enrich(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}
