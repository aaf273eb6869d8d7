// Package testfakes provides in-memory OCR/Vision/Voice backends for
// exercising internal/enrich without a real model or OCR engine.
package testfakes

import "context"

// OCR returns a fixed string for every call,
// recording the calls it received.
type OCR struct {
	Text  string
	Calls int
}

func (o *OCR) ExtractText(ctx context.Context, imageBytes []byte, mimeType string) (string, error) {
	o.Calls++
	return o.Text, nil
}

// Vision returns a fixed description for every call.
type Vision struct {
	Description string
	Calls       int
}

func (v *Vision) Describe(ctx context.Context, imageBytes []byte, mimeType string) (string, error) {
	v.Calls++
	return v.Description, nil
}

// Voice returns a fixed transcript for every call.
type Voice struct {
	Transcript string
	Calls      int
}

func (v *Voice) Transcribe(ctx context.Context, audioBytes []byte, mimeType string) (string, error) {
	v.Calls++
	return v.Transcript, nil
}
