package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/superbrain/gateway/internal/message"
)

// VoiceEnricher transcribes voice-note attachments via an injected ASR
// backend. Concrete speech backends are outside this repo's scope; the
// pipeline wires a real one in deployments that need it.
type VoiceEnricher struct {
	httpClient *http.Client
	backend    VoiceBackend
}

// NewVoiceEnricher wires a concrete or fake VoiceBackend.
func NewVoiceEnricher(backend VoiceBackend) *VoiceEnricher {
	return &VoiceEnricher{httpClient: &http.Client{Timeout: 60 * time.Second}, backend: backend}
}

func (e *VoiceEnricher) Name() string { return "voice" }

func (e *VoiceEnricher) Applies(msg *message.Unified) bool {
	return (msg.ContentType == message.ContentVoice || msg.ContentType == message.ContentAudio) && msg.MediaURL != ""
}

func (e *VoiceEnricher) Enrich(ctx context.Context, msg *message.Unified) (bool, error) {
	if e.backend == nil {
		return false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, msg.MediaURL, nil)
	if err != nil {
		return false, fmt.Errorf("enrich/voice: build request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("enrich/voice: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("enrich/voice: fetch: status %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return false, fmt.Errorf("enrich/voice: read body: %w", err)
	}

	text, err := e.backend.Transcribe(ctx, audio, msg.MimeType)
	if err != nil {
		return false, fmt.Errorf("enrich/voice: transcribe: %w", err)
	}
	if text == "" {
		return false, nil
	}

	msg.Content = text
	msg.AppendAnalysis(map[string]interface{}{
		"enricher": e.Name(),
		"mediaUrl": msg.MediaURL,
	})
	return true, nil
}
