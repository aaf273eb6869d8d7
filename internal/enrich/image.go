package enrich

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"

	"github.com/superbrain/gateway/internal/message"
)

// maxOCRDimension caps the longest edge fed to OCR/vision backends; larger
// phone-camera photos waste tokens and rarely improve extraction quality.
const maxOCRDimension = 1600

// ImageEnricher downscales image attachments to a bound the OCR/vision
// backends handle efficiently, then runs OCR first and falls back to a
// vision description when OCR yields nothing useful.
type ImageEnricher struct {
	httpClient *http.Client
	ocr        OCRBackend
	vision     VisionBackend
}

// NewImageEnricher wires concrete OCR and vision backends (or testfakes).
func NewImageEnricher(ocr OCRBackend, vision VisionBackend) *ImageEnricher {
	return &ImageEnricher{httpClient: &http.Client{Timeout: 30 * time.Second}, ocr: ocr, vision: vision}
}

func (e *ImageEnricher) Name() string { return "image" }

func (e *ImageEnricher) Applies(msg *message.Unified) bool {
	return msg.ContentType == message.ContentImage && msg.MediaURL != ""
}

func (e *ImageEnricher) Enrich(ctx context.Context, msg *message.Unified) (bool, error) {
	raw, err := e.fetch(ctx, msg.MediaURL)
	if err != nil {
		return false, fmt.Errorf("enrich/image: fetch: %w", err)
	}

	prepared, err := downscale(raw)
	if err != nil {
		return false, fmt.Errorf("enrich/image: downscale: %w", err)
	}

	var text string
	var source string
	if e.ocr != nil {
		text, err = e.ocr.ExtractText(ctx, prepared, "image/jpeg")
		if err != nil {
			return false, fmt.Errorf("enrich/image: ocr: %w", err)
		}
		source = "ocr"
	}
	if text == "" && e.vision != nil {
		text, err = e.vision.Describe(ctx, prepared, "image/jpeg")
		if err != nil {
			return false, fmt.Errorf("enrich/image: vision: %w", err)
		}
		source = "vision"
	}
	if text == "" {
		return false, nil
	}

	msg.Content = text
	msg.AppendAnalysis(map[string]interface{}{
		"enricher": e.Name(),
		"source":   source,
		"mediaUrl": msg.MediaURL,
	})
	return true, nil
}

func (e *ImageEnricher) fetch(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 16<<20))
}

func downscale(raw []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > maxOCRDimension || bounds.Dy() > maxOCRDimension {
		img = imaging.Fit(img, maxOCRDimension, maxOCRDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}
