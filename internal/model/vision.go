package model

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPVisionEncoder calls a vision-encoder sidecar that decodes, normalizes
// and encodes an image, returning both the prompt embedding block and the
// pooled retrieval feature.
type HTTPVisionEncoder struct {
	baseURL    string
	httpClient *http.Client
}

var _ VisionEncoder = (*HTTPVisionEncoder)(nil)

func NewHTTPVisionEncoder(baseURL string, httpClient *http.Client) *HTTPVisionEncoder {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPVisionEncoder{baseURL: baseURL, httpClient: httpClient}
}

func (v *HTTPVisionEncoder) EncodeImage(ctx context.Context, raw []byte) (*ImageEncoding, error) {
	reqBody := map[string]string{
		"image_data": base64.StdEncoding.EncodeToString(raw),
	}
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(reqBody); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/encode", buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision encoder request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision encoder error: %s", resp.Status)
	}

	var enc ImageEncoding
	if err := json.NewDecoder(resp.Body).Decode(&enc); err != nil {
		return nil, fmt.Errorf("failed to decode vision encoder response: %w", err)
	}
	if len(enc.Block) == 0 || len(enc.Feature) == 0 {
		return nil, fmt.Errorf("vision encoder returned an empty encoding")
	}
	return &enc, nil
}
