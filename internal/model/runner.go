package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Runner is an HTTP client for a model-runner sidecar that hosts the decoder
// weights and tokenizer. The sidecar owns the accelerator; this client only
// shuttles tokens and embeddings over JSON.
type Runner struct {
	baseURL    string
	eosTokenID int32
	httpClient *http.Client
}

var _ LanguageModel = (*Runner)(nil)

// NewRunner creates a client for the model runner at baseURL. If httpClient
// is nil, http.DefaultClient is used.
func NewRunner(baseURL string, eosTokenID int32, httpClient *http.Client) *Runner {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Runner{baseURL: baseURL, eosTokenID: eosTokenID, httpClient: httpClient}
}

func (r *Runner) Tokenize(ctx context.Context, text string, addSpecial bool) ([]int32, error) {
	var resp struct {
		Tokens []int32 `json:"tokens"`
	}
	req := map[string]interface{}{"text": text, "add_special": addSpecial}
	if err := r.post(ctx, "/tokenize", req, &resp); err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}

func (r *Runner) EmbedTokens(ctx context.Context, ids []int32) ([][]float32, error) {
	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	req := map[string]interface{}{"tokens": ids}
	if err := r.post(ctx, "/embed", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(ids) {
		return nil, fmt.Errorf("model runner returned %d embeddings for %d tokens",
			len(resp.Embeddings), len(ids))
	}
	return resp.Embeddings, nil
}

func (r *Runner) Step(ctx context.Context, embeds [][]float32, params SamplingParams) (int32, error) {
	var resp struct {
		Token int32 `json:"token"`
	}
	req := map[string]interface{}{
		"inputs_embeds":      embeds,
		"top_p":              params.TopP,
		"temperature":        params.Temperature,
		"repetition_penalty": params.RepetitionPenalty,
		"length_penalty":     params.LengthPenalty,
		"min_length":         params.MinLength,
		"num_beams":          params.NumBeams,
		"do_sample":          true,
	}
	if err := r.post(ctx, "/step", req, &resp); err != nil {
		return 0, err
	}
	return resp.Token, nil
}

func (r *Runner) DecodeTokens(ctx context.Context, ids []int32) (string, error) {
	var resp struct {
		Text string `json:"text"`
	}
	req := map[string]interface{}{"tokens": ids, "skip_special_tokens": true}
	if err := r.post(ctx, "/detokenize", req, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (r *Runner) EOSTokenID() int32 {
	return r.eosTokenID
}

// IsHealthy reports whether the model runner answers on its health endpoint.
func (r *Runner) IsHealthy() bool {
	resp, err := r.httpClient.Get(r.baseURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (r *Runner) post(ctx context.Context, path string, body, out interface{}) error {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("model runner request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model runner error on %s: %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode model runner response: %w", err)
	}
	return nil
}
