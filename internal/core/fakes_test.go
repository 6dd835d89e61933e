package core

import (
	"context"
	"strings"
	"sync"

	"github.com/rjmacarthy/minigpt4/internal/model"
)

type tokenizeCall struct {
	text       string
	addSpecial bool
}

const fakeEOS = int32(2)

// fakeModel is a scriptable LanguageModel. Tokenize emits one token per byte
// of text (prefixed with BOS token 1 when addSpecial is set), EmbedTokens
// maps each token id to a single-element row carrying the id, Step replays a
// scripted token stream and falls back to EOS, and DecodeTokens rebuilds a
// string from byte tokens unless decodeFn overrides it.
type fakeModel struct {
	mu            sync.Mutex
	tokenizeCalls []tokenizeCall
	script        []int32
	stepCount     int
	decodeFn      func(ids []int32) string
}

var _ model.LanguageModel = (*fakeModel)(nil)

func (m *fakeModel) Tokenize(_ context.Context, text string, addSpecial bool) ([]int32, error) {
	m.mu.Lock()
	m.tokenizeCalls = append(m.tokenizeCalls, tokenizeCall{text: text, addSpecial: addSpecial})
	m.mu.Unlock()

	var ids []int32
	if addSpecial {
		ids = append(ids, 1)
	}
	for i := 0; i < len(text); i++ {
		ids = append(ids, int32(text[i]))
	}
	return ids, nil
}

func (m *fakeModel) EmbedTokens(_ context.Context, ids []int32) ([][]float32, error) {
	embeds := make([][]float32, len(ids))
	for i, id := range ids {
		embeds[i] = []float32{float32(id)}
	}
	return embeds, nil
}

func (m *fakeModel) Step(_ context.Context, _ [][]float32, _ model.SamplingParams) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stepCount < len(m.script) {
		token := m.script[m.stepCount]
		m.stepCount++
		return token, nil
	}
	return fakeEOS, nil
}

func (m *fakeModel) DecodeTokens(_ context.Context, ids []int32) (string, error) {
	if m.decodeFn != nil {
		return m.decodeFn(ids), nil
	}
	var sb strings.Builder
	for _, id := range ids {
		sb.WriteByte(byte(id))
	}
	return sb.String(), nil
}

func (m *fakeModel) EOSTokenID() int32 {
	return fakeEOS
}
