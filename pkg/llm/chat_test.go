package llm_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/medilex/internal/models"
	"github.com/xhad/medilex/pkg/llm"
)

// stubModel is a langchaingo model that replays canned replies.
type stubModel struct {
	mu       sync.Mutex
	reply    string
	chunks   []string
	errs     []error
	messages [][]llms.MessageContent
	opts     []llms.CallOptions
}

func (m *stubModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}

	m.mu.Lock()
	m.messages = append(m.messages, messages)
	m.opts = append(m.opts, opts)
	var err error
	if len(m.errs) > 0 {
		err, m.errs = m.errs[0], m.errs[1:]
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if opts.StreamingFunc != nil {
		for _, c := range m.chunks {
			if err := opts.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func textOf(t *testing.T, mc llms.MessageContent) string {
	t.Helper()
	require.NotEmpty(t, mc.Parts)
	tc, ok := mc.Parts[0].(llms.TextContent)
	require.True(t, ok)
	return tc.Text
}

func testChatConfig() llm.ChatConfig {
	nop := zerolog.Nop()
	return llm.ChatConfig{
		Temperature: 0.5,
		MaxTokens:   256,
		Retry: llm.RetryConfig{
			MaxRetries:     1,
			InitialBackoff: time.Millisecond,
			Timeout:        time.Second,
		},
		Logger: &nop,
	}
}

var testDocs = []models.Document{
	{
		ID:       "doc1",
		Content:  "Paracetamol reduces fever. Do not exceed 4 g a day.",
		Metadata: map[string]interface{}{"source": "corpus/paracetamol.txt"},
	},
	{ID: "doc2", URL: "https://example.org/fever", Content: "Drink fluids when you have a fever."},
}

func TestNewWithConfig(t *testing.T) {
	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:       "testmodel",
		Temperature: 0.5,
		MaxTokens:   1000,
		BaseURL:     "http://localhost:1234",
	})
	assert.NoError(t, err)
	assert.NotNil(t, engine)
}

func TestNewWithModel_Validation(t *testing.T) {
	_, err := llm.NewWithModel(llm.ChatConfig{Temperature: 3}, &stubModel{})
	assert.Error(t, err)

	_, err = llm.NewWithModel(llm.ChatConfig{MaxTokens: -1}, &stubModel{})
	assert.Error(t, err)
}

func TestChat(t *testing.T) {
	model := &stubModel{reply: "  Take paracetamol for the fever.  "}
	engine, err := llm.NewWithModel(testChatConfig(), model)
	require.NoError(t, err)

	answer, err := engine.Chat(context.Background(), "What helps with fever?", testDocs)
	require.NoError(t, err)
	assert.Equal(t, "Take paracetamol for the fever.", answer)

	require.Len(t, model.messages, 1)
	msgs := model.messages[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	prompt := textOf(t, msgs[1])
	assert.Contains(t, prompt, "Source: corpus/paracetamol.txt\nParacetamol reduces fever.")
	assert.Contains(t, prompt, "Source: https://example.org/fever")
	assert.True(t, strings.HasSuffix(prompt, "Question: What helps with fever?"))

	assert.Equal(t, 0.5, model.opts[0].Temperature)
	assert.Equal(t, 256, model.opts[0].MaxTokens)
}

func TestGenerate_RetriesTransientError(t *testing.T) {
	model := &stubModel{reply: "ok", errs: []error{errors.New("503 service unavailable")}}
	engine, err := llm.NewWithModel(testChatConfig(), model)
	require.NoError(t, err)

	out, err := engine.Generate(context.Background(), "system", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Len(t, model.messages, 2)
	assert.Equal(t, "system", textOf(t, model.messages[0][0]))
}

func TestGenerate_EmptyResponse(t *testing.T) {
	engine, err := llm.NewWithModel(testChatConfig(), emptyModel{})
	require.NoError(t, err)

	_, err = engine.Generate(context.Background(), "", "prompt")
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

type emptyModel struct{}

func (emptyModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}

func (emptyModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", nil
}

func TestChatStream(t *testing.T) {
	model := &stubModel{reply: "Rest and drink water.", chunks: []string{"Rest ", "and ", "drink water."}}
	engine, err := llm.NewWithModel(testChatConfig(), model)
	require.NoError(t, err)

	out, errc := engine.ChatStream(context.Background(), "fever?", testDocs)

	var got strings.Builder
	for chunk := range out {
		got.WriteString(chunk)
	}
	require.NoError(t, <-errc)
	assert.Equal(t, "Rest and drink water.", got.String())
}

func TestChatStream_NonStreamingModel(t *testing.T) {
	model := &stubModel{reply: "Whole reply."}
	engine, err := llm.NewWithModel(testChatConfig(), model)
	require.NoError(t, err)

	out, errc := engine.ChatStream(context.Background(), "fever?", nil)

	var chunks []string
	for chunk := range out {
		chunks = append(chunks, chunk)
	}
	require.NoError(t, <-errc)
	assert.Equal(t, []string{"Whole reply."}, chunks)
}

func TestChatStream_Error(t *testing.T) {
	model := &stubModel{errs: []error{errors.New("model not found")}}
	engine, err := llm.NewWithModel(testChatConfig(), model)
	require.NoError(t, err)

	out, errc := engine.ChatStream(context.Background(), "fever?", nil)
	for range out {
	}
	err = <-errc
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestFormatSources(t *testing.T) {
	docs := append([]models.Document{}, testDocs...)
	docs = append(docs, testDocs[0])

	assert.Equal(t, "\nSources:\ncorpus/paracetamol.txt\nhttps://example.org/fever", llm.FormatSources(docs))
	assert.Equal(t, "", llm.FormatSources(nil))
}
