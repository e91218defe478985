package profile

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-analyzer-go/internal/config"
	"resume-analyzer-go/internal/types"
)

type fakeChatModel struct {
	mu       sync.Mutex
	reply    string
	err      error
	received []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, ErrStreamUnsupported
}

const sampleReply = "```json\n" + `{
  "personal_info": {"name": "Jane Doe", "title": "Backend Engineer", "email": "", "phone": "", "location": "Berlin", "summary": "Go developer"},
  "skills": {"technical": ["Go", "Docker"], "soft": ["Leadership"]},
  "education": [{"degree": "BSc Computer Science", "institution": "TU Berlin", "year": "2018", "description": ""}],
  "experience": [{"position": "Engineer", "company": "Acme", "period": "2019-2023", "description": "APIs"}],
  "projects": [{"name": "analyzer", "description": "resume parsing"}]
}` + "\n```"

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"bom", "\uFEFF{\"a\":1}", `{"a":1}`},
		{"plain", "  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripCodeFence(tc.in))
		})
	}
}

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile(sampleReply)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", p.PersonalInfo.Name)
	assert.Equal(t, []string{"Go", "Docker"}, p.Skills.Technical)
	require.Len(t, p.Projects, 1)
	assert.NotNil(t, p.Projects[0].Technologies)

	p, err = ParseProfile("Here is the profile: {\"personal_info\": {\"name\": \"A\"}} hope it helps")
	require.NoError(t, err)
	assert.Equal(t, "A", p.PersonalInfo.Name)
	assert.NotNil(t, p.Education)

	_, err = ParseProfile("no json here")
	assert.Error(t, err)
	_, err = ParseProfile("{broken")
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("resume body", types.PersonalInfo{Name: "Jane", Email: "jane@example.com"})
	assert.Contains(t, prompt, "PERSONAL INFORMATION")
	assert.Contains(t, prompt, "- Name: Jane")
	assert.Contains(t, prompt, "- Email: jane@example.com")
	assert.NotContains(t, prompt, "- Phone:")
	assert.Contains(t, prompt, "resume body")
	assert.Contains(t, prompt, `"personal_info"`)

	prompt = BuildPrompt(strings.Repeat("文", maxPromptTextRunes+10), types.PersonalInfo{})
	assert.NotContains(t, prompt, "PERSONAL INFORMATION")
	assert.Equal(t, maxPromptTextRunes, strings.Count(prompt, "文"))
}

func TestGeneratorGenerate(t *testing.T) {
	fake := &fakeChatModel{reply: sampleReply}
	g := NewGenerator(fake, WithLogger(zerolog.Nop()))

	p, err := g.Generate(context.Background(), "Jane Doe resume", types.PersonalInfo{Email: "jane@example.com", Location: "Munich"})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", p.PersonalInfo.Name)
	// 已知信息优先
	assert.Equal(t, "jane@example.com", p.PersonalInfo.Email)
	assert.Equal(t, "Munich", p.PersonalInfo.Location)

	require.Len(t, fake.received, 2)
	assert.Equal(t, schema.System, fake.received[0].Role)
	assert.Equal(t, schema.User, fake.received[1].Role)
	assert.Contains(t, fake.received[1].Content, "Jane Doe resume")
}

func TestGeneratorErrors(t *testing.T) {
	g := NewGenerator(&fakeChatModel{reply: sampleReply}, WithLogger(zerolog.Nop()))
	_, err := g.Generate(context.Background(), "   ", types.PersonalInfo{})
	assert.ErrorIs(t, err, ErrEmptyText)

	cause := errors.New("upstream down")
	g = NewGenerator(&fakeChatModel{err: cause}, WithLogger(zerolog.Nop()))
	_, err = g.Generate(context.Background(), "text", types.PersonalInfo{})
	assert.ErrorIs(t, err, cause)

	g = NewGenerator(&fakeChatModel{reply: "sorry"}, WithLogger(zerolog.Nop()))
	_, err = g.Generate(context.Background(), "text", types.PersonalInfo{})
	assert.Error(t, err)
}

func TestFromAnalysis(t *testing.T) {
	result := &types.AnalysisResult{}
	result.ContactInfo.Email = "a@b.com"
	p := FromAnalysis(result)
	assert.Equal(t, "a@b.com", p.PersonalInfo.Email)
}

type fakeCompletionClient struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeCompletionClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestOpenAIChatModel(t *testing.T) {
	client := &fakeCompletionClient{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "{}"},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12},
	}}
	m := NewOpenAIChatModelWithClient(client, "gpt-test", 0.2, 512)

	out, err := m.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage("hi"),
	})
	require.NoError(t, err)
	assert.Equal(t, "{}", out.Content)
	assert.Equal(t, 12, out.ResponseMeta.Usage.TotalTokens)

	assert.Equal(t, "gpt-test", client.req.Model)
	assert.Equal(t, 512, client.req.MaxTokens)
	require.Len(t, client.req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, client.req.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, client.req.Messages[1].Role)

	// 调用方选项覆盖默认值
	_, err = m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")}, model.WithModel("other"))
	require.NoError(t, err)
	assert.Equal(t, "other", client.req.Model)

	client.resp = openai.ChatCompletionResponse{}
	_, err = m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	assert.Error(t, err)

	_, err = m.Stream(context.Background(), nil)
	assert.ErrorIs(t, err, ErrStreamUnsupported)
}

func TestNewFromConfigDisabled(t *testing.T) {
	_, err := NewFromConfig(config.LLMConfig{})
	assert.ErrorIs(t, err, ErrLLMDisabled)

	g, err := NewFromConfig(config.LLMConfig{APIKey: "sk-test", Model: "gpt-4o-mini", QPM: 60, MaxRetries: 1, Timeout: "5s"})
	require.NoError(t, err)
	assert.Equal(t, "5s", g.timeout.String())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}))
	assert.True(t, IsRetryable(&openai.APIError{HTTPStatusCode: http.StatusBadGateway}))
	assert.False(t, IsRetryable(&openai.APIError{HTTPStatusCode: http.StatusBadRequest}))
	assert.True(t, IsRetryable(errors.New("connection reset by peer")))
}
