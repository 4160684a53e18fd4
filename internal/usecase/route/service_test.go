package route

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/cypherrag/internal/domain"
)

// --- Mocks ---

type mockChat struct {
	reply string
	err   error
	got   domain.CompletionRequest
}

func (m *mockChat) Complete(_ context.Context, req domain.CompletionRequest) (string, error) {
	m.got = req
	return m.reply, m.err
}

// --- Tests ---

func TestRoute_StructuredReply(t *testing.T) {
	chat := &mockChat{reply: `{"outputs":[{"label":"Category3","entity":"平板电视"},{"label":"Attr","entity":" 8K "},{"label":"User","entity":"17"}]}`}
	svc := New(chat)

	items, err := svc.Route(context.Background(), "user_id=17:我之前看到过一款平板电视还不错，我记得是70多寸8K的")
	require.NoError(t, err)

	assert.Equal(t, []domain.RouteItem{
		{Label: domain.LabelCategory3, Entity: "平板电视"},
		{Label: domain.LabelAttr, Entity: "8K"},
		{Label: domain.LabelUser, Entity: "17"},
	}, items)

	assert.Equal(t, domain.StageRoute, chat.got.Stage)
	assert.IsType(t, domain.RouteOutput{}, chat.got.Schema)
	assert.True(t, strings.HasPrefix(chat.got.Prompt, "user_id=17:"))
}

func TestRoute_BareListInFence(t *testing.T) {
	chat := &mockChat{reply: "```json\n[{\"label\": \"Trademark\", \"entity\": \"OPPO\"}]\n```"}

	items, err := New(chat).Route(context.Background(), "user:帮我推荐oppo的手机")
	require.NoError(t, err)
	assert.Equal(t, []domain.RouteItem{{Label: domain.LabelTrademark, Entity: "OPPO"}}, items)
}

func TestRoute_EmptyOutputs(t *testing.T) {
	items, err := New(&mockChat{reply: `{"outputs": []}`}).Route(context.Background(), "user:你好")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRoute_Failures(t *testing.T) {
	tests := []struct {
		name string
		chat *mockChat
	}{
		{name: "provider error", chat: &mockChat{err: domain.ErrLLMProviderError}},
		{name: "not json", chat: &mockChat{reply: "我无法判断"}},
		{name: "unknown label", chat: &mockChat{reply: `{"outputs":[{"label":"Order","entity":"123"}]}`}},
		{name: "wrong shape", chat: &mockChat{reply: `{"outputs":"SPU"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.chat).Route(context.Background(), "user:x")
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrRoutingFailed), "got %v", err)
		})
	}
}

func TestBuildSystemPrompt_ListsEveryLabel(t *testing.T) {
	prompt := buildSystemPrompt()
	for _, l := range domain.Labels {
		assert.Contains(t, prompt, "- "+string(l)+": ")
	}
	assert.Contains(t, prompt, "如果查询与用户相关")
}
