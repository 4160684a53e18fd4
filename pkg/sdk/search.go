package cypherrag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/cypherrag/internal/domain"
)

// Speaker identifies who produced a turn.
type Speaker string

// Speaker constants.
const (
	SpeakerUser Speaker = "user"
	SpeakerBot  Speaker = "bot"
)

// Turn is one earlier message of the conversation.
type Turn struct {
	Speaker Speaker
	Text    string
}

// UserTurn is a message written by the user.
func UserTurn(text string) Turn { return Turn{Speaker: SpeakerUser, Text: text} }

// BotTurn is a reply of the assistant.
func BotTurn(text string) Turn { return Turn{Speaker: SpeakerBot, Text: text} }

// Record is one flattened result row. Fields use dotted keys such as "s.spu_name".
type Record struct {
	Content string
	Fields  map[string]any
}

// Usage counts the model tokens spent by one search.
type Usage struct {
	LLMCalls        int
	LLMTokens       int
	EmbeddingTokens int
}

// Result is the answer of a search.
type Result struct {
	Records []Record
	// Empty marks the single "nothing found" record.
	Empty bool
	Usage Usage
}

// SearchOption configures a single search.
type SearchOption func(*searchOptions)

type searchOptions struct {
	history []Turn
	userID  string
}

// WithHistory passes the conversation so far, oldest first.
func WithHistory(turns ...Turn) SearchOption {
	return func(o *searchOptions) {
		o.history = append(o.history, turns...)
	}
}

// WithUserID identifies the asking user so "my orders" style questions resolve.
func WithUserID(id string) SearchOption {
	return func(o *searchOptions) {
		o.userID = id
	}
}

// Search answers a natural-language question from the graph.
// Only routing failures are returned as errors; a blank question and every later
// failure yield an Empty result.
func (c *Client) Search(ctx context.Context, question string, opts ...SearchOption) (res Result, err error) {
	start := time.Now()
	defer func() {
		c.obs.observeSearch(start, res, err)
	}()

	var o searchOptions
	for _, fn := range opts {
		fn(&o)
	}
	session, err := toSession(o)
	if err != nil {
		return Result{}, err
	}

	ctx, usage := domain.NewContextWithUsage(ctx)
	out, err := c.searchSvc.Search(ctx, question, session)
	if err != nil {
		return Result{}, fmt.Errorf("search: %w", err)
	}

	res = Result{Records: make([]Record, len(out.Records)), Empty: out.Empty}
	for i, r := range out.Records {
		res.Records[i] = Record{Content: r.Content, Fields: r.Fields}
	}
	res.Usage.EmbeddingTokens, res.Usage.LLMTokens, res.Usage.LLMCalls = usage.Snapshot()
	return res, nil
}

func toSession(o searchOptions) (domain.Session, error) {
	turns := make([]domain.ChatTurn, len(o.history))
	for i, t := range o.history {
		switch t.Speaker {
		case SpeakerUser:
			turns[i] = domain.ChatTurn{Speaker: domain.SpeakerUser, Text: t.Text}
		case SpeakerBot:
			turns[i] = domain.ChatTurn{Speaker: domain.SpeakerBot, Text: t.Text}
		default:
			return domain.Session{}, fmt.Errorf("cypherrag: history[%d]: unknown speaker %q", i, t.Speaker)
		}
	}
	return domain.Session{Turns: turns, UserID: strings.TrimSpace(o.userID)}, nil
}
