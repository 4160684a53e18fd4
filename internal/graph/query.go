package graph

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/cypherrag/internal/domain"
)

const findUserCypher = "MATCH (u:User) WHERE u.user_id = $user_id RETURN u"

// Explain asks the engine to plan query without running it.
// Compilation failures are returned as *domain.SyntaxError.
func (c *Client) Explain(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf("explain: %w", domain.ErrEmptyQuery)
	}

	_, err := c.read(ctx, "EXPLAIN "+query, nil)
	if err == nil {
		return nil
	}
	if neoErr, ok := statementError(err); ok {
		return &domain.SyntaxError{Message: neoErr.Msg}
	}
	return &Error{Op: OpExplain, Err: err}
}

// Execute runs query read-only and returns the rows.
// Every failure wraps domain.ErrExecutionFailed.
func (c *Client) Execute(ctx context.Context, query string) ([]map[string]any, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrExecutionFailed, domain.ErrEmptyQuery)
	}

	rows, err := c.read(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExecutionFailed, &Error{Op: OpExecute, Err: err})
	}
	return rows, nil
}

// FindUser looks the user node up by its numeric id.
// A non-numeric id or a missing node returns domain.ErrNotFound.
func (c *Client) FindUser(ctx context.Context, userID string) (map[string]any, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(userID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("user id %q: %w", userID, domain.ErrNotFound)
	}

	rows, err := c.read(ctx, findUserCypher, map[string]any{"user_id": id})
	if err != nil {
		return nil, &Error{Op: OpFindUser, Err: err}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}

	node, ok := rows[0]["u"].(map[string]any)
	if !ok {
		return nil, &Error{Op: OpFindUser, Err: errors.New("unexpected user row shape")}
	}
	return node, nil
}
