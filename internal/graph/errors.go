package graph

import (
	"errors"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Sentinel errors for graph operations.
var (
	ErrNotConnected  = errors.New("graph: driver not connected")
	ErrInvalidConfig = errors.New("graph: invalid config")
)

// Op names for error context.
const (
	OpConnect  = "connect"
	OpExplain  = "explain"
	OpExecute  = "execute"
	OpFindUser = "find_user"
	OpSchema   = "schema"
	OpSearch   = "hybrid_search"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "graph " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// statementError reports whether err is a Neo.ClientError.Statement.* failure,
// the class the engine raises for queries it cannot compile.
func statementError(err error) (*neo4j.Neo4jError, bool) {
	var neoErr *neo4j.Neo4jError
	if !errors.As(err, &neoErr) {
		return nil, false
	}
	return neoErr, strings.HasPrefix(neoErr.Code, "Neo.ClientError.Statement.")
}
