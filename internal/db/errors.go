package db

import "errors"

var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrIndexNotFound = errors.New("db: index not found")
)

// Command names recorded in Error.Op.
const (
	OpGet       = "GET"
	OpMGet      = "MGET"
	OpSet       = "SET"
	OpIncrBy    = "INCRBY"
	OpExpire    = "EXPIRE"
	OpSearch    = "FT.SEARCH"
	OpIndexInfo = "FT.INFO"
)

// Error tags a backend failure with the command that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }
