package domain

import "strings"

// Origin records which pipeline step produced a draft.
type Origin string

// Draft origins.
const (
	OriginGenerated          Origin = "generated"
	OriginCorrected          Origin = "corrected"
	OriginDirectionCorrected Origin = "direction_corrected"
)

// QueryDraft is an immutable Cypher candidate.
type QueryDraft struct {
	text   string
	origin Origin
}

// NewQueryDraft creates a draft.
func NewQueryDraft(text string, origin Origin) QueryDraft {
	return QueryDraft{text: strings.TrimSpace(text), origin: origin}
}

// Text returns the query text.
func (d QueryDraft) Text() string { return d.text }

// Origin returns the step that produced the draft.
func (d QueryDraft) Origin() Origin { return d.origin }

// IsEmpty reports whether the draft holds no usable query.
func (d QueryDraft) IsEmpty() bool { return d.text == "" }

// ValidationReport lists problems found in a draft. Empty means valid.
type ValidationReport []string

// Valid reports whether no problem was found.
func (r ValidationReport) Valid() bool { return len(r) == 0 }

// String joins the problems one per line for prompt assembly.
func (r ValidationReport) String() string {
	return strings.Join(r, "\n")
}
