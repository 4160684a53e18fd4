package domain

import "fmt"

// Relationship is a (source)-[type]->(target) triple declared by the graph schema.
type Relationship struct {
	Source string `yaml:"source" json:"start"`
	Type   string `yaml:"type" json:"type"`
	Target string `yaml:"target" json:"end"`
}

// String renders the triple in Cypher pattern form.
func (r Relationship) String() string {
	return fmt.Sprintf("(:%s)-[:%s]->(:%s)", r.Source, r.Type, r.Target)
}

// SchemaProvider exposes the graph schema to prompt assembly and direction correction.
// Implementations are loaded once and read-only afterwards.
type SchemaProvider interface {
	TextSchema() string
	Relationships() []Relationship
}

// StaticSchema is an in-memory SchemaProvider.
type StaticSchema struct {
	Text string
	Rels []Relationship
}

// TextSchema returns the schema description.
func (s StaticSchema) TextSchema() string { return s.Text }

// Relationships returns the declared relationship triples.
func (s StaticSchema) Relationships() []Relationship { return s.Rels }
