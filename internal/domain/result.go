package domain

import (
	"encoding/json"
	"fmt"
)

// DefaultEmptyText is the content of the sentinel "nothing found" record.
const DefaultEmptyText = "空"

// InternalProperties are node properties that never leave the pipeline.
var InternalProperties = map[string]bool{
	"embedding": true,
	"fulltext":  true,
}

// Record is one flattened result row.
type Record struct {
	Content string
	Fields  map[string]any
}

// SearchResult is the answer of one search call.
type SearchResult struct {
	Records []Record
	Empty   bool
}

// EmptyResult returns the sentinel result holding a single "nothing found" record.
func EmptyResult(text string) SearchResult {
	if text == "" {
		text = DefaultEmptyText
	}
	return SearchResult{Records: []Record{{Content: text}}, Empty: true}
}

// NewRecord flattens a result row and renders its content.
func NewRecord(row map[string]any) Record {
	fields := Flatten(row)
	return Record{Content: renderContent(fields), Fields: fields}
}

// Flatten collapses nested maps into dotted keys and drops internal properties.
func Flatten(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	flattenInto(out, "", row)
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		if InternalProperties[k] {
			continue
		}
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = v
	}
}

func renderContent(fields map[string]any) string {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Sprint(fields)
	}
	return string(data)
}
