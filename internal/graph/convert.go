package graph

import (
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/kailas-cloud/cypherrag/internal/domain"
)

func convertRecords(records []*neo4j.Record) []map[string]any {
	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		row := make(map[string]any, len(rec.Keys))
		for i, key := range rec.Keys {
			row[key] = convertValue(rec.Values[i])
		}
		rows = append(rows, row)
	}
	return rows
}

// convertValue turns driver graph values into plain maps and lists.
// Nodes and relationships become their property maps without internal properties.
func convertValue(v any) any {
	switch val := v.(type) {
	case dbtype.Node:
		return properties(val.Props)
	case dbtype.Relationship:
		props := properties(val.Props)
		props["type"] = val.Type
		return props
	case dbtype.Path:
		items := make([]any, 0, len(val.Nodes)+len(val.Relationships))
		for i, n := range val.Nodes {
			items = append(items, convertValue(n))
			if i < len(val.Relationships) {
				items = append(items, convertValue(val.Relationships[i]))
			}
		}
		return items
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = convertValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = convertValue(item)
		}
		return out
	case fmt.Stringer:
		// temporal and spatial values
		return val.String()
	default:
		return v
	}
}

func properties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if domain.InternalProperties[k] {
			continue
		}
		out[k] = convertValue(v)
	}
	return out
}
