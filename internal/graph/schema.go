package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/cypherrag/internal/domain"
)

// Bloom visualisation metadata never belongs to the business schema.
var (
	defaultExcludedLabels = []string{"_Bloom_Perspective_", "_Bloom_Scene_"}
	defaultExcludedRels   = []string{"_Bloom_HAS_SCENE_"}
)

const nodePropertiesCypher = `CALL apoc.meta.data()
YIELD label, other, elementType, type, property
WHERE NOT type = "RELATIONSHIP" AND elementType = "node" AND NOT label IN $excluded
WITH label AS label, collect({name: property, type: type}) AS properties
RETURN label, properties ORDER BY label`

const relPropertiesCypher = `CALL apoc.meta.data()
YIELD label, other, elementType, type, property
WHERE NOT type = "RELATIONSHIP" AND elementType = "relationship" AND NOT label IN $excluded
WITH label AS label, collect({name: property, type: type}) AS properties
RETURN label, properties ORDER BY label`

const relationshipsCypher = `CALL apoc.meta.data()
YIELD label, other, elementType, type, property
WHERE type = "RELATIONSHIP" AND elementType = "node"
UNWIND other AS other_node
WITH * WHERE NOT label IN $excluded AND NOT other_node IN $excluded
RETURN label AS source, property AS type, toString(other_node) AS target`

// Property is one typed property of a label or relationship type.
type Property struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Element lists the properties of one node label or relationship type.
type Element struct {
	Label      string     `yaml:"label"`
	Properties []Property `yaml:"properties"`
}

// SchemaDoc is the structured graph schema.
type SchemaDoc struct {
	Nodes         []Element             `yaml:"nodes"`
	RelProperties []Element             `yaml:"relationship_properties"`
	Relationships []domain.Relationship `yaml:"relationships"`
}

// SchemaOptions filters introspected elements.
type SchemaOptions struct {
	ExcludedLabels     []string
	ExcludedProperties []string
}

// LoadSchema introspects the live graph through apoc.meta.data.
func (c *Client) LoadSchema(ctx context.Context, opts SchemaOptions) (domain.StaticSchema, error) {
	labels := append(slices.Clone(defaultExcludedLabels), opts.ExcludedLabels...)
	rels := append(slices.Clone(defaultExcludedRels), opts.ExcludedLabels...)

	nodeRows, err := c.read(ctx, nodePropertiesCypher, map[string]any{"excluded": labels})
	if err != nil {
		return domain.StaticSchema{}, &Error{Op: OpSchema, Err: fmt.Errorf("node properties: %w", err)}
	}
	relPropRows, err := c.read(ctx, relPropertiesCypher, map[string]any{"excluded": rels})
	if err != nil {
		return domain.StaticSchema{}, &Error{Op: OpSchema, Err: fmt.Errorf("relationship properties: %w", err)}
	}
	relRows, err := c.read(ctx, relationshipsCypher, map[string]any{"excluded": labels})
	if err != nil {
		return domain.StaticSchema{}, &Error{Op: OpSchema, Err: fmt.Errorf("relationships: %w", err)}
	}

	doc := SchemaDoc{
		Nodes:         elementsFromRows(nodeRows),
		RelProperties: elementsFromRows(relPropRows),
		Relationships: relationshipsFromRows(relRows),
	}
	return doc.Build(opts), nil
}

// LoadSchemaFile reads a YAML schema document from path.
func LoadSchemaFile(path string, opts SchemaOptions) (domain.StaticSchema, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return domain.StaticSchema{}, fmt.Errorf("read schema %s: %w", path, err)
	}

	var doc SchemaDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return domain.StaticSchema{}, fmt.Errorf("parse schema %s: %w", path, err)
	}
	if len(doc.Relationships) == 0 {
		return domain.StaticSchema{}, fmt.Errorf("schema %s declares no relationships", path)
	}
	return doc.Build(opts), nil
}

// Build filters the document and renders the prompt text.
func (d SchemaDoc) Build(opts SchemaOptions) domain.StaticSchema {
	excludedProps := map[string]bool{}
	for k := range domain.InternalProperties {
		excludedProps[k] = true
	}
	for _, p := range opts.ExcludedProperties {
		excludedProps[p] = true
	}
	excludedLabels := map[string]bool{}
	for _, l := range append(append(slices.Clone(defaultExcludedLabels), defaultExcludedRels...), opts.ExcludedLabels...) {
		excludedLabels[l] = true
	}

	filter := func(elems []Element) []Element {
		out := make([]Element, 0, len(elems))
		for _, e := range elems {
			if excludedLabels[e.Label] {
				continue
			}
			props := make([]Property, 0, len(e.Properties))
			for _, p := range e.Properties {
				if !excludedProps[p.Name] {
					props = append(props, p)
				}
			}
			out = append(out, Element{Label: e.Label, Properties: props})
		}
		return out
	}

	var rels []domain.Relationship
	seen := map[domain.Relationship]bool{}
	for _, r := range d.Relationships {
		if excludedLabels[r.Source] || excludedLabels[r.Target] || excludedLabels[r.Type] || seen[r] {
			continue
		}
		seen[r] = true
		rels = append(rels, r)
	}

	nodes := filter(d.Nodes)
	relProps := filter(d.RelProperties)

	var b strings.Builder
	b.WriteString("Node properties:\n")
	writeElements(&b, nodes)
	b.WriteString("Relationship properties:\n")
	writeElements(&b, relProps)
	b.WriteString("The relationships:\n")
	for _, r := range rels {
		b.WriteString(r.String())
		b.WriteByte('\n')
	}

	return domain.StaticSchema{Text: strings.TrimRight(b.String(), "\n"), Rels: rels}
}

func writeElements(b *strings.Builder, elems []Element) {
	for _, e := range elems {
		parts := make([]string, len(e.Properties))
		for i, p := range e.Properties {
			parts[i] = p.Name + ": " + p.Type
		}
		fmt.Fprintf(b, "%s {%s}\n", e.Label, strings.Join(parts, ", "))
	}
}

func elementsFromRows(rows []map[string]any) []Element {
	out := make([]Element, 0, len(rows))
	for _, row := range rows {
		label, _ := row["label"].(string)
		if label == "" {
			continue
		}
		list, _ := row["properties"].([]any)
		props := make([]Property, 0, len(list))
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name, _ := m["name"].(string)
			typ, _ := m["type"].(string)
			props = append(props, Property{Name: name, Type: typ})
		}
		sort.Slice(props, func(i, j int) bool { return props[i].Name < props[j].Name })
		out = append(out, Element{Label: label, Properties: props})
	}
	return out
}

func relationshipsFromRows(rows []map[string]any) []domain.Relationship {
	out := make([]domain.Relationship, 0, len(rows))
	for _, row := range rows {
		src, _ := row["source"].(string)
		typ, _ := row["type"].(string)
		dst, _ := row["target"].(string)
		if src == "" || typ == "" || dst == "" {
			continue
		}
		out = append(out, domain.Relationship{Source: src, Type: typ, Target: dst})
	}
	return out
}
