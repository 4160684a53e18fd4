// Package direction rewrites relationship patterns whose direction contradicts
// the graph schema.
package direction

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cypherrag/internal/domain"
	"github.com/kailas-cloud/cypherrag/internal/logger"
	"github.com/kailas-cloud/cypherrag/internal/metrics"
)

var (
	// segmentPattern matches (left)<-[rel]-(right), (left)-[rel]->(right) and (left)-[rel]-(right).
	// Groups: 1 left node, 2 opening arrow, 3 relationship, 4 closing arrow, 5 right node.
	segmentPattern = regexp.MustCompile(`\(([^()]*)\)\s*(<?-)\s*(\[[^\[\]]*\])?\s*(->?)\s*\(([^()]*)\)`)
	nodePattern    = regexp.MustCompile(`\(([^()]*)\)`)
	propsPattern   = regexp.MustCompile(`\{.*\}`)
)

type arrow int

const (
	outgoing arrow = iota
	incoming
	undirected
)

// Service corrects relationship directions against the schema.
type Service struct {
	rels []domain.Relationship
}

// New creates a direction corrector for the schema's relationship triples.
func New(schema domain.SchemaProvider) *Service {
	return &Service{rels: slices.Clone(schema.Relationships())}
}

// Correct returns the draft unchanged when every relationship pattern agrees
// with the schema, a flipped copy when some patterns only exist reversed,
// and an empty draft when a pattern exists in neither direction.
func (s *Service) Correct(ctx context.Context, draft domain.QueryDraft) domain.QueryDraft {
	if draft.IsEmpty() {
		return draft
	}

	corrected, err := s.correct(draft.Text())
	if err != nil {
		metrics.CorrectionsTotal.WithLabelValues("direction_unresolvable").Inc()
		logger.FromContext(ctx).Warn("query rejected", zap.String("cypher", draft.Text()), zap.Error(err))
		return domain.NewQueryDraft("", domain.OriginDirectionCorrected)
	}
	if corrected == draft.Text() {
		return draft
	}

	metrics.CorrectionsTotal.WithLabelValues("direction").Inc()
	logger.FromContext(ctx).Info("relationship direction corrected",
		zap.String("from", draft.Text()), zap.String("to", corrected))
	return domain.NewQueryDraft(corrected, domain.OriginDirectionCorrected)
}

type edit struct {
	start, end int
	text       string
}

func (s *Service) correct(query string) (string, error) {
	masked := mask(query)
	vars := variableLabels(masked)

	var edits []edit
	for pos := 0; pos < len(masked); {
		m := segmentPattern.FindStringSubmatchIndex(masked[pos:])
		if m == nil {
			break
		}
		for i := range m {
			if m[i] >= 0 {
				m[i] += pos
			}
		}
		// the right node may open the next segment
		pos = m[10] - 1

		rel, relShape := "", ""
		if m[6] >= 0 {
			rel, relShape = query[m[6]:m[7]], masked[m[6]:m[7]]
		}
		if strings.Contains(relShape, "*") {
			continue
		}

		left := nodeLabels(masked[m[2]:m[3]], vars)
		right := nodeLabels(masked[m[10]:m[11]], vars)
		types := relationshipTypes(relShape)
		dir := direction(masked[m[4]:m[5]], masked[m[8]:m[9]])

		forward := s.allowed(left, types, right)
		backward := s.allowed(right, types, left)

		switch {
		case dir == undirected && (forward || backward):
		case dir == outgoing && forward, dir == incoming && backward:
		case dir == outgoing && backward:
			edits = append(edits, edit{start: m[4], end: m[9], text: "<-" + rel + "-"})
		case dir == incoming && forward:
			edits = append(edits, edit{start: m[4], end: m[9], text: "-" + rel + "->"})
		default:
			return "", fmt.Errorf("(%s)-[%s]-(%s): %w",
				strings.Join(left, "|"), strings.Join(types, "|"), strings.Join(right, "|"),
				domain.ErrDirectionUnresolvable)
		}
	}

	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		query = query[:e.start] + e.text + query[e.end:]
	}
	return query, nil
}

// mask blanks string literal contents and the brackets nested in property maps,
// keeping byte offsets, so patterns are matched on the query structure alone.
func mask(query string) string {
	b := []byte(query)
	var (
		open  []byte
		inMap int
		quote byte
	)
	for i := 0; i < len(b); i++ {
		c := b[i]
		if quote != 0 {
			switch {
			case c == '\\' && i+1 < len(b):
				b[i], b[i+1] = ' ', ' '
				i++
			case c == quote:
				quote = 0
			default:
				b[i] = ' '
			}
			continue
		}

		switch c {
		case '\'', '"':
			quote = c
		case '{':
			// a map opened inside a node or relationship pattern
			if inMap > 0 || (len(open) > 0 && open[len(open)-1] != '{') {
				inMap++
			}
			open = append(open, c)
		case '}':
			if inMap > 0 {
				inMap--
			}
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
		case '(', '[':
			if inMap > 0 {
				b[i] = ' '
				continue
			}
			open = append(open, c)
		case ')', ']':
			if inMap > 0 {
				b[i] = ' '
				continue
			}
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
		}
	}
	return string(b)
}

// allowed reports whether some schema triple matches. An empty side matches anything.
func (s *Service) allowed(from, types, to []string) bool {
	for _, r := range s.rels {
		if len(from) > 0 && !slices.Contains(from, r.Source) {
			continue
		}
		if len(to) > 0 && !slices.Contains(to, r.Target) {
			continue
		}
		if len(types) > 0 && !slices.Contains(types, r.Type) {
			continue
		}
		return true
	}
	return false
}

func direction(open, closing string) arrow {
	in := strings.HasPrefix(open, "<")
	out := strings.HasSuffix(closing, ">")
	switch {
	case out && !in:
		return outgoing
	case in && !out:
		return incoming
	default:
		return undirected
	}
}

// variableLabels maps every node variable to the labels declared for it anywhere in the query.
func variableLabels(query string) map[string][]string {
	out := map[string][]string{}
	for _, m := range nodePattern.FindAllStringSubmatch(query, -1) {
		variable, labels := splitNode(m[1])
		if variable == "" {
			continue
		}
		for _, l := range labels {
			if !slices.Contains(out[variable], l) {
				out[variable] = append(out[variable], l)
			}
		}
	}
	return out
}

// nodeLabels resolves a node pattern body to labels, through its variable when it has one.
func nodeLabels(body string, vars map[string][]string) []string {
	variable, labels := splitNode(body)
	if variable != "" {
		return vars[variable]
	}
	return labels
}

// splitNode parses "var:A:B {props}" into its variable and labels.
func splitNode(body string) (string, []string) {
	body = strings.TrimSpace(propsPattern.ReplaceAllString(body, ""))
	parts := strings.Split(body, ":")
	variable := cleanName(parts[0])

	var labels []string
	for _, p := range parts[1:] {
		for _, l := range strings.FieldsFunc(p, func(r rune) bool { return r == '|' || r == '&' }) {
			if l = cleanName(l); l != "" {
				labels = append(labels, l)
			}
		}
	}
	return variable, labels
}

// relationshipTypes parses "[r:A|B {props}]" into its type alternatives.
func relationshipTypes(rel string) []string {
	rel = strings.TrimSuffix(strings.TrimPrefix(rel, "["), "]")
	rel = propsPattern.ReplaceAllString(rel, "")
	_, spec, ok := strings.Cut(rel, ":")
	if !ok {
		return nil
	}

	var types []string
	for _, t := range strings.Split(spec, "|") {
		t = strings.TrimPrefix(strings.TrimSpace(t), ":")
		if t = cleanName(strings.TrimPrefix(t, "!")); t != "" {
			types = append(types, t)
		}
	}
	return types
}

func cleanName(s string) string {
	return strings.Trim(strings.TrimSpace(s), "`")
}
