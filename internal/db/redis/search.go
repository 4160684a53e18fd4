package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/cypherrag/internal/db"
)

// distanceAlias names the KNN distance in the reply.
const distanceAlias = "__score"

// SearchMulti pipelines every query into a single DoMulti round-trip.
func (s *Store) SearchMulti(ctx context.Context, queries []db.Query) ([]*db.SearchResult, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, 0, len(queries))
	for _, q := range queries {
		if err := q.Validate(); err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: err}
		}
		args, err := ftSearchArgs(q)
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: err}
		}
		cmds = append(cmds, s.b().Arbitrary("FT.SEARCH").Args(args...).Build())
	}

	out := make([]*db.SearchResult, 0, len(queries))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		raw, err := res.ToArray()
		if err != nil {
			if missingIndex(err) {
				err = fmt.Errorf("%w: %w", db.ErrIndexNotFound, err)
			}
			return nil, &db.Error{Op: db.OpSearch, Err: err}
		}
		_, withScores := queries[i].(*db.TextQuery)
		parsed, err := parseReply(raw, withScores)
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: err}
		}
		out = append(out, parsed)
	}
	return out, nil
}

// IndexExists probes the index with FT.INFO.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	err := s.do(ctx, s.b().Arbitrary("FT.INFO").Args(name).Build()).Error()
	switch {
	case err == nil:
		return true, nil
	case missingIndex(err):
		return false, nil
	default:
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
}

func missingIndex(err error) bool {
	return isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index")
}

func ftSearchArgs(q db.Query) ([]string, error) {
	switch q := q.(type) {
	case *db.KNNQuery:
		clause := fmt.Sprintf("*=>[KNN %d @%s $BLOB AS %s]", q.K, q.VectorField, distanceAlias)
		args := withReturn([]string{q.IndexName, clause}, append(append([]string{}, q.ReturnFields...), distanceAlias))
		return append(args,
			"SORTBY", distanceAlias,
			"LIMIT", "0", strconv.Itoa(q.K),
			"PARAMS", "2", "BLOB", float32Blob(q.Vector),
			"DIALECT", "2",
		), nil

	case *db.TextQuery:
		var alts []string
		for _, t := range q.Terms {
			if t = strings.TrimSpace(t); t != "" {
				alts = append(alts, escapeTerm(t))
			}
		}
		clause := "(" + strings.Join(alts, "|") + ")"
		if q.Field != "" {
			clause = "@" + q.Field + ":" + clause
		}
		args := withReturn([]string{q.IndexName, clause}, q.ReturnFields)
		args = append(args, "WITHSCORES", "LIMIT", "0", strconv.Itoa(q.TopK))
		if q.Language != "" {
			args = append(args, "LANGUAGE", q.Language)
		}
		return append(args, "DIALECT", "2"), nil
	}
	return nil, fmt.Errorf("unsupported query type %T", q)
}

func withReturn(args, fields []string) []string {
	if len(fields) == 0 {
		return args
	}
	return append(append(args, "RETURN", strconv.Itoa(len(fields))), fields...)
}

// parseReply reads [total, key, (score,) fields, ...]. The score column is
// present only for WITHSCORES replies; KNN replies carry the cosine distance
// as a field, which becomes a similarity in [0,1].
func parseReply(raw []rueidis.RedisMessage, withScores bool) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	stride := 2
	if withScores {
		stride = 3
	}
	res := &db.SearchResult{Total: int(total)}
	for i := 1; i+stride-1 < len(raw); i += stride {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fieldsMsg, err := raw[i+stride-1].ToArray()
		if err != nil {
			continue
		}
		entry := db.SearchEntry{Key: key, Fields: fieldMap(fieldsMsg)}

		if withScores {
			s, err := raw[i+1].ToString()
			if err != nil {
				continue
			}
			if entry.Score, err = strconv.ParseFloat(s, 64); err != nil {
				continue
			}
		} else if d, ok := entry.Fields[distanceAlias]; ok {
			if dist, err := strconv.ParseFloat(d, 64); err == nil {
				entry.Score = math.Max(0, 1-dist)
			}
			delete(entry.Fields, distanceAlias)
		}
		res.Entries = append(res.Entries, entry)
	}
	return res, nil
}

func fieldMap(msgs []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(msgs)/2)
	for j := 0; j+1 < len(msgs); j += 2 {
		k, kerr := msgs[j].ToString()
		v, verr := msgs[j+1].ToString()
		if kerr == nil && verr == nil {
			m[k] = v
		}
	}
	return m
}

// escapeTerm backslash-escapes the query syntax characters of RediSearch,
// leaving letters, digits, CJK and underscores intact.
func escapeTerm(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if strings.ContainsRune(`\'"@{}()|-~*[]!%^$<>=;+:.,/&# `, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func float32Blob(v []float32) string {
	buf := make([]byte, 0, 4*len(v))
	for _, f := range v {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return string(buf)
}
