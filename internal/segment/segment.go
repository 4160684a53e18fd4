// Package segment builds lexical queries from Chinese-aware word segmentation.
package segment

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-ego/gse"
)

// Tokenizer splits text into words.
type Tokenizer interface {
	Cut(text string) []string
}

// Gse is a dictionary-based Tokenizer with HMM for unknown words.
type Gse struct {
	seg gse.Segmenter
}

// NewGse loads the embedded default dictionaries plus any extra dictionary files.
// Dictionary loading is silent; callers log it.
func NewGse(dictFiles ...string) (*Gse, error) {
	g := &Gse{}
	g.seg.SkipLog = true
	if err := g.seg.LoadDict(dictFiles...); err != nil {
		return nil, fmt.Errorf("load gse dictionaries: %w", err)
	}
	return g, nil
}

// Cut segments text in precise mode. gse folds Latin letters to lower case,
// so every token is mapped back onto text to keep its original spelling.
func (g *Gse) Cut(text string) []string {
	src := []rune(text)
	toks := g.seg.Cut(text, true)
	out := make([]string, 0, len(toks))
	pos := 0
	for _, tok := range toks {
		n := utf8.RuneCountInString(tok)
		at := indexFold(src, pos, tok, n)
		if at < 0 {
			out = append(out, tok)
			continue
		}
		out = append(out, string(src[at:at+n]))
		pos = at + n
	}
	return out
}

// indexFold finds tok, n runes long, in src at or after from, ignoring case.
func indexFold(src []rune, from int, tok string, n int) int {
	for i := from; i+n <= len(src); i++ {
		if strings.EqualFold(string(src[i:i+n]), tok) {
			return i
		}
	}
	return -1
}

// Or joins the words of a lexical query.
const Or = " OR "

var wordPattern = regexp.MustCompile(`^[A-Za-z0-9\p{Han}]+$`)

// LexicalQuery joins the alphanumeric and Han tokens of text with " OR ".
// Punctuation, whitespace and mixed tokens are dropped; the result may be empty.
func LexicalQuery(t Tokenizer, text string) string {
	var words []string
	for _, tok := range t.Cut(text) {
		tok = strings.TrimSpace(tok)
		if wordPattern.MatchString(tok) {
			words = append(words, tok)
		}
	}
	return strings.Join(words, Or)
}

// Words splits a lexical query back into its words.
func Words(lexical string) []string {
	if lexical == "" {
		return nil
	}
	return strings.Split(lexical, Or)
}
