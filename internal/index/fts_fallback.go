//go:build !sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/models"
)

// Without FTS5 the notes table is the index: nothing extra to maintain.
func initFTS(_ *sql.DB) error { return nil }

func ftsUpsert(_ context.Context, _ dbtx, _ int64, _, _ string) error { return nil }

func ftsDelete(_ context.Context, _ dbtx, _ int64) error { return nil }

// BM25 parameters, the same defaults FTS5 uses.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Search scores every live note in Go with BM25 (negated, so lower is
// better, as with FTS5). It understands "quoted phrases", a trailing * for
// prefix terms, and the FTS5 operators NOT, AND (also implicit), and OR, in
// that order of precedence.
func (db *DB) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	opts = opts.withDefaults()

	pq, err := parseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w: %v", apperr.ErrInvalid, err)
	}
	clauses := pq.clauses
	if len(clauses) == 0 {
		return []SearchResult{}, nil
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE is_deleted = 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	notes, err := collectNotes(rows)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}

	docs := make([]*scoredDoc, 0, len(notes))
	var totalLen int
	for _, n := range notes {
		d := newScoredDoc(n, opts.Field)
		totalLen += d.length()
		docs = append(docs, d)
	}
	if len(docs) == 0 {
		return []SearchResult{}, nil
	}
	avgLen := float64(totalLen) / float64(len(docs))

	// Document frequency per clause over the whole live corpus.
	df := make([]int, len(clauses))
	for _, d := range docs {
		d.match(clauses)
		for i, tf := range d.tf {
			if tf > 0 {
				df[i]++
			}
		}
	}

	var hits []*scoredDoc
	for _, d := range docs {
		if !d.matches(pq.groups) {
			continue
		}
		d.score = bm25(d, df, len(docs), avgLen)
		hits = append(hits, d)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score < hits[j].score })
	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}

	out := make([]SearchResult, 0, len(hits))
	for _, d := range hits {
		out = append(out, SearchResult{
			Note:               d.note,
			HighlightedTitle:   d.title.highlight(),
			HighlightedSnippet: d.content.snippet(opts.SnippetTokens),
			Score:              d.score,
		})
	}
	return out, nil
}

func bm25(d *scoredDoc, df []int, n int, avgLen float64) float64 {
	var sum float64
	dl := float64(d.length())
	for i, tf := range d.tf {
		if tf == 0 || d.negated[i] {
			continue
		}
		idf := math.Log((float64(n) - float64(df[i]) + 0.5) / (float64(df[i]) + 0.5))
		if idf <= 0 {
			idf = 1e-6
		}
		f := float64(tf)
		sum += idf * (f * (bm25K1 + 1)) / (f + bm25K1*(1-bm25B+bm25B*dl/avgLen))
	}
	return -sum
}

// clause is a phrase of one or more folded terms; prefix applies to the last term.
type clause struct {
	terms  []string
	prefix bool
	negate bool
}

// group is one AND-ed branch of an OR: indexes into parsedQuery.clauses.
type group struct {
	must, not []int
}

type parsedQuery struct {
	clauses []clause
	groups  []group
}

func parseQuery(q string) (parsedQuery, error) {
	var (
		pq      parsedQuery
		cur     group
		pending string // operator waiting for its right operand
	)
	add := func(text string, prefix bool) {
		var terms []string
		for _, t := range tokenize(text) {
			terms = append(terms, t.folded)
		}
		if len(terms) == 0 {
			return
		}
		c := clause{terms: terms, prefix: prefix, negate: pending == "NOT"}
		pq.clauses = append(pq.clauses, c)
		if c.negate {
			cur.not = append(cur.not, len(pq.clauses)-1)
		} else {
			cur.must = append(cur.must, len(pq.clauses)-1)
		}
		pending = ""
	}
	operator := func(op string) error {
		if pending != "" || len(cur.must) == 0 {
			return fmt.Errorf("unexpected %s in %q", op, q)
		}
		if op == "OR" {
			pq.groups = append(pq.groups, cur)
			cur = group{}
		}
		pending = op
		return nil
	}

	for i := 0; i < len(q); {
		switch c := q[i]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '"':
			end := strings.IndexByte(q[i+1:], '"')
			if end < 0 {
				return parsedQuery{}, fmt.Errorf("unterminated string in %q", q)
			}
			phrase := q[i+1 : i+1+end]
			i += end + 2
			prefix := i < len(q) && q[i] == '*'
			if prefix {
				i++
			}
			add(phrase, prefix)
		default:
			j := i
			for j < len(q) && !strings.ContainsRune(" \t\n\r\"", rune(q[j])) {
				j++
			}
			word := q[i:j]
			i = j
			switch word {
			case "AND", "OR", "NOT":
				if err := operator(word); err != nil {
					return parsedQuery{}, err
				}
				continue
			}
			prefix := strings.HasSuffix(word, "*")
			add(strings.TrimSuffix(word, "*"), prefix)
		}
	}
	if pending != "" {
		return parsedQuery{}, fmt.Errorf("%s without right operand in %q", pending, q)
	}
	if len(cur.must) > 0 {
		pq.groups = append(pq.groups, cur)
	}
	return pq, nil
}

type token struct {
	folded     string
	start, end int
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Mn, r)
}

// tokenize splits s into unicode61-style tokens, lowercased with diacritics removed.
func tokenize(s string) []token {
	var (
		out   []token
		start = -1
	)
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	emit := func(end int) {
		folded, _, err := transform.String(fold, strings.ToLower(s[start:end]))
		if err != nil {
			folded = strings.ToLower(s[start:end])
		}
		out = append(out, token{folded: folded, start: start, end: end})
		start = -1
	}
	for i, r := range s {
		if isTokenRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			emit(i)
		}
	}
	if start >= 0 {
		emit(len(s))
	}
	return out
}

// field is one tokenized column plus the token positions any clause hit.
type field struct {
	text    string
	tokens  []token
	marked  map[int]bool
	enabled bool
}

func newField(text string, enabled bool) *field {
	return &field{text: text, tokens: tokenize(text), marked: make(map[int]bool), enabled: enabled}
}

// occurrences counts phrase hits of c in the field, marking matched tokens
// unless c is negated.
func (f *field) occurrences(c clause) int {
	n := 0
	for i := 0; i+len(c.terms) <= len(f.tokens); i++ {
		ok := true
		for k, term := range c.terms {
			tok := f.tokens[i+k].folded
			last := k == len(c.terms)-1
			if last && c.prefix {
				ok = strings.HasPrefix(tok, term)
			} else {
				ok = tok == term
			}
			if !ok {
				break
			}
		}
		if ok {
			n++
			if c.negate {
				continue
			}
			for k := range c.terms {
				f.marked[i+k] = true
			}
		}
	}
	return n
}

func (f *field) render(from, to, lo, hi int) string {
	var b strings.Builder
	pos := lo
	for i := from; i < to; i++ {
		t := f.tokens[i]
		b.WriteString(f.text[pos:t.start])
		if f.marked[i] && (i == from || !f.marked[i-1]) {
			b.WriteString(MarkOpen)
		}
		b.WriteString(f.text[t.start:t.end])
		if f.marked[i] && (i == to-1 || !f.marked[i+1]) {
			b.WriteString(MarkClose)
		}
		pos = t.end
	}
	b.WriteString(f.text[pos:hi])
	return b.String()
}

func (f *field) highlight() string {
	return f.render(0, len(f.tokens), 0, len(f.text))
}

// snippet returns up to n tokens around the densest cluster of matches.
func (f *field) snippet(n int) string {
	if len(f.tokens) <= n {
		return f.highlight()
	}
	best, bestCount, count := 0, -1, 0
	for i := range f.tokens {
		if f.marked[i] {
			count++
		}
		if i >= n && f.marked[i-n] {
			count--
		}
		if i >= n-1 && count > bestCount {
			best, bestCount = i-n+1, count
		}
	}
	from, to := best, best+n
	lo, hi := f.tokens[from].start, f.tokens[to-1].end
	prefix, suffix := Ellipsis, Ellipsis
	if from == 0 {
		lo, prefix = 0, ""
	}
	if to == len(f.tokens) {
		hi, suffix = len(f.text), ""
	}
	return prefix + f.render(from, to, lo, hi) + suffix
}

type scoredDoc struct {
	note           models.Note
	title, content *field
	tf             []int
	negated        []bool
	score          float64
}

func newScoredDoc(n models.Note, which Field) *scoredDoc {
	return &scoredDoc{
		note:    n,
		title:   newField(n.Title, which != FieldContent),
		content: newField(n.Content, which != FieldTitle),
	}
}

func (d *scoredDoc) length() int {
	var l int
	if d.title.enabled {
		l += len(d.title.tokens)
	}
	if d.content.enabled {
		l += len(d.content.tokens)
	}
	return l
}

func (d *scoredDoc) match(clauses []clause) {
	d.tf = make([]int, len(clauses))
	d.negated = make([]bool, len(clauses))
	for i, c := range clauses {
		d.negated[i] = c.negate
		if d.title.enabled {
			d.tf[i] += d.title.occurrences(c)
		}
		if d.content.enabled {
			d.tf[i] += d.content.occurrences(c)
		}
	}
}

// matches reports whether any group has all its must clauses present and
// none of its not clauses.
func (d *scoredDoc) matches(groups []group) bool {
	for _, g := range groups {
		if d.satisfies(g) {
			return true
		}
	}
	return false
}

func (d *scoredDoc) satisfies(g group) bool {
	for _, i := range g.must {
		if d.tf[i] == 0 {
			return false
		}
	}
	for _, i := range g.not {
		if d.tf[i] > 0 {
			return false
		}
	}
	return true
}
