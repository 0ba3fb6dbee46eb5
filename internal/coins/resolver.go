package coins

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pmezard/go-difflib/difflib"
)

const (
	// DefaultCutoff is the minimum similarity ratio for a name to match.
	DefaultCutoff = 0.6
	// DefaultMemoSize bounds the number of memoised queries.
	DefaultMemoSize = 256
)

// Match is the best directory name found for a query.
type Match struct {
	ID    string
	Name  string // lowercased directory name
	Score float64
}

// Resolver maps free-text coin names to directory ids using the
// Ratcliff/Obershelp similarity ratio over lowercased names.
type Resolver struct {
	names  []string   // unique lowercased names in first-seen order
	seqs   [][]string // names split into runes
	ids    map[string]string
	cutoff float64
	memo   *lru.Cache
}

// Option configures a Resolver.
type Option func(*resolverOptions)

type resolverOptions struct {
	cutoff   float64
	memoSize int
}

// WithCutoff sets the minimum accepted similarity ratio.
func WithCutoff(cutoff float64) Option {
	return func(o *resolverOptions) { o.cutoff = cutoff }
}

// WithMemoSize sets the memo capacity. Zero disables memoisation.
func WithMemoSize(size int) Option {
	return func(o *resolverOptions) { o.memoSize = size }
}

// NewResolver indexes dir. When several entries share a lowercased name the
// first one in directory order wins.
func NewResolver(dir Directory, opts ...Option) (*Resolver, error) {
	o := resolverOptions{cutoff: DefaultCutoff, memoSize: DefaultMemoSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cutoff <= 0 || o.cutoff > 1 {
		return nil, fmt.Errorf("cutoff must be in (0, 1], got %v", o.cutoff)
	}

	r := &Resolver{
		names:  make([]string, 0, len(dir)),
		seqs:   make([][]string, 0, len(dir)),
		ids:    make(map[string]string, len(dir)),
		cutoff: o.cutoff,
	}
	for _, e := range dir {
		name := strings.ToLower(e.Name)
		if _, seen := r.ids[name]; seen {
			continue
		}
		r.ids[name] = e.ID
		r.names = append(r.names, name)
		r.seqs = append(r.seqs, splitRunes(name))
	}

	if o.memoSize > 0 {
		memo, err := lru.New(o.memoSize)
		if err != nil {
			return nil, fmt.Errorf("create resolver memo: %w", err)
		}
		r.memo = memo
	}
	return r, nil
}

// Resolve returns the id of the closest directory entry, or false when no
// name reaches the cutoff.
func (r *Resolver) Resolve(query string) (string, bool) {
	m, ok := r.Match(query)
	return m.ID, ok
}

// Match returns the best match for query together with its score.
func (r *Resolver) Match(query string) (Match, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Match{}, false
	}

	if r.memo != nil {
		if v, ok := r.memo.Get(q); ok {
			res := v.(memoResult)
			return res.match, res.ok
		}
	}

	m, ok := r.best(q)
	if r.memo != nil {
		r.memo.Add(q, memoResult{match: m, ok: ok})
	}
	return m, ok
}

// Len reports the number of distinct names indexed.
func (r *Resolver) Len() int { return len(r.names) }

type memoResult struct {
	match Match
	ok    bool
}

func (r *Resolver) best(q string) (Match, bool) {
	sm := difflib.NewMatcher(nil, splitRunes(q))

	var best Match
	found := false
	for i, name := range r.names {
		sm.SetSeq1(r.seqs[i])
		if sm.RealQuickRatio() < r.cutoff || sm.QuickRatio() < r.cutoff {
			continue
		}
		score := sm.Ratio()
		if score < r.cutoff {
			continue
		}
		// equal scores go to the greater name
		if !found || score > best.Score || (score == best.Score && name > best.Name) {
			best = Match{ID: r.ids[name], Name: name, Score: score}
			found = true
		}
	}
	return best, found
}

func splitRunes(s string) []string {
	return strings.Split(s, "")
}
