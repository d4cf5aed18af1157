// Package highlight produces a single markdown snippet per search hit in
// one of two modes: a fast windowed term-density scan, or an enhanced mode
// that reranks candidate passages by a blended lexical+semantic score. The
// blend mirrors the weighted-combination-then-select shape of MMR
// reranking, generalized from "relevance vs diversity" to "semantic vs
// lexical" similarity.
package highlight

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/tmoreau/marginalia/internal/embed"
	"github.com/tmoreau/marginalia/internal/model"
)

// Enhanced-mode blend weights: alpha weights semantic similarity, beta
// weights lexical (jaccard) overlap.
const (
	alpha = 0.7
	beta  = 0.3

	windowSize = 200
	minPassage = 150
	maxPassage = 300
)

// Highlighter produces snippets for search hits.
type Highlighter struct {
	Embedder embed.Embedder
}

func New(embedder embed.Embedder) *Highlighter {
	return &Highlighter{Embedder: embedder}
}

// Tokenize splits q into significant terms: unicode-aware, lower-cased,
// length >= 2.
func Tokenize(q string) []string {
	var terms []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			t := cur.String()
			if len([]rune(t)) >= 2 {
				terms = append(terms, t)
			}
			cur.Reset()
		}
	}
	for _, r := range q {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()
	return terms
}

var sentenceSplit = regexp.MustCompile(`[^.!?。！？\n]*[.!?。！？]+|[^.!?。！？\n]+$`)

func splitSentences(content string) []string {
	matches := sentenceSplit.FindAllString(content, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

// FastExcerpt is the fast snippet mode: pick the sentence with the most
// query-term hits, extend it with the following sentences until it is at
// least windowSize bytes long (a long sentence is not shortened), and wrap
// the leftmost matching token in <mark>.
func FastExcerpt(content, q string) string {
	terms := Tokenize(q)
	if len(terms) == 0 || content == "" {
		return firstN(content, windowSize)
	}

	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return firstN(content, windowSize)
	}

	bestIdx, bestScore := -1, -1
	for i, s := range sentences {
		score := countTermHits(strings.ToLower(s), terms)
		if score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	if bestScore <= 0 {
		return firstN(content, windowSize)
	}

	window := sentences[bestIdx]
	for len(window) < windowSize && bestIdx+1 < len(sentences) {
		bestIdx++
		window += " " + sentences[bestIdx]
	}

	return markFirst(window, terms)
}

func countTermHits(lowerText string, terms []string) int {
	n := 0
	for _, t := range terms {
		n += strings.Count(lowerText, t)
	}
	return n
}

func firstN(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// markFirst wraps the leftmost occurrence (case-insensitive search,
// original case preserved) of any term with <mark>.
func markFirst(text string, terms []string) string {
	lower := strings.ToLower(text)
	bestPos := -1
	bestLen := 0
	for _, t := range terms {
		if idx := strings.Index(lower, t); idx >= 0 && (bestPos == -1 || idx < bestPos) {
			bestPos, bestLen = idx, len(t)
		}
	}
	if bestPos == -1 {
		return text
	}
	return text[:bestPos] + "<mark>" + text[bestPos:bestPos+bestLen] + "</mark>" + text[bestPos+bestLen:]
}

// passages splits content into candidate passages at paragraph (blank line)
// and sentence boundaries. A paragraph of at most maxPassage bytes is kept
// whole, even when shorter than minPassage; a longer one is packed sentence
// by sentence into passages of at least minPassage bytes, each cut to
// maxPassage runes, and its final remainder may be shorter than minPassage.
func passages(content string) []string {
	paras := strings.Split(content, "\n\n")
	var out []string
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(p) <= maxPassage {
			out = append(out, p)
			continue
		}
		// Split an over-long paragraph at sentence boundaries, packing
		// sentences until the passage reaches minPassage.
		sentences := splitSentences(p)
		var cur strings.Builder
		for _, s := range sentences {
			cur.WriteString(s)
			cur.WriteString(" ")
			if cur.Len() >= minPassage {
				out = append(out, firstN(strings.TrimSpace(cur.String()), maxPassage))
				cur.Reset()
			}
		}
		if cur.Len() > 0 {
			out = append(out, strings.TrimSpace(cur.String()))
		}
	}
	return out
}

func jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for t := range setA {
		if setB[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func toSet(terms []string) map[string]bool {
	m := make(map[string]bool, len(terms))
	for _, t := range terms {
		m[t] = true
	}
	return m
}

func cosine(a, b model.Vector) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// SemanticSnippetRerank is the enhanced snippet mode: split into passages,
// embed each, score by alpha*cosine + beta*jaccard, select the winner, and
// mark the first exact query-term match if any.
func (h *Highlighter) SemanticSnippetRerank(ctx context.Context, content, q string, queryVector model.Vector) string {
	cands := passages(content)
	if len(cands) == 0 {
		return firstN(content, windowSize)
	}

	terms := Tokenize(q)

	type scored struct {
		passage string
		score   float64
	}
	scoredPassages := make([]scored, 0, len(cands))

	for _, p := range cands {
		var sem float64
		if h.Embedder != nil && queryVector != nil {
			if pv, err := h.Embedder.Embed(ctx, p, ""); err == nil && pv != nil {
				sem = cosine(queryVector, pv)
			}
		}
		lex := jaccard(terms, Tokenize(p))
		scoredPassages = append(scoredPassages, scored{p, alpha*sem + beta*lex})
	}

	sort.Slice(scoredPassages, func(i, j int) bool { return scoredPassages[i].score > scoredPassages[j].score })
	winner := scoredPassages[0].passage

	if containsAnyTerm(winner, terms) {
		return markFirst(winner, terms)
	}
	return winner
}

func containsAnyTerm(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
