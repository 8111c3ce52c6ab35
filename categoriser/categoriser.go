// Package categoriser implements Categoriser (spec §4 Glossary): a
// function from text to a ranked list of category labels. The actual
// n-gram language-identification algorithm is out of this module's
// scope (spec.md Non-goals) — NGram below is a minimal, from-scratch
// trigram-profile classifier sufficient to exercise the Mapping pipeline
// end to end and satisfy the testable properties around it (empty text
// yields an empty result; output is always a subset of trained labels).
package categoriser

import (
	"math"
	"sort"
	"strings"
)

// Categoriser maps a piece of text to zero or more category labels,
// ranked best match first.
type Categoriser interface {
	Categorise(text string) []string
}

// profile is a label's trigram frequency distribution, normalised to
// sum to 1; Categorise compares profiles by cosine similarity.
type profile map[string]float64

// NGram is a trigram-overlap categoriser: each label is trained on
// reference text, and Categorise ranks labels by trigram-profile
// similarity to the input (cosine similarity, descending).
type NGram struct {
	labels   []string
	profiles map[string]profile
	// minScore discards labels below this similarity; labels/scores
	// below it are never returned.
	minScore float64
}

// New creates an empty categoriser. Use Train to add labels.
func New() *NGram {
	return &NGram{profiles: make(map[string]profile), minScore: 0.01}
}

// Train adds or replaces a label's reference profile, built from one or
// more example texts in that category.
func (n *NGram) Train(label string, examples ...string) {
	if _, exists := n.profiles[label]; !exists {
		n.labels = append(n.labels, label)
	}
	var joined strings.Builder
	for i, ex := range examples {
		if i > 0 {
			joined.WriteByte(' ')
		}
		joined.WriteString(ex)
	}
	n.profiles[label] = buildProfile(joined.String())
}

func buildProfile(text string) profile {
	text = strings.ToLower(text)
	p := make(profile)
	runes := []rune(text)
	if len(runes) < 3 {
		if len(runes) > 0 {
			p[string(runes)] = 1
		}
		return p
	}
	var total float64
	for i := 0; i+3 <= len(runes); i++ {
		gram := string(runes[i : i+3])
		p[gram]++
		total++
	}
	if total > 0 {
		for k := range p {
			p[k] /= total
		}
	}
	return p
}

func cosineSimilarity(a, b profile) float64 {
	var dot, normA, normB float64
	for gram, av := range a {
		dot += av * b[gram]
		normA += av * av
	}
	for _, bv := range b {
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Categorise returns every trained label whose profile similarity to
// text is at least minScore, ranked most-similar first. Empty text always
// yields an empty result.
func (n *NGram) Categorise(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}
	target := buildProfile(text)

	type scored struct {
		label string
		score float64
	}
	results := make([]scored, 0, len(n.labels))
	for _, label := range n.labels {
		s := cosineSimilarity(target, n.profiles[label])
		if s >= n.minScore {
			results = append(results, scored{label, s})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].label < results[j].label
	})

	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.label
	}
	return out
}
