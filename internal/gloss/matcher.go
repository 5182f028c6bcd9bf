// Package gloss implements fuzzy matching of unknown gloss tokens against the
// pose dictionary vocabulary, using Double Metaphone phonetic encoding
// combined with Jaro-Winkler string similarity for ranked candidate selection.
//
// The gloss translator occasionally produces tokens that are near-misses of
// dictionary entries (singular/plural variants, model misspellings). Rather
// than silently dropping the sign, the renderer consults a Matcher before
// skipping:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     the token and for each vocabulary entry. Entries sharing a code become
//     phonetic candidates.
//  2. Jaro-Winkler ranking: among phonetic candidates, the entry with the
//     highest Jaro-Winkler similarity is selected, provided its score exceeds
//     the phonetic threshold. When no phonetic candidate exists, a secondary
//     pass tests pure Jaro-Winkler similarity against all entries with a
//     higher fuzzy threshold.
//
// All methods are safe for concurrent use — the Matcher is read-only after
// construction.
package gloss

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched entry to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// Matcher ranks vocabulary entries by phonetic and string similarity.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a new [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match finds the vocabulary entry most similar to token. When matched is
// false, corrected equals token unchanged and confidence is 0. Comparison is
// case-insensitive; the returned entry keeps the vocabulary's casing.
func (m *Matcher) Match(token string, vocabulary []string) (corrected string, confidence float64, matched bool) {
	if len(vocabulary) == 0 || strings.TrimSpace(token) == "" {
		return token, 0, false
	}

	tokenLower := strings.ToLower(strings.TrimSpace(token))
	tokenPrimary, tokenSecondary := matchr.DoubleMetaphone(tokenLower)

	type candidate struct {
		entry    string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, entry := range vocabulary {
		entryLower := strings.ToLower(strings.TrimSpace(entry))
		if entryLower == "" {
			continue
		}

		p, s := matchr.DoubleMetaphone(entryLower)
		phoneticMatch := codesOverlap(tokenPrimary, tokenSecondary, p, s)
		jwScore := matchr.JaroWinkler(tokenLower, entryLower, false)

		if phoneticMatch {
			if jwScore >= m.phoneticThreshold {
				if !best.phonetic || jwScore > best.score {
					best = candidate{entry: entry, score: jwScore, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if jwScore >= m.fuzzyThreshold && jwScore > best.score {
				best = candidate{entry: entry, score: jwScore, phonetic: false}
			}
		}
	}

	if best.entry != "" {
		return best.entry, best.score, true
	}
	return token, 0, false
}

// codesOverlap reports whether the two Double Metaphone code pairs share at
// least one non-empty code.
func codesOverlap(aPrimary, aSecondary, bPrimary, bSecondary string) bool {
	for _, a := range [...]string{aPrimary, aSecondary} {
		if a == "" {
			continue
		}
		if a == bPrimary || (bSecondary != "" && a == bSecondary) {
			return true
		}
	}
	return false
}
