package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tradekit/landed_cost_app/internal/core/domain"
)

// The dimension auto-mapper discovers which position of a statistical feed's
// compound key carries the product code. A position may hold either a literal
// code or a numeric index into a per-dimension value list; the mapping is
// feed-specific and sometimes inconsistent between rows, so it is chosen by
// maximizing recovered signal over a sample and then applied uniformly.
//
// Everything here is pure: no mutable shared state, trivially unit-testable.

var hs6Pattern = regexp.MustCompile(`^\d{6}$`)

var productishName = regexp.MustCompile(`(?i)(product|commodity|goods|hs|cn8?|sitc|code)`)

// NormalizeProductCode strips common separators and reports whether the result
// is a 6-digit product code.
func NormalizeProductCode(raw string) (string, bool) {
	cleaned := strings.NewReplacer(".", "", " ", "", "-", "").Replace(strings.TrimSpace(raw))
	if len(cleaned) > 6 {
		cleaned = cleaned[:6]
	}
	if hs6Pattern.MatchString(cleaned) {
		return cleaned, true
	}
	return "", false
}

// ChooseMapping scores every (key position, dimension) pair by the number of
// distinct 6-digit codes recoverable when the position is read as an index
// into that dimension's value list, and every position by the distinct codes
// recoverable reading it literally. The highest count wins, with a small
// tie-break bias toward dimensions whose declared name looks product-related.
// When no candidate yields any valid code, it falls back to literal-only mode
// on the best-scoring position.
func ChooseMapping(records []domain.StatRecord, dims []domain.StatDimension, sampleSize int) domain.DimensionMapping {
	sample := records
	if sampleSize > 0 && len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}

	keyWidth := 0
	for _, rec := range sample {
		if len(rec.KeyParts) > keyWidth {
			keyWidth = len(rec.KeyParts)
		}
	}

	type candidate struct {
		mapping  domain.DimensionMapping
		distinct int
		biased   bool
	}
	var best candidate

	consider := func(c candidate) {
		if c.distinct > best.distinct ||
			(c.distinct == best.distinct && c.distinct > 0 && c.biased && !best.biased) {
			best = c
		}
	}

	for p := 0; p < keyWidth; p++ {
		// Literal mode: the position holds the code itself.
		literalSeen := make(map[string]struct{})
		for _, rec := range sample {
			if p >= len(rec.KeyParts) {
				continue
			}
			if code, ok := NormalizeProductCode(rec.KeyParts[p]); ok {
				literalSeen[code] = struct{}{}
			}
		}
		consider(candidate{
			mapping:  domain.DimensionMapping{Position: p, DimensionIndex: -1, Literal: true},
			distinct: len(literalSeen),
		})

		// Indexed mode: the position is an index into dimension j's value list.
		for j, dim := range dims {
			indexedSeen := make(map[string]struct{})
			for _, rec := range sample {
				if p >= len(rec.KeyParts) {
					continue
				}
				idx, err := strconv.Atoi(strings.TrimSpace(rec.KeyParts[p]))
				if err != nil || idx < 0 || idx >= len(dim.Values) {
					continue
				}
				if code, ok := NormalizeProductCode(dim.Values[idx]); ok {
					indexedSeen[code] = struct{}{}
				}
			}
			consider(candidate{
				mapping:  domain.DimensionMapping{Position: p, DimensionIndex: j, Literal: false},
				distinct: len(indexedSeen),
				biased:   productishName.MatchString(dim.Name),
			})
		}
	}

	if best.distinct == 0 {
		// Nothing recovered anywhere: literal-only on the best-scoring
		// position, which degenerates to position zero.
		return domain.DimensionMapping{Position: best.mapping.Position, DimensionIndex: -1, Literal: true}
	}
	return best.mapping
}

// ResolveCode applies a mapping to one record, returning the product code.
func ResolveCode(rec domain.StatRecord, dims []domain.StatDimension, mapping domain.DimensionMapping) (string, bool) {
	if mapping.Position >= len(rec.KeyParts) {
		return "", false
	}
	raw := rec.KeyParts[mapping.Position]

	if !mapping.Literal && mapping.DimensionIndex >= 0 && mapping.DimensionIndex < len(dims) {
		if idx, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			values := dims[mapping.DimensionIndex].Values
			if idx >= 0 && idx < len(values) {
				if code, ok := NormalizeProductCode(values[idx]); ok {
					return code, true
				}
			}
		}
		// Inconsistent row: fall through and try the literal reading, since
		// feeds are known to mix literals and indexes within one position.
	}

	return NormalizeProductCode(raw)
}
