// Package extraction classifies free-text final-analysis documents as BUY,
// SELL or HOLD. Classification is a pure, total function: any input string,
// including empty or adversarial text, resolves to exactly one value, so
// report display never degrades to an error state and the consistency
// auditor can use it as ground truth.
//
// The cascade is an ordered list of named tiers, first match wins:
//
//  1. summary-statement: explicit phrasing anchored on "summary",
//     "recommendation is", "final recommendation" or "conclusion" anywhere
//     in the document; the last such statement in document order wins,
//     because these texts explore alternatives early and commit at the end.
//  2. tail-keyword: a standalone BUY/SELL/HOLD token inside the trailing
//     window of the document.
//  3. contextual-count: decision tokens adjacent to decision-indicating
//     words, counted across the whole document.
//  4. sentiment: a tally of positive versus negative indicator words.
//
// Anything that falls through every tier is a HOLD.
package extraction

import (
	"regexp"
	"strings"

	"github.com/tradecouncil/tradecouncil/internal/models"
)

// tailWindow bounds tier 2 to the closing slice of the document, where final
// calls are actually written. Value carried over from the production system
// this replaces.
const tailWindow = 500

// DefaultTierName is reported by ClassifyWithTier when no tier matched.
const DefaultTierName = "default-hold"

// Tier is one pure step of the cascade. Classify returns false when the tier
// has no opinion; evaluation then falls through to the next tier.
type Tier struct {
	Name     string
	Classify func(upper string) (models.Recommendation, bool)
}

// tiers is the cascade in priority order. Order is a correctness property:
// a document containing both a stray bare "sell" and a later explicit
// "recommendation is to hold" must resolve through tier 1, never tier 2.
var tiers = []Tier{
	{Name: "summary-statement", Classify: classifySummaryStatement},
	{Name: "tail-keyword", Classify: classifyTailKeyword},
	{Name: "contextual-count", Classify: classifyContextualCount},
	{Name: "sentiment", Classify: classifySentiment},
}

// Tiers returns the cascade in evaluation order.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// Classify maps the final-analysis text to a recommendation. Empty or
// whitespace-only input is a HOLD by definition: many legitimate sessions
// simply have no opinion yet.
func Classify(text string) models.Recommendation {
	rec, _ := ClassifyWithTier(text)
	return rec
}

// ClassifyWithTier also reports which tier produced the decision, for
// logging and audit diagnostics.
func ClassifyWithTier(text string) (models.Recommendation, string) {
	if strings.TrimSpace(text) == "" {
		return models.RecommendationHold, DefaultTierName
	}

	upper := strings.ToUpper(text)
	for _, tier := range tiers {
		if rec, ok := tier.Classify(upper); ok {
			return rec, tier.Name
		}
	}
	return models.RecommendationHold, DefaultTierName
}

// Explicit statement patterns for tier 1. Each captures the word following
// the anchor phrase; captures that are not decision tokens are discarded, so
// loose trailing classes are safe. Emphasis markers around the token are
// tolerated.
var summaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\*\*IN\s+SUMMARY[:\s]*\*\*[^*]*\*\*([A-Z]+)\*\*`),
	regexp.MustCompile(`(?:IN\s+)?SUMMARY[,:\s*]*([A-Z]+)`),
	regexp.MustCompile(`RECOMMENDATION\s+IS(?:\s+TO)?[,:\s*]*([A-Z]+)`),
	regexp.MustCompile(`FINAL\s+RECOMMENDATION[,:\s*]*([A-Z]+)`),
	regexp.MustCompile(`CONCLUSION[,:\s*]*([A-Z]+)`),
}

func classifySummaryStatement(upper string) (models.Recommendation, bool) {
	best := -1
	var rec models.Recommendation

	for _, pattern := range summaryPatterns {
		for _, m := range pattern.FindAllStringSubmatchIndex(upper, -1) {
			word := upper[m[2]:m[3]]
			candidate := models.Recommendation(word)
			if !candidate.Valid() {
				continue
			}
			if m[0] > best {
				best = m[0]
				rec = candidate
			}
		}
	}

	if best < 0 {
		return "", false
	}
	return rec, true
}

var decisionToken = regexp.MustCompile(`BUY|SELL|HOLD`)

func classifyTailKeyword(upper string) (models.Recommendation, bool) {
	tail := upper
	if len(tail) > tailWindow {
		tail = tail[len(tail)-tailWindow:]
	}

	var rec models.Recommendation
	found := false
	for _, m := range decisionToken.FindAllStringIndex(tail, -1) {
		if !standaloneToken(tail, m[0], m[1]) {
			continue
		}
		// Later statements override earlier ones.
		rec = models.Recommendation(tail[m[0]:m[1]])
		found = true
	}
	return rec, found
}

// standaloneToken rejects matches embedded in larger words or hyphenated
// compounds: "seller", "shareholder", "sell-off".
func standaloneToken(s string, start, end int) bool {
	if start > 0 && isWordByte(s[start-1]) {
		return false
	}
	if end < len(s) && isWordByte(s[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return b == '-' || b == '_' ||
		(b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// Contextual patterns for tier 3: a decision token within the same sentence
// as a decision-indicating word.
var (
	contextualBuy  = regexp.MustCompile(`(?:RECOMMEND|SUGGESTION|DECISION|ACTION)[^.\n]*?\bBUY\b`)
	contextualSell = regexp.MustCompile(`(?:RECOMMEND|SUGGESTION|DECISION|ACTION)[^.\n]*?\bSELL\b`)
	contextualHold = regexp.MustCompile(`(?:RECOMMEND|SUGGESTION|DECISION|ACTION)[^.\n]*?\bHOLD\b`)
)

func classifyContextualCount(upper string) (models.Recommendation, bool) {
	buy := len(contextualBuy.FindAllString(upper, -1))
	sell := len(contextualSell.FindAllString(upper, -1))
	hold := len(contextualHold.FindAllString(upper, -1))

	switch {
	case hold > buy && hold > sell:
		return models.RecommendationHold, true
	case buy > sell:
		return models.RecommendationBuy, true
	case sell > buy:
		return models.RecommendationSell, true
	}
	// All zero, or a tie: no opinion.
	return "", false
}

var (
	positiveIndicators = regexp.MustCompile(`\b(?:BULLISH|POSITIVE|UPWARD|LONG|INVEST|PURCHASE)\b`)
	negativeIndicators = regexp.MustCompile(`\b(?:BEARISH|NEGATIVE|DOWNWARD|SHORT|AVOID|DECLINE)\b`)
)

func classifySentiment(upper string) (models.Recommendation, bool) {
	positive := len(positiveIndicators.FindAllString(upper, -1))
	negative := len(negativeIndicators.FindAllString(upper, -1))

	switch {
	case positive > negative:
		return models.RecommendationBuy, true
	case negative > positive:
		return models.RecommendationSell, true
	}
	return "", false
}
