package models

// Recommendation is the classified trading call derived from a session's
// final analysis. It is never authored directly: the store computes it from
// the final-analysis text and the auditor keeps the two in sync.
type Recommendation string

const (
	RecommendationBuy  Recommendation = "BUY"
	RecommendationSell Recommendation = "SELL"
	RecommendationHold Recommendation = "HOLD"
)

// Valid reports whether the value is one of BUY, SELL or HOLD.
func (r Recommendation) Valid() bool {
	switch r {
	case RecommendationBuy, RecommendationSell, RecommendationHold:
		return true
	}
	return false
}
