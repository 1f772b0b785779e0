package scoring

import (
	"github.com/okian/walletmatch/internal/domain/model"
	"github.com/okian/walletmatch/internal/domain/similarity"
)

// MaxScore is the score of two indistinguishable profiles.
const MaxScore = 100

// Scorer computes the matching score of two profiles.
type Scorer interface {
	Match(p1, p2 *model.Profile) float64
}

// Breakdown holds the per-feature similarities of a pair, each in [0, 1].
type Breakdown [featureCount]float64

// Get returns the similarity of feature f, or 0 for an unknown feature.
func (b Breakdown) Get(f Feature) float64 {
	if f < 0 || f >= featureCount {
		return 0
	}
	return b[f]
}

// Matcher implements Scorer over the twelve profile features.
//
// Every term is symmetric in its arguments and the weight table is fixed,
// so Match(p1, p2) == Match(p2, p1) exactly. The inference engine relies on
// that to score each unordered pair once; an asymmetric term would break
// its dedup silently.
type Matcher struct {
	weights Weights
}

// NewMatcher creates a matcher with the default weight table.
func NewMatcher() *Matcher {
	return &Matcher{weights: DefaultWeights()}
}

// NewWeightedMatcher creates a matcher with weight table w. The table must
// pass Weights.Validate.
func NewWeightedMatcher(w Weights) (*Matcher, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Matcher{weights: w}, nil
}

// Weights returns the weight table in use.
func (m *Matcher) Weights() Weights {
	return m.weights
}

// Breakdown computes every feature similarity of the pair.
func (m *Matcher) Breakdown(p1, p2 *model.Profile) Breakdown {
	var b Breakdown
	b[FeatureBalance] = similarity.Scalar(p1.Balance, p2.Balance)
	b[FeatureTxCount] = similarity.Scalar(p1.TotalTxCount, p2.TotalTxCount)
	b[FeatureAvgTx] = similarity.Scalar(p1.AvgTxPerDay, p2.AvgTxPerDay)

	b[FeaturePlatformTx] = similarity.Distribution(p1.PlatformTxCount, p2.PlatformTxCount)
	b[FeaturePlatformAvg] = similarity.Distribution(p1.PlatformAvgTxPerDay, p2.PlatformAvgTxPerDay)
	b[FeatureOtherPlatforms] = similarity.Distribution(p1.OtherPlatformCount, p2.OtherPlatformCount)

	u1, u2 := p1.UserCounts, p2.UserCounts
	b[FeatureDefiUsers] = similarity.Scalar(u1.DeFi.UserCount, u2.DeFi.UserCount)
	b[FeatureDefiTx] = similarity.Scalar(u1.DeFi.TransactionCount, u2.DeFi.TransactionCount)
	b[FeatureNFTUsers] = similarity.Scalar(u1.NFT.UserCount, u2.NFT.UserCount)
	b[FeatureNFTTx] = similarity.Scalar(u1.NFT.TransactionCount, u2.NFT.TransactionCount)

	b[FeatureTokenOverlap] = similarity.Overlap(p1.TokenLabels(), p2.TokenLabels())
	b[FeatureNFTOverlap] = similarity.Overlap(p1.NFTLabels(), p2.NFTLabels())
	return b
}

// Score folds a breakdown into a [0, 100] score with the given weights.
func (b Breakdown) Score(w Weights) float64 {
	var weighted float64
	for _, f := range Features() {
		weighted += float64(w.Of(f)) * b[f]
	}
	return MaxScore * weighted / float64(w.Sum())
}

// Match returns the matching score of the pair in [0, 100].
func (m *Matcher) Match(p1, p2 *model.Profile) float64 {
	return m.Breakdown(p1, p2).Score(m.weights)
}
