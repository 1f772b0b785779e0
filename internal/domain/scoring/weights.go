// Package scoring computes the matching score between two wallet profiles.
package scoring

import (
	"sort"

	"github.com/pkg/errors"
)

// Feature names one similarity term of the matching score.
type Feature int

// Features, in the order they are summed.
const (
	FeatureBalance Feature = iota
	FeatureTxCount
	FeatureAvgTx
	FeaturePlatformTx
	FeaturePlatformAvg
	FeatureOtherPlatforms
	FeatureDefiUsers
	FeatureDefiTx
	FeatureNFTUsers
	FeatureNFTTx
	FeatureTokenOverlap
	FeatureNFTOverlap

	featureCount
)

var featureNames = [featureCount]string{
	FeatureBalance:        "balance",
	FeatureTxCount:        "tx_count",
	FeatureAvgTx:          "avg_tx",
	FeaturePlatformTx:     "platform_tx",
	FeaturePlatformAvg:    "platform_avg",
	FeatureOtherPlatforms: "other_platforms",
	FeatureDefiUsers:      "defi_users",
	FeatureDefiTx:         "defi_tx",
	FeatureNFTUsers:       "nft_users",
	FeatureNFTTx:          "nft_tx",
	FeatureTokenOverlap:   "token_overlap",
	FeatureNFTOverlap:     "nft_overlap",
}

// String returns the configuration name of the feature.
func (f Feature) String() string {
	if f < 0 || f >= featureCount {
		return "unknown"
	}
	return featureNames[f]
}

// Features returns every feature in summation order.
func Features() []Feature {
	out := make([]Feature, featureCount)
	for i := range out {
		out[i] = Feature(i)
	}
	return out
}

// ParseFeature resolves a configuration name.
func ParseFeature(name string) (Feature, error) {
	for i, n := range featureNames {
		if n == name {
			return Feature(i), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownFeature, "%q", name)
}

// Weights is the static per-feature weight table. The score is normalized
// by the sum of all weights, so only their ratios matter.
type Weights struct {
	Balance        int
	TxCount        int
	AvgTx          int
	PlatformTx     int
	PlatformAvg    int
	OtherPlatforms int
	DefiUsers      int
	DefiTx         int
	NFTUsers       int
	NFTTx          int
	TokenOverlap   int
	NFTOverlap     int
}

// DefaultWeights returns the production weight table.
func DefaultWeights() Weights {
	return Weights{
		Balance:        1,
		TxCount:        2,
		AvgTx:          4,
		PlatformTx:     6,
		PlatformAvg:    8,
		OtherPlatforms: 1,
		DefiUsers:      2,
		DefiTx:         3,
		NFTUsers:       2,
		NFTTx:          3,
		TokenOverlap:   4,
		NFTOverlap:     4,
	}
}

func (w *Weights) slot(f Feature) *int {
	switch f {
	case FeatureBalance:
		return &w.Balance
	case FeatureTxCount:
		return &w.TxCount
	case FeatureAvgTx:
		return &w.AvgTx
	case FeaturePlatformTx:
		return &w.PlatformTx
	case FeaturePlatformAvg:
		return &w.PlatformAvg
	case FeatureOtherPlatforms:
		return &w.OtherPlatforms
	case FeatureDefiUsers:
		return &w.DefiUsers
	case FeatureDefiTx:
		return &w.DefiTx
	case FeatureNFTUsers:
		return &w.NFTUsers
	case FeatureNFTTx:
		return &w.NFTTx
	case FeatureTokenOverlap:
		return &w.TokenOverlap
	case FeatureNFTOverlap:
		return &w.NFTOverlap
	}
	return nil
}

// Of returns the weight of f, or 0 for an unknown feature.
func (w Weights) Of(f Feature) int {
	if p := w.slot(f); p != nil {
		return *p
	}
	return 0
}

// Sum returns the normalization denominator.
func (w Weights) Sum() int {
	total := 0
	for _, f := range Features() {
		total += w.Of(f)
	}
	return total
}

// Validate checks that every weight is a positive integer.
func (w Weights) Validate() error {
	for _, f := range Features() {
		if v := w.Of(f); v <= 0 {
			return errors.Wrapf(ErrInvalidWeight, "%s=%d must be positive", f, v)
		}
	}
	return nil
}

// With returns a copy of w with the named weights replaced. Names are the
// Feature strings ("balance", "platform_avg", ...).
func (w Weights) With(overrides map[string]int) (Weights, error) {
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	out := w
	for _, name := range names {
		f, err := ParseFeature(name)
		if err != nil {
			return Weights{}, err
		}
		*out.slot(f) = overrides[name]
	}
	if err := out.Validate(); err != nil {
		return Weights{}, err
	}
	return out, nil
}
