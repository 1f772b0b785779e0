// Package model contains domain models passed between layers.
package model

// Segment holds the user and transaction counters of one user-count segment.
type Segment struct {
	UserCount        float64
	TransactionCount float64
}

// UserCounts is the nested sub-profile split into the DEFI and NFT segments.
type UserCounts struct {
	DeFi Segment
	NFT  Segment
}

// Transfer is a single token or NFT transfer record.
type Transfer struct {
	Identifier string // token or collection identifier, compared case-insensitively
}

// Profile is one wallet's activity summary. A Profile is never mutated
// after the loader builds it.
type Profile struct {
	Balance             float64
	TotalTxCount        float64
	AvgTxPerDay         float64
	PlatformTxCount     map[string]float64
	PlatformAvgTxPerDay map[string]float64
	OtherPlatformCount  map[string]float64
	UserCounts          UserCounts
	TokenTransfers      []Transfer
	NFTTransfers        []Transfer
}

// TokenLabels returns the identifiers of the token transfers in order.
func (p *Profile) TokenLabels() []string {
	return identifiers(p.TokenTransfers)
}

// NFTLabels returns the identifiers of the NFT transfers in order.
func (p *Profile) NFTLabels() []string {
	return identifiers(p.NFTTransfers)
}

func identifiers(transfers []Transfer) []string {
	out := make([]string, len(transfers))
	for i, t := range transfers {
		out[i] = t.Identifier
	}
	return out
}
