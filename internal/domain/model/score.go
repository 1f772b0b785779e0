package model

// PairKeySeparator joins the two identifiers of a pair key.
const PairKeySeparator = "_"

// PairKey builds the key for the ordered pair (id1, id2). The key keeps
// discovery order; it is not canonicalized.
func PairKey(id1, id2 string) string {
	return id1 + PairKeySeparator + id2
}

// ScoreRecord is one scored pair, anchor first.
type ScoreRecord struct {
	Anchor string
	Peer   string
	Score  float64 // in [0, 100]
}

// Key returns the pair key in discovery order.
func (r ScoreRecord) Key() string {
	return PairKey(r.Anchor, r.Peer)
}

// ReverseKey returns the key the same pair would have with the roles swapped.
func (r ScoreRecord) ReverseKey() string {
	return PairKey(r.Peer, r.Anchor)
}

// RowJob asks for the scores of one anchor against the whole dataset.
type RowJob struct {
	Index    int // position of the anchor in the anchor list
	AnchorID string
}

// Row is the scored output of a RowJob, in inner-loop order.
type Row struct {
	Index   int
	Records []ScoreRecord
	Skipped int
}
