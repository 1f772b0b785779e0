package repository

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/okian/walletmatch/internal/domain/model"
	"github.com/okian/walletmatch/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: score DESC, then insertion sequence ASC, which makes the
// in-order traversal a stable descending sort of everything inserted.
// Priorities are random, so the expected depth stays O(log n) even when
// scores arrive already sorted.

const defaultSeed = 42

type node struct {
	key    string
	anchor string
	peer   string
	score  float64
	seq    uint64
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aSeq) ranks before (bScore, bSeq).
func less(aScore float64, aSeq uint64, bScore float64, bSeq uint64) bool {
	if aScore != bScore {
		return aScore > bScore // higher score ranks earlier
	}
	return aSeq < bSeq // earlier insertion wins ties
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n, fresh *node) *node {
	if n == nil {
		return fresh
	}
	if less(fresh.score, fresh.seq, n.score, n.seq) {
		n.left = insert(n.left, fresh)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, fresh)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, Entry{Key: n.key, Anchor: n.anchor, Peer: n.peer, Score: n.score, Seq: n.seq})
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// TreapStore implements Store.
type TreapStore struct {
	mu           sync.RWMutex
	root         *node
	byKey        map[string]struct{}
	nextSeq      uint64
	rng          *rand.Rand
	seed         uint64
	capacityHint int
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{seed: defaultSeed}
	for _, opt := range opts {
		opt(s)
	}
	s.byKey = make(map[string]struct{}, s.capacityHint)
	s.rng = rand.New(rand.NewPCG(s.seed, s.seed)) //nolint:gosec // priorities only balance the tree
	return s
}

// Insert implements Store.Insert in O(log n) expected time.
func (s *TreapStore) Insert(ctx context.Context, rec model.ScoreRecord) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreInsertLatency(float64(time.Since(start).Microseconds()))
	}()

	key := rec.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byKey[key]; ok {
		metrics.RecordErrorByComponent("repository", "duplicate_key")
		return errors.Wrapf(ErrDuplicateKey, "%q", key)
	}

	seq := s.nextSeq
	s.nextSeq++
	s.byKey[key] = struct{}{}
	s.root = insert(s.root, &node{
		key:    key,
		anchor: rec.Anchor,
		peer:   rec.Peer,
		score:  rec.Score,
		seq:    seq,
		prio:   s.rng.Uint64(),
		size:   1,
	})
	return nil
}

// Ordered returns all entries, highest score first, with dense ranks.
func (s *TreapStore) Ordered(ctx context.Context) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.byKey))
	collectTopN(s.root, len(s.byKey), &out)
	assignRanksWithTies(out)
	return out
}

// TopN returns the top n entries, highest score first.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, min(n, len(s.byKey)))
	collectTopN(s.root, n, &out)
	assignRanksWithTies(out)
	return out, nil
}

// Count returns the number of stored pairs.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

// assignRanksWithTies assigns dense ranks: equal scores share a rank and
// the next distinct score takes the next integer.
func assignRanksWithTies(entries []Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Score != entries[i-1].Score {
			rank++
		}
		entries[i].Rank = rank
	}
}
