// Package repository holds the ranked score table of an inference run.
package repository

import (
	"context"

	"github.com/okian/walletmatch/internal/domain/model"
)

// Entry is one ranked pair.
type Entry struct {
	Rank   int
	Key    string
	Anchor string
	Peer   string
	Score  float64
	Seq    uint64 // insertion sequence, breaks score ties
}

// Store keeps scored pairs ordered by score descending, ties in insertion order.
type Store interface {
	// Insert adds a new pair under rec.Key(). Returns ErrDuplicateKey if
	// the key is present.
	Insert(ctx context.Context, rec model.ScoreRecord) error

	// Ordered returns every entry in rank order.
	Ordered(ctx context.Context) []Entry

	// TopN returns the top-N entries in rank order.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of stored pairs.
	Count(ctx context.Context) int
}
