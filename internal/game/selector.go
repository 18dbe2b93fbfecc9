/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Seednode/escaperoom/internal/catalog"
)

// Difficulty controls how many cards a puzzle shows and how alike its decoys
// may be to the target.
type Difficulty struct {
	Required    int
	Commonality int
}

// DifficultyFor scales difficulty with the number of solved puzzles.
func DifficultyFor(solved int) Difficulty {
	d := Difficulty{Required: 8, Commonality: 2}

	switch {
	case solved >= 30:
		d.Required = 24
	case solved >= 20:
		d.Required = 20
	case solved >= 10:
		d.Required = 16
	case solved >= 6:
		d.Required = 12
	}

	switch {
	case solved >= 16:
		d.Commonality = 6
	case solved >= 11:
		d.Commonality = 5
	case solved >= 7:
		d.Commonality = 4
	case solved >= 2:
		d.Commonality = 3
	}

	return d
}

// Puzzle is the current round of a room.
type Puzzle struct {
	Target    catalog.Card
	Cards     []catalog.Card
	StartedAt time.Time
}

func (p *Puzzle) contains(key string) bool {
	for _, c := range p.Cards {
		if c.Key == key {
			return true
		}
	}
	return false
}

// Selector picks puzzles from a catalog. It is shared by every room.
type Selector struct {
	catalog *catalog.Catalog

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector returns a selector drawing from src. A nil src seeds from the
// runtime's random source.
func NewSelector(c *catalog.Catalog, src rand.Source) *Selector {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Selector{catalog: c, rng: rand.New(src)}
}

// Next picks a target not in used and decoys for it, then marks the target
// as used.
func (s *Selector) Next(used map[string]struct{}, solved int, now time.Time) (*Puzzle, error) {
	return s.Select(used, DifficultyFor(solved), now)
}

// Select is Next with an explicit difficulty.
func (s *Selector) Select(used map[string]struct{}, d Difficulty, now time.Time) (*Puzzle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pool []catalog.Card
	for _, c := range s.catalog.All() {
		if _, ok := used[c.Key]; !ok {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return nil, ErrCatalogExhausted
	}

	i := s.rng.IntN(len(pool))
	target := pool[i]
	pool = append(pool[:i], pool[i+1:]...)

	commonality := min(max(d.Commonality, 0), len(catalog.Compared))
	buckets := make([][]catalog.Card, commonality+1)
	for _, c := range pool {
		if sim := target.Similarity(c); sim <= commonality {
			buckets[sim] = append(buckets[sim], c)
		}
	}

	want := max(d.Required-1, 0)
	decoys := make([]catalog.Card, 0, want)
	for b := commonality; b >= 0 && len(decoys) < want; b-- {
		bucket := buckets[b]
		s.shuffle(bucket)
		decoys = append(decoys, bucket[:min(len(bucket), want-len(decoys))]...)
	}

	cards := append([]catalog.Card{target}, decoys...)
	s.shuffle(cards)

	used[target.Key] = struct{}{}

	return &Puzzle{Target: target, Cards: cards, StartedAt: now}, nil
}

func (s *Selector) shuffle(cards []catalog.Card) {
	s.rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}
