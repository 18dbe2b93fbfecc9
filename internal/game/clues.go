/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"time"

	"github.com/Seednode/escaperoom/internal/catalog"
)

// Clue reveals one attribute of the current target.
type Clue struct {
	Attribute catalog.Attribute `json:"attribute"`
	Value     string            `json:"value"`
}

type wave struct {
	after time.Duration
	adds  []catalog.Attribute
}

// Each wave reveals its own attributes plus those of every earlier wave.
var waves = [...]wave{
	{5 * time.Second, []catalog.Attribute{catalog.Pet, catalog.Holiday, catalog.Music, catalog.Film}},
	{35 * time.Second, []catalog.Attribute{catalog.Astrology, catalog.SundayActivity, catalog.CompanyValue, catalog.Department}},
	{90 * time.Second, []catalog.Attribute{catalog.ArrivalYear, catalog.FirstName}},
	{120 * time.Second, []catalog.Attribute{catalog.LastName}},
}

// WaveAt returns the attributes revealed after elapsed. It is empty until the
// first wave.
func WaveAt(elapsed time.Duration) []catalog.Attribute {
	var attrs []catalog.Attribute
	for _, w := range waves {
		if elapsed < w.after {
			break
		}
		attrs = append(attrs, w.adds...)
	}
	return attrs
}

// CluesFor reads attrs off the target card.
func CluesFor(target catalog.Card, attrs []catalog.Attribute) []Clue {
	clues := make([]Clue, 0, len(attrs))
	for _, a := range attrs {
		clues = append(clues, Clue{Attribute: a, Value: target.Value(a)})
	}
	return clues
}

// Distribute deals clues round-robin across participants, starting at
// solved mod n so the first clue rotates between puzzles. Anyone left without
// a clue gets clues[solved mod len(clues)]. The result is indexed like ids.
func Distribute(ids []string, clues []Clue, solved int) [][]Clue {
	n := len(ids)
	if n == 0 || len(clues) == 0 {
		return nil
	}

	out := make([][]Clue, n)
	i := solved % n
	for _, c := range clues {
		out[i] = append(out[i], c)
		i = (i + 1) % n
	}

	fallback := clues[solved%len(clues)]
	for k := range out {
		if len(out[k]) == 0 {
			out[k] = []Clue{fallback}
		}
	}
	return out
}
