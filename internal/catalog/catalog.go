/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package catalog holds the immutable table of puzzle cards.
package catalog

import (
	"cmp"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Attribute names one categorical field of a card.
type Attribute string

const (
	ArrivalYear    Attribute = "arrivalYear"
	Department     Attribute = "department"
	Astrology      Attribute = "astrology"
	Music          Attribute = "music"
	Film           Attribute = "film"
	SundayActivity Attribute = "sundayActivity"
	Holiday        Attribute = "holiday"
	Pet            Attribute = "pet"
	CompanyValue   Attribute = "companyValue"
	FirstName      Attribute = "firstname"
	LastName       Attribute = "lastname"
)

// Compared lists the attributes that count towards similarity.
var Compared = [...]Attribute{
	ArrivalYear,
	Department,
	Astrology,
	Music,
	Film,
	SundayActivity,
	Holiday,
	Pet,
	CompanyValue,
}

// columns is the CSV column order after the id column.
var columns = [...]Attribute{
	FirstName,
	LastName,
	ArrivalYear,
	Department,
	Astrology,
	Music,
	Film,
	SundayActivity,
	Holiday,
	Pet,
	CompanyValue,
}

var (
	ErrEmpty        = errors.New("catalog is empty")
	ErrDuplicateKey = errors.New("duplicate card key")
	ErrMalformedRow = errors.New("malformed catalog row")
)

// Card is one collaborator profile.
type Card struct {
	Key            string `json:"id"`
	FirstName      string `json:"firstname"`
	LastName       string `json:"lastname"`
	ArrivalYear    string `json:"arrivalYear"`
	Department     string `json:"department"`
	Astrology      string `json:"astrology"`
	Music          string `json:"music"`
	Film           string `json:"film"`
	SundayActivity string `json:"sundayActivity"`
	Holiday        string `json:"holiday"`
	Pet            string `json:"pet"`
	CompanyValue   string `json:"companyValue"`
}

// Value returns the card's value for a.
func (c Card) Value(a Attribute) string {
	switch a {
	case ArrivalYear:
		return c.ArrivalYear
	case Department:
		return c.Department
	case Astrology:
		return c.Astrology
	case Music:
		return c.Music
	case Film:
		return c.Film
	case SundayActivity:
		return c.SundayActivity
	case Holiday:
		return c.Holiday
	case Pet:
		return c.Pet
	case CompanyValue:
		return c.CompanyValue
	case FirstName:
		return c.FirstName
	case LastName:
		return c.LastName
	}
	return ""
}

func (c *Card) set(a Attribute, v string) {
	switch a {
	case ArrivalYear:
		c.ArrivalYear = v
	case Department:
		c.Department = v
	case Astrology:
		c.Astrology = v
	case Music:
		c.Music = v
	case Film:
		c.Film = v
	case SundayActivity:
		c.SundayActivity = v
	case Holiday:
		c.Holiday = v
	case Pet:
		c.Pet = v
	case CompanyValue:
		c.CompanyValue = v
	case FirstName:
		c.FirstName = v
	case LastName:
		c.LastName = v
	}
}

// Similarity counts the compared attributes c shares with other.
func (c Card) Similarity(other Card) int {
	n := 0
	for _, a := range Compared {
		if c.Value(a) == other.Value(a) {
			n++
		}
	}
	return n
}

// Catalog is safe for concurrent reads; it is never modified after Load.
type Catalog struct {
	cards []Card
	index map[string]int
}

// New builds a catalog from cards, keeping their order.
func New(cards []Card) (*Catalog, error) {
	if len(cards) == 0 {
		return nil, ErrEmpty
	}
	c := &Catalog{
		cards: slices.Clone(cards),
		index: make(map[string]int, len(cards)),
	}
	for i, card := range c.cards {
		if _, ok := c.index[card.Key]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, card.Key)
		}
		c.index[card.Key] = i
	}
	return c, nil
}

// Load reads a catalog from a CSV file whose first row is a header.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse reads CSV rows of the form id,firstname,lastname,arrivalYear,...
func Parse(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var cards []Card
	for line := 1; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 1 {
			continue
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		if len(row) < len(columns)+1 {
			return nil, fmt.Errorf("%w: line %d has %d fields, want %d", ErrMalformedRow, line, len(row), len(columns)+1)
		}

		card := Card{Key: strings.TrimSpace(row[0])}
		if card.Key == "" {
			return nil, fmt.Errorf("%w: line %d has no id", ErrMalformedRow, line)
		}
		for i, a := range columns {
			card.set(a, strings.TrimSpace(row[i+1]))
		}
		cards = append(cards, card)
	}

	return New(cards)
}

// Len returns the number of cards.
func (c *Catalog) Len() int {
	return len(c.cards)
}

// Get looks a card up by key.
func (c *Catalog) Get(key string) (Card, bool) {
	i, ok := c.index[key]
	if !ok {
		return Card{}, false
	}
	return c.cards[i], true
}

// All returns a copy of every card in load order.
func (c *Catalog) All() []Card {
	return slices.Clone(c.cards)
}

// Department returns the cards of one department, most recent arrivals first.
// Cards whose arrival year is not a number come last, ordered by text.
func (c *Catalog) Department(name string) []Card {
	type entry struct {
		card    Card
		year    int
		numeric bool
	}

	var entries []entry
	for _, card := range c.cards {
		if card.Department != name {
			continue
		}
		year, err := strconv.Atoi(card.ArrivalYear)
		entries = append(entries, entry{card: card, year: year, numeric: err == nil})
	}

	slices.SortStableFunc(entries, func(a, b entry) int {
		switch {
		case a.numeric && b.numeric:
			return cmp.Compare(b.year, a.year)
		case a.numeric:
			return -1
		case b.numeric:
			return 1
		}
		return strings.Compare(a.card.ArrivalYear, b.card.ArrivalYear)
	})

	var out []Card
	for _, e := range entries {
		out = append(out, e.card)
	}
	return out
}
