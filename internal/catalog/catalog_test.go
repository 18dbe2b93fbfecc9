package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `id,firstname,lastname,arrivalYear,department,astrology,music,film,sundayActivity,holiday,pet,value
1,Ada,Lovelace,1998,R&D,Leo,Jazz,Alien,Hiking,Sea,Cat,Trust
2,Alan,Turing,2004,R&D,Virgo,Rock,Brazil,Chess,Mountain,Dog,Audacity
3,Grace,Hopper,2001,Sales,Leo,Jazz,Alien,Hiking,Sea,Cat,Trust
`

func TestParse(t *testing.T) {
	t.Parallel()

	c, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	card, ok := c.Get("2")
	require.True(t, ok)
	assert.Equal(t, "Alan", card.FirstName)
	assert.Equal(t, "Turing", card.LastName)
	assert.Equal(t, "2004", card.ArrivalYear)
	assert.Equal(t, "Dog", card.Pet)
	assert.Equal(t, "Audacity", card.CompanyValue)

	_, ok = c.Get("42")
	assert.False(t, ok)
}

func TestParseSkipsBlankTrailingLines(t *testing.T) {
	t.Parallel()

	c, err := Parse(strings.NewReader(sample + "\n\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"header only", "id,firstname\n", ErrEmpty},
		{"short row", "h\n1,Ada,Lovelace\n", ErrMalformedRow},
		{"missing id", "h\n,a,b,c,d,e,f,g,h,i,j,k\n", ErrMalformedRow},
		{"duplicate", "h\n1,a,b,c,d,e,f,g,h,i,j,k\n1,a,b,c,d,e,f,g,h,i,j,k\n", ErrDuplicateKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "answers.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	c, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	ada, _ := c.Get("1")
	alan, _ := c.Get("2")
	grace, _ := c.Get("3")

	assert.Equal(t, len(Compared), ada.Similarity(ada))
	assert.Equal(t, 1, ada.Similarity(alan))
	assert.Equal(t, 7, ada.Similarity(grace))
}

func TestDepartmentSortsNewestFirst(t *testing.T) {
	t.Parallel()

	c, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	rd := c.Department("R&D")
	require.Len(t, rd, 2)
	assert.Equal(t, "2", rd[0].Key)
	assert.Equal(t, "1", rd[1].Key)
	assert.Empty(t, c.Department("Legal"))
}

func TestAllReturnsCopy(t *testing.T) {
	t.Parallel()

	c, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	all := c.All()
	all[0].FirstName = "changed"
	card, _ := c.Get("1")
	assert.Equal(t, "Ada", card.FirstName)
}

func TestDepartmentOrdersMixedYears(t *testing.T) {
	t.Parallel()

	cards := []Card{
		{Key: "a", Department: "Ops", ArrivalYear: "unknown"},
		{Key: "b", Department: "Ops", ArrivalYear: "2010"},
		{Key: "c", Department: "Ops", ArrivalYear: "early"},
		{Key: "d", Department: "Ops", ArrivalYear: "2020"},
		{Key: "e", Department: "Ops", ArrivalYear: "999"},
	}
	c, err := New(cards)
	require.NoError(t, err)

	var keys []string
	for _, card := range c.Department("Ops") {
		keys = append(keys, card.Key)
	}
	assert.Equal(t, []string{"d", "b", "e", "c", "a"}, keys)
}
