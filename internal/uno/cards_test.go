package uno

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDeckComposition(t *testing.T) {
	deck := NewDeck()
	assert.Equal(t, FullDeckSize, len(deck))

	counts := make(map[Card]int)
	for _, c := range deck {
		counts[c]++
	}

	for _, color := range []Color{Red, Yellow, Green, Blue} {
		assert.Equal(t, 1, counts[Card{color, Zero}])
		for sym := One; sym <= DrawTwo; sym++ {
			assert.Equal(t, 2, counts[Card{color, sym}], "color %v symbol %v", color, sym)
		}
	}
	assert.Equal(t, 4, counts[Card{NoColor, Wild}])
	assert.Equal(t, 4, counts[Card{NoColor, WildDrawFour}])
}

func TestShufflePreservesCards(t *testing.T) {
	deck := NewDeck()
	before := make(map[Card]int)
	for _, c := range deck {
		before[c]++
	}

	Shuffle(deck)

	after := make(map[Card]int)
	for _, c := range deck {
		after[c]++
	}
	assert.Equal(t, before, after)
}

func TestParseColor(t *testing.T) {
	for _, name := range []string{"Red", "Yellow", "Green", "Blue"} {
		c, err := ParseColor(name)
		assert.NoError(t, err)
		assert.Equal(t, name, c.String())
	}

	_, err := ParseColor("Wild")
	assert.Error(t, err)
	_, err = ParseColor("purple")
	assert.Error(t, err)
}

func TestCardString(t *testing.T) {
	assert.Equal(t, "Red 5", Card{Red, Five}.String())
	assert.Equal(t, "Blue Draw 2", Card{Blue, DrawTwo}.String())
	assert.Equal(t, "Wild", Card{NoColor, Wild}.String())
	assert.Equal(t, "Draw 4", Card{NoColor, WildDrawFour}.String())
}
