package uno

import (
	"fmt"
	"math/rand"
)

type Color int

const (
	Red Color = iota
	Yellow
	Green
	Blue
	NoColor // wild cards before a color is bound
)

var colorString = map[Color]string{
	Red:     "Red",
	Yellow:  "Yellow",
	Green:   "Green",
	Blue:    "Blue",
	NoColor: "Wild",
}

func (c Color) String() string {
	return colorString[c]
}

// ParseColor maps a client color choice onto a playable color.
func ParseColor(s string) (Color, error) {
	for c, name := range colorString {
		if c != NoColor && name == s {
			return c, nil
		}
	}
	return NoColor, fmt.Errorf("INVALID_COLOR: Unknown color %q", s)
}

type Symbol int

const (
	Zero Symbol = iota
	One
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Skip
	Reverse
	DrawTwo
	Wild
	WildDrawFour
)

var symbolString = map[Symbol]string{
	Zero:         "0",
	One:          "1",
	Two:          "2",
	Three:        "3",
	Four:         "4",
	Five:         "5",
	Six:          "6",
	Seven:        "7",
	Eight:        "8",
	Nine:         "9",
	Skip:         "Skip",
	Reverse:      "Reverse",
	DrawTwo:      "Draw 2",
	Wild:         "Wild",
	WildDrawFour: "Draw 4",
}

func (s Symbol) String() string {
	return symbolString[s]
}

type Card struct {
	Color  Color  `json:"color"`
	Symbol Symbol `json:"symbol"`
}

func (c Card) IsWild() bool {
	return c.Symbol == Wild || c.Symbol == WildDrawFour
}

func (c Card) String() string {
	if c.IsWild() {
		return c.Symbol.String()
	}
	return fmt.Sprintf("%s %s", c.Color.String(), c.Symbol.String())
}

// FullDeckSize is the standard Uno deck: per color one 0, two each of 1-9,
// Skip, Reverse and Draw 2, plus four Wilds and four Draw 4s.
const FullDeckSize = 108

// NewDeck builds an unshuffled full deck.
func NewDeck() []Card {
	deck := make([]Card, 0, FullDeckSize)
	colors := []Color{Red, Yellow, Green, Blue}

	for _, color := range colors {
		deck = append(deck, Card{color, Zero})
		for sym := One; sym <= DrawTwo; sym++ {
			deck = append(deck, Card{color, sym})
			deck = append(deck, Card{color, sym})
		}
	}
	for range 4 {
		deck = append(deck, Card{NoColor, Wild})
		deck = append(deck, Card{NoColor, WildDrawFour})
	}

	return deck
}

func Shuffle(cards []Card) {
	rand.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}
