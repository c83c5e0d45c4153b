package uno

import (
	"encoding/json"
	"fmt"

	"arcade-server/internal/game"
)

const GameType = "uno"

const startingHandSize = 7

type ActionKind string

const (
	ActionDraw        ActionKind = "draw"
	ActionPlay        ActionKind = "play"
	ActionChooseColor ActionKind = "choose_color"
)

// Action is the wire form of one Uno move. Card is an index into the acting
// player's hand; Color is only read for choose_color.
type Action struct {
	Kind  ActionKind `json:"kind"`
	Card  int        `json:"card"`
	Color string     `json:"color"`
}

// PendingDraw is an outstanding draw obligation. While set, only Target may
// act, and only by drawing, until Remaining reaches zero.
type PendingDraw struct {
	Target    int `json:"target"`
	Remaining int `json:"remaining"`
}

// Game is the authoritative Uno state. All fields are exported for exact
// persistence round-trips; mutation goes through HandleAction only.
type Game struct {
	Slots      int          `json:"slots"`
	DrawPile   []Card       `json:"drawPile"`
	Discard    []Card       `json:"discard"`
	Hands      [][]Card     `json:"hands"`
	Current    int          `json:"current"`
	Dir        int          `json:"dir"`
	WildAccept Color        `json:"wildAccept"`
	AwaitColor bool         `json:"awaitColor"`
	Pending    *PendingDraw `json:"pending,omitempty"`
	WinnerSlot int          `json:"winner"`
}

// NewGame deals a fresh game for the given player count (2-4). The first
// discard is the first non-wild card off the shuffled deck; wilds drawn
// before it go back under the draw pile.
func NewGame(slots int) (*Game, error) {
	if slots < 2 || slots > 4 {
		return nil, fmt.Errorf("INVALID_PLAYERS: Uno supports 2-4 players, got %d", slots)
	}

	deck := NewDeck()
	Shuffle(deck)

	g := &Game{
		Slots:      slots,
		DrawPile:   deck,
		Discard:    make([]Card, 0, FullDeckSize),
		Hands:      make([][]Card, slots),
		Current:    0,
		Dir:        1,
		WildAccept: NoColor,
		WinnerSlot: game.Broadcast,
	}

	for i := range slots {
		g.Hands[i] = make([]Card, 0, startingHandSize)
		for range startingHandSize {
			card, _ := g.drawOne()
			g.Hands[i] = append(g.Hands[i], card)
		}
	}

	for {
		card, _ := g.drawOne()
		if !card.IsWild() {
			g.Discard = append(g.Discard, card)
			break
		}
		g.DrawPile = append([]Card{card}, g.DrawPile...)
	}

	return g, nil
}

func (g *Game) Type() string  { return GameType }
func (g *Game) Capacity() int { return g.Slots }
func (g *Game) Winner() int   { return g.WinnerSlot }

func (g *Game) Serialize() ([]byte, error) {
	return json.Marshal(g)
}

// Restore replaces the full state with the decoded snapshot. The receiver is
// reset first so fields absent from the snapshot (omitempty) do not survive
// from the previous state.
func (g *Game) Restore(data []byte) error {
	var fresh Game
	if err := json.Unmarshal(data, &fresh); err != nil {
		return err
	}
	*g = fresh
	return nil
}

func (g *Game) HandleAction(slot int, payload json.RawMessage) game.Result {
	if g.WinnerSlot != game.Broadcast {
		return game.Fail("GAME_OVER: This game has already been won")
	}

	var action Action
	if err := json.Unmarshal(payload, &action); err != nil {
		return game.Fail("INVALID_ACTION: Malformed action payload")
	}

	if err := g.checkAuthority(slot, action.Kind); err != nil {
		return game.Fail(err.Error())
	}

	switch action.Kind {
	case ActionDraw:
		return g.handleDraw(slot)
	case ActionPlay:
		return g.handlePlay(slot, action.Card)
	case ActionChooseColor:
		return g.handleChooseColor(slot, action.Color)
	default:
		return game.Fail(fmt.Sprintf("INVALID_ACTION: Unknown action kind %q", action.Kind))
	}
}

// checkAuthority enforces turn exclusivity. A pending draw obligation narrows
// authority to its target; an outstanding color choice narrows it to the
// current player and the choose_color action.
func (g *Game) checkAuthority(slot int, kind ActionKind) error {
	if g.Pending != nil {
		if slot != g.Pending.Target {
			return fmt.Errorf("NOT_YOUR_TURN: Waiting on player %d to draw", g.Pending.Target)
		}
		if kind != ActionDraw {
			return fmt.Errorf("MUST_DRAW: You must draw %d more cards first", g.Pending.Remaining)
		}
		return nil
	}
	if g.AwaitColor {
		if slot != g.Current {
			return fmt.Errorf("NOT_YOUR_TURN: Waiting on player %d to choose a color", g.Current)
		}
		if kind != ActionChooseColor {
			return fmt.Errorf("CHOOSE_COLOR: You must choose a color first")
		}
		return nil
	}
	if slot != g.Current {
		return fmt.Errorf("NOT_YOUR_TURN: It is player %d's turn", g.Current)
	}
	return nil
}

func (g *Game) handleDraw(slot int) game.Result {
	if g.Pending != nil {
		card, ok := g.drawOne()
		if !ok {
			return game.Fail("NO_CARDS: The draw pile is exhausted")
		}
		g.Hands[slot] = append(g.Hands[slot], card)
		g.Pending.Remaining--
		if g.Pending.Remaining == 0 {
			g.Pending = nil
			g.advance(1)
		}
		deltas := g.handDeltas(slot)
		deltas = append(deltas, game.ToAll("update", g.publicState()))
		return game.OK(deltas...)
	}

	card, ok := g.drawOne()
	if !ok {
		return game.Fail("NO_CARDS: The draw pile is exhausted")
	}
	g.Hands[slot] = append(g.Hands[slot], card)

	// A playable drawn card keeps the turn so it can be played immediately.
	if !g.canPlay(card) {
		g.advance(1)
	}
	deltas := g.handDeltas(slot)
	deltas = append(deltas, game.ToAll("update", g.publicState()))
	return game.OK(deltas...)
}

func (g *Game) handlePlay(slot, cardIndex int) game.Result {
	hand := g.Hands[slot]
	if cardIndex < 0 || cardIndex >= len(hand) {
		return game.Fail("INVALID_CARD: No such card in hand")
	}

	card := hand[cardIndex]
	if !g.canPlay(card) {
		return game.Fail("CANNOT_PLAY: That card does not match the discard pile")
	}

	g.Hands[slot] = append(hand[:cardIndex], hand[cardIndex+1:]...)
	g.Discard = append(g.Discard, card)

	deltas := g.handDeltas(slot)

	switch card.Symbol {
	case DrawTwo, WildDrawFour:
		count := 2
		if card.Symbol == WildDrawFour {
			count = 4
		}
		g.advance(1)
		g.Pending = &PendingDraw{Target: g.Current, Remaining: count}
		deltas = append(deltas, game.ToAll("update", g.publicState()))
	case Reverse:
		g.Dir = -g.Dir
		g.advance(1)
		deltas = append(deltas, game.ToAll("update", g.publicState()))
	case Skip:
		g.advance(2)
		deltas = append(deltas, game.ToAll("update", g.publicState()))
	case Wild:
		// Turn does not move until the color is chosen.
		g.AwaitColor = true
		g.WildAccept = NoColor
		deltas = append(deltas, game.ToAll("update", g.publicState()))
		deltas = append(deltas, game.ToSlot(slot, "choose_color", struct{}{}))
	default:
		g.advance(1)
		deltas = append(deltas, game.ToAll("update", g.publicState()))
	}

	switch len(g.Hands[slot]) {
	case 1:
		deltas = append(deltas, game.ToAll("alert_uno", SlotAlert{Slot: slot}))
	case 0:
		g.WinnerSlot = slot
		deltas = append(deltas, game.ToAll("alert_win", SlotAlert{Slot: slot}))
	}

	return game.OK(deltas...)
}

func (g *Game) handleChooseColor(slot int, color string) game.Result {
	if !g.AwaitColor {
		return game.Fail("NO_CHOICE_PENDING: There is no color to choose")
	}
	c, err := ParseColor(color)
	if err != nil {
		return game.Fail(err.Error())
	}

	g.WildAccept = c
	g.AwaitColor = false
	g.advance(1)

	return game.OK(game.ToAll("update", g.publicState()))
}

// canPlay implements the legality rule: match the top card's color or symbol
// (the bound wild color when the top is a wild), any wild is always legal,
// and anything goes on top of a Draw 4.
func (g *Game) canPlay(c Card) bool {
	top := g.top()
	if c.IsWild() {
		return true
	}
	if top.Symbol == WildDrawFour {
		return true
	}
	if top.IsWild() {
		return c.Color == g.WildAccept
	}
	return c.Color == top.Color || c.Symbol == top.Symbol
}

func (g *Game) top() Card {
	return g.Discard[len(g.Discard)-1]
}

// drawOne takes the top card of the draw pile, recycling the discard pile
// minus its top card when the draw pile runs dry. No card is ever created or
// destroyed.
func (g *Game) drawOne() (Card, bool) {
	if len(g.DrawPile) == 0 {
		if len(g.Discard) <= 1 {
			return Card{}, false
		}
		recycled := g.Discard[:len(g.Discard)-1]
		top := g.Discard[len(g.Discard)-1]
		g.DrawPile = make([]Card, len(recycled))
		copy(g.DrawPile, recycled)
		Shuffle(g.DrawPile)
		g.Discard = []Card{top}
	}

	card := g.DrawPile[len(g.DrawPile)-1]
	g.DrawPile = g.DrawPile[:len(g.DrawPile)-1]
	return card, true
}

func (g *Game) advance(steps int) {
	n := g.Slots
	g.Current = ((g.Current+g.Dir*steps)%n + n) % n
}

// handDeltas is the private/public pair for one slot's hand: full contents to
// the owner, the new count to everyone else.
func (g *Game) handDeltas(slot int) []game.Delta {
	return []game.Delta{
		game.ToSlot(slot, "set_hand", HandFull{Index: slot, Cards: g.Hands[slot]}),
		game.ToOthers(slot, "set_hand", HandCount{Index: slot, Count: len(g.Hands[slot])}),
	}
}
