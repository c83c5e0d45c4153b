package uno

// PublicState is the broadcastable slice of game state: everything except
// hand contents.
type PublicState struct {
	DiscardTop   Card         `json:"discardTop"`
	DiscardCount int          `json:"discardCount"`
	DrawCount    int          `json:"drawCount"`
	Current      int          `json:"current"`
	Dir          int          `json:"dir"`
	WildAccept   string       `json:"wildAccept"`
	AwaitColor   bool         `json:"awaitColor"`
	Pending      *PendingDraw `json:"pending,omitempty"`
	Winner       int          `json:"winner"`
}

// ClientState is the full personalized snapshot sent as game_data: public
// state plus the viewer's own hand and everyone's hand counts.
type ClientState struct {
	PublicState
	Slot       int    `json:"slot"`
	Hand       []Card `json:"hand"`
	HandCounts []int  `json:"handCounts"`
}

type HandFull struct {
	Index int    `json:"index"`
	Cards []Card `json:"cards"`
}

type HandCount struct {
	Index int `json:"index"`
	Count int `json:"count"`
}

type SlotAlert struct {
	Slot int `json:"slot"`
}

func (g *Game) publicState() PublicState {
	return PublicState{
		DiscardTop:   g.top(),
		DiscardCount: len(g.Discard),
		DrawCount:    len(g.DrawPile),
		Current:      g.Current,
		Dir:          g.Dir,
		WildAccept:   g.WildAccept.String(),
		AwaitColor:   g.AwaitColor,
		Pending:      g.Pending,
		Winner:       g.WinnerSlot,
	}
}

func (g *Game) Snapshot(slot int) any {
	counts := make([]int, g.Slots)
	for i, hand := range g.Hands {
		counts[i] = len(hand)
	}

	return &ClientState{
		PublicState: g.publicState(),
		Slot:        slot,
		Hand:        g.Hands[slot],
		HandCounts:  counts,
	}
}
