package mad

// PublicState is the broadcastable world view. MAD has no private values:
// treasuries and incomes are open information between two superpowers.
type PublicState struct {
	Countries map[string]*Country `json:"countries"`
	Players   [Capacity]Player    `json:"players"`
	Current   int                 `json:"current"`
	Turn      int                 `json:"turn"`
	Winner    int                 `json:"winner"`
}

// ClientState is the personalized snapshot sent as game_data.
type ClientState struct {
	PublicState
	Slot int `json:"slot"`
}

type PlayerUpdate struct {
	Slot  int    `json:"slot"`
	Value Player `json:"value"`
}

type CostInfo struct {
	Country   string `json:"country"`
	Structure string `json:"structure,omitempty"`
	Cost      int64  `json:"cost"`
}

func (g *Game) publicState() PublicState {
	return PublicState{
		Countries: g.Countries,
		Players:   g.Players,
		Current:   g.Current,
		Turn:      g.Turn,
		Winner:    g.WinnerSlot,
	}
}

func (g *Game) Snapshot(slot int) any {
	return &ClientState{
		PublicState: g.publicState(),
		Slot:        slot,
	}
}
