package mad

import (
	"encoding/json"
	"fmt"

	"arcade-server/internal/game"
)

const GameType = "mad"

// Capacity is fixed: MAD is a two-superpower standoff.
const Capacity = 2

type Status int

const (
	StatusOK Status = iota
	StatusUnauthorized
	StatusInsufficientFunds
	StatusBadTarget
)

type ActionKind string

const (
	ActionFormAlly  ActionKind = "form_ally"
	ActionSeverAlly ActionKind = "sever_ally"
	ActionBuild     ActionKind = "build"
	ActionCost      ActionKind = "cost"
)

const (
	StructureCity = "city"
	StructureSilo = "silo"
)

type Action struct {
	Kind      ActionKind `json:"kind"`
	Country   string     `json:"country"`
	Structure string     `json:"structure"`
}

// Country is one region's authoritative state. Overlord is the slot holding
// authority over it, or -1 for unaligned.
type Country struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Health   int    `json:"health"`
	Overlord int    `json:"overlord"`
	Cities   int    `json:"cities"`
	Silos    int    `json:"silos"`
}

type Player struct {
	Home   string `json:"home"`
	Money  int64  `json:"money"`
	Income int64  `json:"income"`
}

// Event is one bookkeeping record appended per accepted mutation.
type Event struct {
	Kind    string `json:"kind"`
	Slot    int    `json:"slot"`
	Country string `json:"country"`
	Turn    int    `json:"turn"`
}

// Game is the authoritative MAD state. Mutating actions are turn-gated and
// advance the turn; income is credited to a player when the turn reaches
// them. MAD has no terminal winner state.
type Game struct {
	Countries  map[string]*Country `json:"countries"`
	Players    [Capacity]Player    `json:"players"`
	Events     []Event             `json:"events"`
	Current    int                 `json:"current"`
	Turn       int                 `json:"turn"`
	WinnerSlot int                 `json:"winner"`
}

func NewGame() *Game {
	countries := make(map[string]*Country, len(worldTable))
	for _, spec := range worldTable {
		countries[spec.Code] = &Country{
			Code:     spec.Code,
			Name:     spec.Name,
			Health:   spec.Health,
			Overlord: -1,
		}
	}

	g := &Game{
		Countries:  countries,
		Events:     make([]Event, 0),
		Current:    0,
		Turn:       1,
		WinnerSlot: game.Broadcast,
	}
	for slot := range Capacity {
		countries[homeCountries[slot]].Overlord = slot
		g.Players[slot] = Player{
			Home:   homeCountries[slot],
			Money:  startingMoney,
			Income: baseIncome,
		}
		g.recomputeIncome(slot)
	}
	return g
}

func (g *Game) Type() string  { return GameType }
func (g *Game) Capacity() int { return Capacity }
func (g *Game) Winner() int   { return g.WinnerSlot }

func (g *Game) Serialize() ([]byte, error) {
	return json.Marshal(g)
}

// Restore replaces the full state with the decoded snapshot, resetting the
// receiver first so stale fields cannot survive a rollback.
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
		return game.Fail("GAME_OVER: This game has already ended")
	}

	var action Action
	if err := json.Unmarshal(payload, &action); err != nil {
		return game.Fail("INVALID_ACTION: Malformed action payload")
	}

	if slot != g.Current {
		return game.Fail(fmt.Sprintf("NOT_YOUR_TURN: It is player %d's turn", g.Current))
	}

	switch action.Kind {
	case ActionFormAlly:
		return g.handleFormAlly(slot, action.Country)
	case ActionSeverAlly:
		return g.handleSeverAlly(slot, action.Country)
	case ActionBuild:
		return g.handleBuild(slot, action.Country, action.Structure)
	case ActionCost:
		return g.handleCost(slot, action)
	default:
		return game.Fail(fmt.Sprintf("INVALID_ACTION: Unknown action kind %q", action.Kind))
	}
}

func (g *Game) handleFormAlly(slot int, code string) game.Result {
	country, ok := g.Countries[code]
	if !ok {
		return statusFail(StatusBadTarget, fmt.Sprintf("Unknown country %q", code))
	}
	if g.isHome(code) {
		return statusFail(StatusUnauthorized, "A superpower cannot be allied")
	}
	if country.Overlord != -1 {
		return statusFail(StatusUnauthorized, fmt.Sprintf("%s is already aligned", country.Name))
	}

	cost := AllianceCost(country)
	if g.Players[slot].Money < cost {
		return statusFail(StatusInsufficientFunds,
			fmt.Sprintf("Alliance with %s costs %d", country.Name, cost))
	}

	g.Players[slot].Money -= cost
	country.Overlord = slot
	g.recomputeIncome(slot)
	g.logEvent("form_ally", slot, code)

	deltas := []game.Delta{
		game.ToAll("update", g.publicState()),
		game.ToAll("set_player", PlayerUpdate{Slot: slot, Value: g.Players[slot]}),
	}
	deltas = append(deltas, g.advanceTurn()...)
	return game.OK(deltas...)
}

func (g *Game) handleSeverAlly(slot int, code string) game.Result {
	country, ok := g.Countries[code]
	if !ok {
		return statusFail(StatusBadTarget, fmt.Sprintf("Unknown country %q", code))
	}
	if g.isHome(code) {
		return statusFail(StatusUnauthorized, "A superpower cannot sever itself")
	}
	if country.Overlord != slot {
		return statusFail(StatusUnauthorized, fmt.Sprintf("%s is not in your bloc", country.Name))
	}

	country.Overlord = -1
	g.recomputeIncome(slot)
	g.logEvent("sever_ally", slot, code)

	deltas := []game.Delta{
		game.ToAll("update", g.publicState()),
		game.ToAll("set_player", PlayerUpdate{Slot: slot, Value: g.Players[slot]}),
	}
	deltas = append(deltas, g.advanceTurn()...)
	return game.OK(deltas...)
}

func (g *Game) handleBuild(slot int, code, structure string) game.Result {
	country, ok := g.Countries[code]
	if !ok {
		return statusFail(StatusBadTarget, fmt.Sprintf("Unknown country %q", code))
	}
	if !g.hasAuthority(slot, country) {
		return statusFail(StatusUnauthorized, fmt.Sprintf("You do not control %s", country.Name))
	}

	cost := StructureCost(structure)
	if cost < 0 {
		return statusFail(StatusBadTarget, fmt.Sprintf("Unknown structure %q", structure))
	}
	if g.Players[slot].Money < cost {
		return statusFail(StatusInsufficientFunds,
			fmt.Sprintf("Building a %s costs %d", structure, cost))
	}

	g.Players[slot].Money -= cost
	switch structure {
	case StructureCity:
		country.Cities++
		g.recomputeIncome(slot)
	case StructureSilo:
		country.Silos++
	}
	g.logEvent("build_"+structure, slot, code)

	deltas := []game.Delta{
		game.ToAll("update", g.publicState()),
		game.ToAll("set_player", PlayerUpdate{Slot: slot, Value: g.Players[slot]}),
	}
	deltas = append(deltas, g.advanceTurn()...)
	return game.OK(deltas...)
}

// handleCost prices an action without applying it. It mutates nothing and
// does not advance the turn.
func (g *Game) handleCost(slot int, action Action) game.Result {
	country, ok := g.Countries[action.Country]
	if !ok {
		return statusFail(StatusBadTarget, fmt.Sprintf("Unknown country %q", action.Country))
	}

	var cost int64
	if action.Structure != "" {
		cost = StructureCost(action.Structure)
		if cost < 0 {
			return statusFail(StatusBadTarget, fmt.Sprintf("Unknown structure %q", action.Structure))
		}
	} else {
		cost = AllianceCost(country)
	}

	return game.OK(game.ToSlot(slot, "cost", CostInfo{
		Country:   action.Country,
		Structure: action.Structure,
		Cost:      cost,
	}))
}

// hasAuthority reports whether the slot may act on a country: its own home
// or a country holding it as overlord.
func (g *Game) hasAuthority(slot int, c *Country) bool {
	return g.Players[slot].Home == c.Code || c.Overlord == slot
}

func (g *Game) isHome(code string) bool {
	for slot := range Capacity {
		if g.Players[slot].Home == code {
			return true
		}
	}
	return false
}

// recomputeIncome rederives a player's income from their controlled cities.
func (g *Game) recomputeIncome(slot int) {
	cities := 0
	for _, c := range g.Countries {
		if g.hasAuthority(slot, c) {
			cities += c.Cities
		}
	}
	g.Players[slot].Income = baseIncome + int64(cities)*cityIncome
}

// advanceTurn passes play to the other slot and credits them their income.
func (g *Game) advanceTurn() []game.Delta {
	g.Current = (g.Current + 1) % Capacity
	g.Turn++
	g.Players[g.Current].Money += g.Players[g.Current].Income

	return []game.Delta{
		game.ToAll("set_player", PlayerUpdate{Slot: g.Current, Value: g.Players[g.Current]}),
		game.ToAll("update", g.publicState()),
	}
}

func (g *Game) logEvent(kind string, slot int, country string) {
	g.Events = append(g.Events, Event{Kind: kind, Slot: slot, Country: country, Turn: g.Turn})
}

func statusFail(status Status, message string) game.Result {
	var code string
	switch status {
	case StatusUnauthorized:
		code = "UNAUTHORIZED"
	case StatusInsufficientFunds:
		code = "INSUFFICIENT_FUNDS"
	case StatusBadTarget:
		code = "BAD_TARGET"
	default:
		code = "ERROR"
	}
	return game.Fail(fmt.Sprintf("%s(%d): %s", code, status, message))
}
