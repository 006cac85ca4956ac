/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package picker

// SlotView is the render state of one slot.
type SlotView struct {
	Index    int    `json:"index"`
	Active   bool   `json:"active"`
	Position Point  `json:"position"`
	IsWinner bool   `json:"is_winner"`
	Visual   Visual `json:"visual"`
}

// Snapshot is an immutable copy of the game state for renderers.
type Snapshot struct {
	Phase            Phase      `json:"phase"`
	Slots            []SlotView `json:"slots"`
	FingerCount      int        `json:"debug_finger_count"`
	Winner           *int64     `json:"winner,omitempty"`
	ShowInstructions bool       `json:"show_instructions"`
}

func (g *Game) Snapshot() Snapshot {
	slots := g.pool.Slots()

	snap := Snapshot{
		Phase:            g.phase,
		Slots:            make([]SlotView, len(slots)),
		FingerCount:      g.pool.ActiveCount(),
		ShowInstructions: g.pool.ActiveCount() == 0,
	}

	if g.hasWinner {
		id := g.winner
		snap.Winner = &id
	}

	for i, s := range slots {
		isWinner := g.hasWinner && s.Bound && s.TouchID == g.winner

		snap.Slots[i] = SlotView{
			Index:    s.Index,
			Active:   s.Active,
			Position: s.Position,
			IsWinner: isWinner,
			Visual:   g.visual(s, isWinner),
		}
	}

	return snap
}

func (g *Game) visual(s Slot, isWinner bool) Visual {
	if !s.Active {
		return VisualHidden
	}

	switch g.phase {
	case Pulsing:
		return VisualPulsing
	case WinnerSelected:
		if isWinner {
			return VisualWinner
		}
		if g.hasWinner {
			return VisualEliminated
		}
	}

	return VisualActive
}
