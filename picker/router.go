/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package picker

// OnTouchEvent applies one batch of contacts. Phase transitions run once per
// batch, after every contact has been applied. Unknown ids, duplicate downs
// and touches beyond the slot limit are ignored.
func (g *Game) OnTouchEvent(kind TouchKind, contacts []Contact) {
	switch kind {
	case Down:
		g.touchesDown(contacts)
	case Move:
		g.touchesMoved(contacts)
	case Up:
		g.touchesUp(contacts)
	case Cancelled:
		g.reset()
		g.render()
	}
}

func (g *Game) touchesDown(contacts []Contact) {
	added := 0
	for _, c := range contacts {
		if _, err := g.pool.Allocate(c.ID, c.Point()); err != nil {
			continue
		}
		added++
	}

	if added == 0 {
		return
	}

	g.haptic(HapticTouchDown)
	g.fingersChanged(true, false)
	g.render()
}

func (g *Game) touchesMoved(contacts []Contact) {
	moved := 0
	for _, c := range contacts {
		if _, err := g.pool.Move(c.ID, c.Point()); err != nil {
			continue
		}
		moved++
	}

	if moved > 0 {
		g.render()
	}
}

func (g *Game) touchesUp(contacts []Contact) {
	removed := 0
	winnerLifted := false

	for _, c := range contacts {
		if _, err := g.pool.Release(c.ID); err != nil {
			continue
		}
		removed++

		if g.phase == WinnerSelected && g.hasWinner && c.ID == g.winner {
			winnerLifted = true
		}
	}

	if removed == 0 {
		return
	}

	g.fingersChanged(false, winnerLifted)
	g.render()
}
