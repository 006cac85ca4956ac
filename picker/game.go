/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package picker implements the finger picker game: touches are bound to a
// fixed set of slots, the finger set must hold still for a stability window,
// a countdown builds suspense, and then one active touch is chosen at random.
//
// A Game is not safe for concurrent use. Hosts must deliver touch events and
// timer callbacks from a single goroutine; QueueClock exists for that.
package picker

import "time"

type pendingTimer struct {
	timer Timer
	gen   uint64
}

type Game struct {
	cfg   Config
	pool  *SlotPool
	clock Clock
	rng   Rand
	hooks Hooks

	phase     Phase
	winner    int64
	hasWinner bool

	gen       uint64
	stability pendingTimer
	countdown pendingTimer
}

// New builds a game in the idle phase. A nil rng falls back to math/rand/v2.
func New(cfg Config, clock Clock, rng Rand, hooks Hooks) *Game {
	if rng == nil {
		rng = globalRand{}
	}

	return &Game{
		cfg:   cfg,
		pool:  NewSlotPool(cfg.MaxFingers),
		clock: clock,
		rng:   rng,
		hooks: hooks,
	}
}

func (g *Game) Phase() Phase {
	return g.phase
}

// Winner returns the chosen touch id while one stands.
func (g *Game) Winner() (int64, bool) {
	return g.winner, g.hasWinner
}

func (g *Game) ActiveCount() int {
	return g.pool.ActiveCount()
}

func (g *Game) Config() Config {
	return g.cfg
}

func (g *Game) haptic(h Haptic) {
	if g.hooks.Haptic != nil {
		g.hooks.Haptic(h)
	}
}

func (g *Game) render() {
	if g.hooks.Render != nil {
		g.hooks.Render(g.Snapshot())
	}
}

// startTimer replaces whatever t held with a new callback. The generation
// check drops a callback that fired but was already queued when it was
// replaced or stopped.
func (g *Game) startTimer(t *pendingTimer, d time.Duration, fire func()) {
	g.stopTimer(t)

	g.gen++
	gen := g.gen
	t.gen = gen
	t.timer = g.clock.AfterFunc(d, func() {
		if t.gen != gen {
			return
		}
		t.timer = nil
		t.gen = 0
		fire()
	})
}

func (g *Game) stopTimer(t *pendingTimer) {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = nil
	t.gen = 0
}

func (g *Game) clearWinner() {
	g.winner = 0
	g.hasWinner = false
}

// fingersChanged runs the phase transition for a batch that added or removed
// at least one finger.
func (g *Game) fingersChanged(added, winnerLifted bool) {
	switch g.phase {
	case Idle:
		if g.pool.ActiveCount() > 1 {
			g.phase = WaitingStability
			g.startTimer(&g.stability, g.cfg.StabilityDelay, g.stabilityElapsed)
		}

	case WaitingStability:
		g.startTimer(&g.stability, g.cfg.StabilityDelay, g.stabilityElapsed)

	case Pulsing:
		g.stopTimer(&g.countdown)
		g.phase = WaitingStability
		g.startTimer(&g.stability, g.cfg.StabilityDelay, g.stabilityElapsed)

	case WinnerSelected:
		// A lifted loser leaves the winner standing.
		if added || winnerLifted || g.pool.ActiveCount() == 0 {
			g.restart()
		}
	}
}

// restart clears any result and starts over from the current finger count.
func (g *Game) restart() {
	g.stopTimer(&g.stability)
	g.stopTimer(&g.countdown)
	g.clearWinner()

	if g.pool.ActiveCount() > 1 {
		g.phase = WaitingStability
		g.startTimer(&g.stability, g.cfg.StabilityDelay, g.stabilityElapsed)
		return
	}

	g.phase = Idle
}

func (g *Game) stabilityElapsed() {
	if g.phase != WaitingStability {
		return
	}

	if g.pool.ActiveCount() <= 1 {
		g.phase = Idle
		g.stopTimer(&g.countdown)
		g.render()
		return
	}

	g.phase = Pulsing
	g.clearWinner()
	g.startTimer(&g.countdown, g.cfg.CountdownDelay, g.countdownElapsed)
	g.haptic(HapticPulseStart)
	g.render()
}

func (g *Game) countdownElapsed() {
	if g.phase != Pulsing {
		return
	}

	g.phase = WinnerSelected
	g.selectWinner()
	g.render()
}

// selectWinner runs once per entry into WinnerSelected, over the slots that
// are active now.
func (g *Game) selectWinner() {
	if g.hasWinner {
		return
	}

	active := g.pool.ActiveSlots()

	id, err := SelectWinner(active, g.rng)
	if err != nil {
		g.phase = Idle
		return
	}

	g.winner = id
	g.hasWinner = true
	g.haptic(HapticWinner)
}

// reset drops every touch and timer and returns to idle.
func (g *Game) reset() {
	g.pool.ResetAll()
	g.stopTimer(&g.stability)
	g.stopTimer(&g.countdown)
	g.clearWinner()
	g.phase = Idle
}
