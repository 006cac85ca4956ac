package picker

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t       *testing.T
	clock   *ManualClock
	rng     *scriptedRand
	game    *Game
	haptics []Haptic
	renders []Snapshot
}

func newHarness(t *testing.T, picks ...int) *harness {
	t.Helper()

	h := &harness{
		t:     t,
		clock: NewManualClock(time.Unix(0, 0)),
		rng:   &scriptedRand{picks: picks},
	}
	h.game = New(DefaultConfig(), h.clock, h.rng, Hooks{
		Haptic: func(k Haptic) { h.haptics = append(h.haptics, k) },
		Render: func(s Snapshot) { h.renders = append(h.renders, s) },
	})

	return h
}

func contacts(ids ...int64) []Contact {
	out := make([]Contact, len(ids))
	for i, id := range ids {
		out[i] = Contact{ID: id, X: float64(id * 10), Y: float64(id * 20)}
	}
	return out
}

func (h *harness) down(ids ...int64) { h.game.OnTouchEvent(Down, contacts(ids...)) }
func (h *harness) up(ids ...int64)   { h.game.OnTouchEvent(Up, contacts(ids...)) }
func (h *harness) cancel()           { h.game.OnTouchEvent(Cancelled, nil) }

func (h *harness) advance(d time.Duration) { h.clock.Advance(d) }

func (h *harness) count(k Haptic) int {
	n := 0
	for _, got := range h.haptics {
		if got == k {
			n++
		}
	}
	return n
}

func (h *harness) requirePhase(want Phase) {
	h.t.Helper()
	require.Equal(h.t, want, h.game.Phase())
}

// toWinner drives two fingers all the way to a selected winner.
func (h *harness) toWinner(ids ...int64) {
	h.t.Helper()
	h.down(ids...)
	h.advance(DefaultStabilityDelay)
	h.requirePhase(Pulsing)
	h.advance(DefaultCountdownDelay)
	h.requirePhase(WinnerSelected)
}

func TestSingleFingerStaysIdle(t *testing.T) {
	h := newHarness(t)

	h.down(1)
	h.advance(10 * time.Second)

	h.requirePhase(Idle)
	assert.Equal(t, 1, h.count(HapticTouchDown))
	assert.Equal(t, 0, h.clock.Pending())
}

func TestTwoFingersReachWinner(t *testing.T) {
	h := newHarness(t, 1)

	h.down(1)
	h.down(2)
	h.requirePhase(WaitingStability)

	h.advance(499 * time.Millisecond)
	h.requirePhase(WaitingStability)

	h.advance(time.Millisecond)
	h.requirePhase(Pulsing)
	assert.Equal(t, 1, h.count(HapticPulseStart))

	h.advance(2999 * time.Millisecond)
	h.requirePhase(Pulsing)

	h.advance(time.Millisecond)
	h.requirePhase(WinnerSelected)

	winner, ok := h.game.Winner()
	require.True(t, ok)
	assert.Contains(t, []int64{1, 2}, winner)
	assert.Equal(t, int64(2), winner)
	assert.Equal(t, 1, h.count(HapticWinner))
	assert.Equal(t, []int{2}, h.rng.bounds)
}

func TestNewFingerExtendsStabilityWindow(t *testing.T) {
	h := newHarness(t)

	h.down(1)
	h.down(2)
	h.advance(400 * time.Millisecond)
	h.down(3)

	h.advance(499 * time.Millisecond)
	h.requirePhase(WaitingStability)

	h.advance(time.Millisecond)
	h.requirePhase(Pulsing)
	assert.Equal(t, 1, h.count(HapticPulseStart), "superseded stability timer must not fire")
}

func TestLiftingLoserKeepsWinner(t *testing.T) {
	h := newHarness(t, 0)
	h.toWinner(1, 2)

	winner, _ := h.game.Winner()
	require.Equal(t, int64(1), winner)

	h.up(2)
	h.requirePhase(WinnerSelected)
	winner, ok := h.game.Winner()
	assert.True(t, ok)
	assert.Equal(t, int64(1), winner)

	h.up(1)
	h.requirePhase(Idle)
	assert.Equal(t, 0, h.game.ActiveCount())
	_, ok = h.game.Winner()
	assert.False(t, ok)
}

func TestLiftingWinnerRestartsWithRemainingFingers(t *testing.T) {
	h := newHarness(t, 0)
	h.toWinner(1, 2, 3)

	h.up(1)
	h.requirePhase(WaitingStability)
	_, ok := h.game.Winner()
	assert.False(t, ok)

	h.advance(DefaultStabilityDelay)
	h.requirePhase(Pulsing)
}

func TestFingerDuringCountdownRestartsStability(t *testing.T) {
	h := newHarness(t)

	h.down(1, 2)
	h.advance(DefaultStabilityDelay)
	h.requirePhase(Pulsing)

	h.down(3)
	h.requirePhase(WaitingStability)

	// The countdown must be gone; only the new stability window is pending.
	assert.Equal(t, 1, h.clock.Pending())

	h.advance(DefaultStabilityDelay - time.Millisecond)
	h.requirePhase(WaitingStability)

	h.advance(time.Millisecond)
	h.requirePhase(Pulsing)

	h.advance(DefaultCountdownDelay)
	h.requirePhase(WinnerSelected)
	assert.Equal(t, 1, h.count(HapticWinner))
}

func TestLiftDuringCountdownRestartsStability(t *testing.T) {
	h := newHarness(t)

	h.down(1, 2, 3)
	h.advance(DefaultStabilityDelay)
	h.up(3)
	h.requirePhase(WaitingStability)

	h.advance(DefaultCountdownDelay)
	assert.Equal(t, 0, h.count(HapticWinner))
	h.requirePhase(Pulsing)
}

func TestDroppingToOneFingerFallsBackToIdle(t *testing.T) {
	h := newHarness(t)

	h.down(1, 2)
	h.advance(DefaultStabilityDelay)
	h.up(2)
	h.requirePhase(WaitingStability)

	h.advance(DefaultStabilityDelay)
	h.requirePhase(Idle)
	assert.Equal(t, 0, h.clock.Pending())
	assert.Equal(t, 0, h.count(HapticWinner))
}

func TestNewFingerAfterWinnerStartsOver(t *testing.T) {
	h := newHarness(t, 0)
	h.toWinner(1, 2)

	h.down(3)
	h.requirePhase(WaitingStability)
	_, ok := h.game.Winner()
	assert.False(t, ok)
}

func TestBatchNotifiesOnce(t *testing.T) {
	h := newHarness(t)

	h.down(1, 2, 3)
	assert.Equal(t, 1, h.count(HapticTouchDown))
	assert.Equal(t, 3, h.game.ActiveCount())
	assert.Equal(t, 1, h.clock.Pending())
	h.requirePhase(WaitingStability)
}

func TestExcessFingersAreDropped(t *testing.T) {
	h := newHarness(t)

	h.down(1, 2, 3, 4, 5)
	h.down(6)
	assert.Equal(t, DefaultMaxFingers, h.game.ActiveCount())
	assert.Equal(t, 1, h.count(HapticTouchDown), "a fully dropped batch plays no haptic")

	h.up(6)
	assert.Equal(t, DefaultMaxFingers, h.game.ActiveCount())

	h.up(5)
	h.down(6)
	assert.Equal(t, DefaultMaxFingers, h.game.ActiveCount())
	assert.Equal(t, 2, h.count(HapticTouchDown))
}

func TestMoveDoesNotChangePhase(t *testing.T) {
	h := newHarness(t)

	h.down(1, 2)
	h.advance(300 * time.Millisecond)
	h.game.OnTouchEvent(Move, []Contact{{ID: 2, X: 77, Y: 88}, {ID: 99, X: 1, Y: 1}})

	h.advance(200 * time.Millisecond)
	h.requirePhase(Pulsing)

	snap := h.game.Snapshot()
	assert.Equal(t, Point{X: 77, Y: 88}, snap.Slots[1].Position)
}

func TestUnknownUpIsIgnored(t *testing.T) {
	h := newHarness(t)

	h.down(1, 2)
	renders := len(h.renders)
	h.up(42)
	h.up(42)

	assert.Equal(t, renders, len(h.renders))
	assert.Equal(t, 2, h.game.ActiveCount())
	h.requirePhase(WaitingStability)
}

func TestCancelIsHardResetAndIdempotent(t *testing.T) {
	h := newHarness(t)

	h.down(1, 2, 3)
	h.advance(DefaultStabilityDelay)
	h.requirePhase(Pulsing)

	h.cancel()
	first := h.game.Snapshot()
	h.cancel()
	second := h.game.Snapshot()

	assert.Equal(t, first, second)
	assert.Equal(t, Idle, second.Phase)
	assert.Equal(t, 0, second.FingerCount)
	assert.True(t, second.ShowInstructions)
	assert.Equal(t, 0, h.clock.Pending())

	h.advance(time.Minute)
	h.requirePhase(Idle)
	assert.Equal(t, 0, h.count(HapticWinner))

	// Ids from before the reset are free to touch down again.
	h.down(1, 2)
	assert.Equal(t, 2, h.game.ActiveCount())
}

func TestCancelClearsWinner(t *testing.T) {
	h := newHarness(t, 1)
	h.toWinner(1, 2)

	h.cancel()
	h.requirePhase(Idle)
	_, ok := h.game.Winner()
	assert.False(t, ok)
	assert.Nil(t, h.game.Snapshot().Winner)
}

func TestSelectionReadsActiveSlotsAtEntry(t *testing.T) {
	h := newHarness(t, 2)

	h.down(1, 2)
	h.advance(DefaultStabilityDelay)
	h.up(2)
	h.down(2, 3)
	h.advance(DefaultStabilityDelay)
	h.advance(DefaultCountdownDelay)

	winner, ok := h.game.Winner()
	require.True(t, ok)
	assert.Equal(t, int64(3), winner)
	assert.Equal(t, []int{3}, h.rng.bounds)
}

func TestEmptyCountdownSkipsSelection(t *testing.T) {
	h := newHarness(t)

	h.game.phase = Pulsing
	h.game.countdownElapsed()

	h.requirePhase(Idle)
	assert.Empty(t, h.rng.bounds)
	assert.Equal(t, 0, h.count(HapticWinner))
}

func TestSelectionRunsOncePerEntry(t *testing.T) {
	h := newHarness(t, 0, 1)
	h.toWinner(1, 2)

	h.game.selectWinner()

	winner, _ := h.game.Winner()
	assert.Equal(t, int64(1), winner)
	assert.Equal(t, []int{2}, h.rng.bounds)
	assert.Equal(t, 1, h.count(HapticWinner))
}

// leakyClock never cancels anything, so every callback can still be run by
// hand after the game has replaced it.
type leakyClock struct {
	fns []func()
}

type leakyTimer struct{}

func (leakyTimer) Stop() bool { return false }

func (c *leakyClock) AfterFunc(_ time.Duration, f func()) Timer {
	c.fns = append(c.fns, f)
	return leakyTimer{}
}

func TestStaleTimerCallbacksAreIgnored(t *testing.T) {
	clock := &leakyClock{}
	var haptics []Haptic
	g := New(DefaultConfig(), clock, &scriptedRand{}, Hooks{
		Haptic: func(k Haptic) { haptics = append(haptics, k) },
	})

	g.OnTouchEvent(Down, contacts(1, 2))
	g.OnTouchEvent(Down, contacts(3))
	require.Len(t, clock.fns, 2)

	clock.fns[0]()
	assert.Equal(t, WaitingStability, g.Phase())

	clock.fns[1]()
	assert.Equal(t, Pulsing, g.Phase())
	require.Len(t, clock.fns, 3)

	clock.fns[1]()
	assert.Len(t, clock.fns, 3, "a fired stability timer cannot fire twice")

	g.OnTouchEvent(Up, contacts(3))
	clock.fns[2]()
	assert.Equal(t, WaitingStability, g.Phase())
	assert.NotContains(t, haptics, HapticWinner)
}

func TestActiveCountMatchesHeldTouches(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for run := 0; run < 50; run++ {
		h := newHarness(t)
		held := map[int64]bool{}
		tracked := map[int64]bool{}

		for step := 0; step < 200; step++ {
			id := int64(rng.IntN(9))
			if held[id] {
				h.up(id)
				delete(held, id)
				delete(tracked, id)
			} else {
				h.down(id)
				held[id] = true
				if len(tracked) < DefaultMaxFingers {
					tracked[id] = true
				}
			}

			if rng.IntN(4) == 0 {
				h.advance(time.Duration(rng.IntN(1000)) * time.Millisecond)
			}

			require.Equal(t, len(tracked), h.game.ActiveCount(), "run %d step %d", run, step)
			require.LessOrEqual(t, h.game.ActiveCount(), DefaultMaxFingers)
		}
	}
}

func TestSnapshotVisuals(t *testing.T) {
	h := newHarness(t, 1)

	h.down(1, 2)
	snap := h.game.Snapshot()
	assert.Equal(t, VisualActive, snap.Slots[0].Visual)
	assert.Equal(t, VisualHidden, snap.Slots[2].Visual)
	assert.False(t, snap.ShowInstructions)
	assert.Equal(t, 2, snap.FingerCount)

	h.advance(DefaultStabilityDelay)
	snap = h.game.Snapshot()
	assert.Equal(t, VisualPulsing, snap.Slots[0].Visual)
	assert.Equal(t, VisualPulsing, snap.Slots[1].Visual)

	h.advance(DefaultCountdownDelay)
	snap = h.game.Snapshot()
	require.NotNil(t, snap.Winner)
	assert.Equal(t, int64(2), *snap.Winner)
	assert.Equal(t, VisualEliminated, snap.Slots[0].Visual)
	assert.Equal(t, VisualWinner, snap.Slots[1].Visual)
	assert.True(t, snap.Slots[1].IsWinner)
	assert.False(t, snap.Slots[0].IsWinner)

	last := h.renders[len(h.renders)-1]
	assert.Equal(t, snap, last)
}

func TestCustomConfig(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	cfg := Config{MaxFingers: 2, StabilityDelay: 10 * time.Millisecond, CountdownDelay: 20 * time.Millisecond}
	require.NoError(t, cfg.Validate())

	g := New(cfg, clock, nil, Hooks{})
	g.OnTouchEvent(Down, contacts(1, 2, 3))
	assert.Equal(t, 2, g.ActiveCount())

	clock.Advance(30 * time.Millisecond)
	assert.Equal(t, WinnerSelected, g.Phase())
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.MaxFingers = 1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.StabilityDelay = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.CountdownDelay = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestParseTouchKind(t *testing.T) {
	for in, want := range map[string]TouchKind{
		"down": Down, "start": Down, "move": Move,
		"up": Up, "end": Up, "cancelled": Cancelled, "cancel": Cancelled,
	} {
		got, err := ParseTouchKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTouchKind("hover")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestPhaseText(t *testing.T) {
	b, err := WinnerSelected.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "winner_selected", string(b))
	assert.Equal(t, "waiting_stability", WaitingStability.String())
}
