/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"
	"math"

	"github.com/Seednode/fingerpick/picker"
	"github.com/gdamore/tcell/v2"
)

const (
	ringRadiusX = 6
	ringRadiusY = 3

	// Virtual fingers toggled from the keyboard use ids well clear of the
	// mouse buttons.
	virtualTouchBase = 100
)

var mouseTouches = []struct {
	mask tcell.ButtonMask
	id   int64
}{
	{tcell.Button1, 1},
	{tcell.Button2, 2},
	{tcell.Button3, 3},
}

var (
	styleDefault    = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorReset)
	styleActive     = styleDefault.Bold(true)
	stylePulsing    = styleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleWinner     = styleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite).Bold(true)
	styleEliminated = styleDefault.Foreground(tcell.ColorGray).Dim(true)
	styleStatus     = styleDefault.Reverse(true)
)

type terminalHost struct {
	screen  tcell.Screen
	game    *picker.Game
	snap    picker.Snapshot
	buttons tcell.ButtonMask
	virtual map[int64]bool
}

func newTerminalHost(cfg *Config, screen tcell.Screen, clock picker.Clock, haptic func(picker.Haptic)) *terminalHost {
	h := &terminalHost{
		screen:  screen,
		virtual: make(map[int64]bool),
	}

	h.game = picker.New(cfg.game(), clock, nil, picker.Hooks{
		Haptic: haptic,
		Render: h.render,
	})
	h.snap = h.game.Snapshot()

	return h
}

// RunTerminal plays on the local terminal until ctx ends or the user quits.
// The event loop below is the only goroutine that touches the game.
func RunTerminal(ctx context.Context, cfg *Config) error {
	sound, err := newTonePlayer(cfg.mute)
	if err != nil {
		errorf("Audio unavailable, continuing without sound: %v", err)
	}
	defer sound.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	defer screen.Fini()

	screen.EnableMouse()
	screen.HideCursor()

	done := make(chan struct{})
	defer close(done)

	timers := make(chan func())
	host := newTerminalHost(cfg, screen, picker.NewQueueClock(timers, done), sound.Play)
	host.draw()

	events := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fire := <-timers:
			fire()
		case ev := <-events:
			if !host.handle(ev) {
				return nil
			}
		}
	}
}

// handle applies one terminal event and reports whether to keep running.
func (h *terminalHost) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() != tcell.KeyRune {
			return true
		}

		switch r := ev.Rune(); {
		case r == 'q':
			return false
		case r == 'c':
			h.cancel()
		case r >= '1' && r <= '9':
			h.toggleVirtual(int(r - '0'))
		}

	case *tcell.EventMouse:
		x, y := ev.Position()
		h.mouse(ev.Buttons(), x, y)

	case *tcell.EventResize:
		h.screen.Sync()
		h.draw()
	}

	return true
}

// buttonChanges diffs two button masks into touch batches at (x, y).
func buttonChanges(prev, cur tcell.ButtonMask, x, y int) (down, up, moved []picker.Contact) {
	for _, b := range mouseTouches {
		was := prev&b.mask != 0
		is := cur&b.mask != 0
		c := picker.Contact{ID: b.id, X: float64(x), Y: float64(y)}

		switch {
		case is && !was:
			down = append(down, c)
		case was && !is:
			up = append(up, c)
		case is && was:
			moved = append(moved, c)
		}
	}
	return down, up, moved
}

func (h *terminalHost) mouse(buttons tcell.ButtonMask, x, y int) {
	down, up, moved := buttonChanges(h.buttons, buttons, x, y)
	h.buttons = buttons

	if len(up) > 0 {
		h.game.OnTouchEvent(picker.Up, up)
	}
	if len(moved) > 0 {
		h.game.OnTouchEvent(picker.Move, moved)
	}
	if len(down) > 0 {
		h.game.OnTouchEvent(picker.Down, down)
	}
}

// virtualSpot places keyboard finger n (1-9) on an ellipse around the
// centre of a w×h screen.
func virtualSpot(n, w, h int) picker.Point {
	angle := 2 * math.Pi * float64(n-1) / 9
	rx := float64(w) / 3
	ry := float64(h) / 3

	return picker.Point{
		X: math.Round(float64(w)/2 + rx*math.Cos(angle)),
		Y: math.Round(float64(h)/2 + ry*math.Sin(angle)),
	}
}

func (h *terminalHost) toggleVirtual(n int) {
	id := int64(virtualTouchBase + n)

	w, ht := h.screen.Size()
	p := virtualSpot(n, w, ht)
	c := []picker.Contact{{ID: id, X: p.X, Y: p.Y}}

	if h.virtual[id] {
		delete(h.virtual, id)
		h.game.OnTouchEvent(picker.Up, c)
		return
	}

	h.virtual[id] = true
	h.game.OnTouchEvent(picker.Down, c)
}

// cancel drops every finger, as if the OS had interrupted the touches.
func (h *terminalHost) cancel() {
	h.buttons = 0
	clear(h.virtual)
	h.game.OnTouchEvent(picker.Cancelled, nil)
}

func (h *terminalHost) render(snap picker.Snapshot) {
	h.snap = snap
	h.draw()
}

func slotStyle(v picker.Visual) tcell.Style {
	switch v {
	case picker.VisualPulsing:
		return stylePulsing
	case picker.VisualWinner:
		return styleWinner
	case picker.VisualEliminated:
		return styleEliminated
	}
	return styleActive
}

// ringCell reports whether the cell offset (dx, dy) lies on the ring, and
// whether it lies inside it.
func ringCell(dx, dy int) (edge, inside bool) {
	d := math.Pow(float64(dx)/ringRadiusX, 2) + math.Pow(float64(dy)/ringRadiusY, 2)
	return d >= 0.55 && d <= 1.15, d < 0.55
}

func (h *terminalHost) drawText(x, y int, s string, style tcell.Style) {
	for i, r := range []rune(s) {
		h.screen.SetContent(x+i, y, r, nil, style)
	}
}

func (h *terminalHost) drawSlot(s picker.SlotView) {
	cx := int(math.Round(s.Position.X))
	cy := int(math.Round(s.Position.Y))
	style := slotStyle(s.Visual)

	for dy := -ringRadiusY; dy <= ringRadiusY; dy++ {
		for dx := -ringRadiusX; dx <= ringRadiusX; dx++ {
			edge, inside := ringCell(dx, dy)
			switch {
			case edge:
				h.screen.SetContent(cx+dx, cy+dy, '●', nil, style)
			case inside && s.Visual == picker.VisualWinner:
				h.screen.SetContent(cx+dx, cy+dy, ' ', nil, style)
			}
		}
	}

	h.screen.SetContent(cx, cy, rune('1'+s.Index), nil, style)
}

func (h *terminalHost) draw() {
	h.screen.Clear()

	w, ht := h.screen.Size()

	for _, s := range h.snap.Slots {
		if s.Visual == picker.VisualHidden {
			continue
		}
		h.drawSlot(s)
	}

	if h.snap.ShowInstructions {
		msg := fmt.Sprintf("Place up to %d fingers", h.game.Config().MaxFingers)
		h.drawText((w-len(msg))/2, ht/2, msg, styleDefault)
	}

	status := fmt.Sprintf(" %s | fingers: %d | mouse buttons or keys 1-9 to touch, c cancel, q quit ",
		h.snap.Phase, h.snap.FingerCount)
	h.drawText(0, ht-1, status, styleStatus)

	h.screen.Show()
}
