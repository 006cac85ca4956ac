/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package picker

import "errors"

var (
	ErrPoolFull     = errors.New("no free finger slot")
	ErrTouchBound   = errors.New("touch already bound to a slot")
	ErrUnknownTouch = errors.New("touch not bound to any slot")
)

// Slot is one fixed finger position. A slot is free when it is neither
// active nor bound to a touch.
type Slot struct {
	Index    int
	TouchID  int64
	Bound    bool
	Position Point
	Active   bool
}

func (s Slot) free() bool {
	return !s.Active && !s.Bound
}

// SlotPool maps live touch ids onto a fixed number of slots. Free slots are
// handed out lowest index first.
type SlotPool struct {
	slots  []Slot
	active int
}

// NewSlotPool returns a pool of capacity free slots.
func NewSlotPool(capacity int) *SlotPool {
	slots := make([]Slot, capacity)
	for i := range slots {
		slots[i].Index = i
	}

	return &SlotPool{slots: slots}
}

func (p *SlotPool) find(id int64) int {
	for i := range p.slots {
		if p.slots[i].Bound && p.slots[i].TouchID == id {
			return i
		}
	}
	return -1
}

// Allocate binds id to the lowest free slot at pos.
func (p *SlotPool) Allocate(id int64, pos Point) (int, error) {
	if p.find(id) >= 0 {
		return -1, ErrTouchBound
	}

	for i := range p.slots {
		if !p.slots[i].free() {
			continue
		}

		p.slots[i] = Slot{
			Index:    i,
			TouchID:  id,
			Bound:    true,
			Position: pos,
			Active:   true,
		}
		p.active++

		return i, nil
	}

	return -1, ErrPoolFull
}

// Move updates the position of the slot bound to id.
func (p *SlotPool) Move(id int64, pos Point) (int, error) {
	i := p.find(id)
	if i < 0 {
		return -1, ErrUnknownTouch
	}

	p.slots[i].Position = pos

	return i, nil
}

// Release frees the slot bound to id. The last known position is kept so a
// renderer can fade the slot out where it was.
func (p *SlotPool) Release(id int64) (int, error) {
	i := p.find(id)
	if i < 0 {
		return -1, ErrUnknownTouch
	}

	p.clear(i)

	return i, nil
}

func (p *SlotPool) clear(i int) {
	if p.slots[i].Active {
		p.active--
	}
	p.slots[i].Active = false
	p.slots[i].Bound = false
	p.slots[i].TouchID = 0
}

// ResetAll frees every slot.
func (p *SlotPool) ResetAll() {
	for i := range p.slots {
		p.clear(i)
	}
	p.active = 0
}

// ActiveSlots returns copies of the active slots in index order.
func (p *SlotPool) ActiveSlots() []Slot {
	out := make([]Slot, 0, p.active)
	for _, s := range p.slots {
		if s.Active {
			out = append(out, s)
		}
	}
	return out
}

func (p *SlotPool) ActiveCount() int {
	return p.active
}

func (p *SlotPool) Capacity() int {
	return len(p.slots)
}

func (p *SlotPool) Slots() []Slot {
	out := make([]Slot, len(p.slots))
	copy(out, p.slots)
	return out
}
