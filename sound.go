/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"sync"
	"time"

	"github.com/Seednode/fingerpick/picker"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(44100)

type tone struct {
	freq     float64
	duration time.Duration
}

// Terminals cannot vibrate, so each haptic becomes a short tone pattern.
var hapticTones = map[picker.Haptic][]tone{
	picker.HapticTouchDown:  {{freq: 440, duration: 40 * time.Millisecond}},
	picker.HapticPulseStart: {{freq: 660, duration: 30 * time.Millisecond}},
	picker.HapticWinner: {
		{freq: 660, duration: 90 * time.Millisecond},
		{freq: 880, duration: 90 * time.Millisecond},
		{freq: 1320, duration: 180 * time.Millisecond},
	},
}

type tonePlayer struct {
	mu    sync.Mutex
	ready bool
}

// newTonePlayer opens the speaker unless muted. Failing to open it leaves a
// silent player and returns the error for the caller to report.
func newTonePlayer(mute bool) (*tonePlayer, error) {
	p := &tonePlayer{}
	if mute {
		return p, nil
	}

	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		return p, err
	}
	p.ready = true

	return p, nil
}

func (p *tonePlayer) streamer(kind picker.Haptic) (beep.Streamer, error) {
	tones := hapticTones[kind]
	if len(tones) == 0 {
		return nil, nil
	}

	parts := make([]beep.Streamer, 0, len(tones))
	for _, t := range tones {
		sine, err := generators.SineTone(sampleRate, t.freq)
		if err != nil {
			return nil, err
		}
		parts = append(parts, beep.Take(sampleRate.N(t.duration), sine))
	}

	return beep.Seq(parts...), nil
}

// Play starts the tone for kind and returns immediately.
func (p *tonePlayer) Play(kind picker.Haptic) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return
	}

	s, err := p.streamer(kind)
	if err != nil || s == nil {
		return
	}

	speaker.Play(s)
}

func (p *tonePlayer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return
	}

	speaker.Clear()
	speaker.Close()
	p.ready = false
}
