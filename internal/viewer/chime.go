package viewer

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

const chimeSampleRate = beep.SampleRate(44100)

// ToneGenerator is a sine tone with a short attack and exponential decay.
type ToneGenerator struct {
	sr   beep.SampleRate
	freq float64
	pos  int
}

func NewToneGenerator(sr beep.SampleRate, freq float64) *ToneGenerator {
	return &ToneGenerator{sr: sr, freq: freq}
}

func (g *ToneGenerator) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		t := float64(g.pos) / float64(g.sr)

		attack := math.Min(t/0.005, 1.0)
		decay := math.Exp(-t * 12)
		sample := 0.25 * attack * decay * math.Sin(2*math.Pi*g.freq*t)

		samples[i][0] = sample
		samples[i][1] = sample
		g.pos++
	}
	return len(samples), true
}

func (g *ToneGenerator) Err() error {
	return nil
}

// chimeStreamer builds the two-note chime: rising when the sidebar
// appears, falling when it is removed.
func chimeStreamer(sr beep.SampleRate, rising bool) beep.Streamer {
	low, high := 660.0, 880.0
	if !rising {
		low, high = high, low
	}
	note := sr.N(120 * time.Millisecond)
	return beep.Seq(
		beep.Take(note, NewToneGenerator(sr, low)),
		beep.Take(note, NewToneGenerator(sr, high)),
	)
}

// Chime plays a short cue on objective create and remove. A Chime whose
// speaker could not be opened stays silent.
type Chime struct {
	mu          sync.Mutex
	mixer       *beep.Mixer
	initialized bool
}

// NewChime opens the speaker. The error is informational; the returned
// Chime is always usable.
func NewChime() (*Chime, error) {
	c := &Chime{mixer: &beep.Mixer{}}
	if err := speaker.Init(chimeSampleRate, chimeSampleRate.N(100*time.Millisecond)); err != nil {
		return c, err
	}
	speaker.Play(c.mixer)
	c.initialized = true
	return c, nil
}

// Notify plays the cue for change, if it has one.
func (c *Chime) Notify(change Change) {
	if c == nil {
		return
	}
	var rising bool
	switch change {
	case ChangeCreated:
		rising = true
	case ChangeRemoved:
		rising = false
	default:
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return
	}
	speaker.Lock()
	c.mixer.Add(chimeStreamer(chimeSampleRate, rising))
	speaker.Unlock()
}

// Close silences the chime.
func (c *Chime) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return
	}
	speaker.Lock()
	c.mixer.Clear()
	speaker.Unlock()
	speaker.Close()
	c.initialized = false
}
