package speech

import "time"

// Sink is the audio output device. Start begins playing buf and calls
// onEnded when it finishes on its own; Stop on the returned Playback
// halts it without calling onEnded. onEnded must not run inside Start.
type Sink interface {
	Start(buf *Buffer, onEnded func()) Playback
}

type Playback interface {
	Stop()
}

// ClockSink tracks playback by wall clock for the buffer's duration. The
// server has no speaker; the client plays the exported WAV while the
// visitor's state reports it as playing.
type ClockSink struct{}

func (ClockSink) Start(buf *Buffer, onEnded func()) Playback {
	return clockPlayback{timer: time.AfterFunc(buf.Duration(), onEnded)}
}

type clockPlayback struct {
	timer *time.Timer
}

func (p clockPlayback) Stop() {
	p.timer.Stop()
}
