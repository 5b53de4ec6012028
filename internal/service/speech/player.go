package speech

import (
	"context"
	"fmt"
	"sync"
	"time"

	"orientachat/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Synthesizer returns raw PCM16 audio for a piece of text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

const (
	DefaultAutoPlayDelay    = 100 * time.Millisecond
	defaultSynthesisTimeout = 60 * time.Second
)

type Option func(*Player)

func WithAutoPlayDelay(d time.Duration) Option {
	return func(p *Player) { p.autoPlayDelay = d }
}

func WithSynthesisTimeout(d time.Duration) Option {
	return func(p *Player) { p.synthTimeout = d }
}

// State is what the chat surface renders for audio controls.
type State struct {
	PlayingID string `json:"playing_id,omitempty"`
	LoadingID string `json:"loading_id,omitempty"`
	AutoPlay  bool   `json:"auto_play"`
}

// Player reads messages aloud, one at a time. Synthesized audio is cached per
// message id until the cache is cleared. Synthesis failures are logged and
// otherwise ignored.
type Player struct {
	synth         Synthesizer
	sink          Sink
	cache         *Cache
	autoPlayDelay time.Duration
	synthTimeout  time.Duration
	flights       singleflight.Group

	mu        sync.Mutex
	playingID string
	current   Playback
	token     uint64 // identifies the active playback
	request   uint64 // latest play request
	loadingID string
	cacheGen  uint64
	autoPlay  bool
	timers    map[*time.Timer]struct{}
	closed    bool
}

func NewPlayer(synth Synthesizer, sink Sink, opts ...Option) *Player {
	if sink == nil {
		sink = ClockSink{}
	}
	p := &Player{
		synth:         synth,
		sink:          sink,
		cache:         NewCache(),
		autoPlayDelay: DefaultAutoPlayDelay,
		synthTimeout:  defaultSynthesisTimeout,
		timers:        make(map[*time.Timer]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Play toggles playback of a message. Playing the message that is already
// playing stops it. Otherwise whatever is playing stops and the message's
// audio starts, synthesized first on a cache miss. A request overtaken by a
// newer one while synthesizing only fills the cache.
func (p *Player) Play(ctx context.Context, id, text string) State {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return p.State()
	}
	if id != "" && p.playingID == id {
		p.stopLocked()
		p.mu.Unlock()
		return p.State()
	}
	p.stopLocked()
	p.request++
	req, gen := p.request, p.cacheGen
	if buf, ok := p.cache.Get(id); ok {
		p.startLocked(id, buf)
		p.mu.Unlock()
		return p.State()
	}
	p.loadingID = id
	p.mu.Unlock()

	buf, err := p.load(ctx, gen, id, text)

	p.mu.Lock()
	if req == p.request {
		p.loadingID = ""
	}
	switch {
	case err != nil:
		logger.Get().Error("speech synthesis failed", zap.String("message_id", id), zap.Error(err))
	case req == p.request && !p.closed:
		p.startLocked(id, buf)
	}
	p.mu.Unlock()
	return p.State()
}

// load synthesizes and decodes once per id and cache generation, however
// many requests are waiting on it.
func (p *Player) load(ctx context.Context, gen uint64, id, text string) (*Buffer, error) {
	key := fmt.Sprintf("%d/%s", gen, id)
	v, err, _ := p.flights.Do(key, func() (any, error) {
		if buf, ok := p.cache.Get(id); ok {
			return buf, nil
		}
		synthCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.synthTimeout)
		defer cancel()
		raw, err := p.synth.Synthesize(synthCtx, text)
		if err != nil {
			return nil, err
		}
		buf := Decode(raw)
		p.mu.Lock()
		if gen == p.cacheGen {
			buf = p.cache.Put(id, buf)
		}
		p.mu.Unlock()
		return buf, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Buffer), nil
}

func (p *Player) startLocked(id string, buf *Buffer) {
	p.token++
	token := p.token
	p.playingID = id
	p.current = p.sink.Start(buf, func() { p.ended(token) })
}

// ended handles the natural end of a playback. The cache entry stays.
func (p *Player) ended(token uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if token != p.token || p.current == nil {
		return
	}
	p.current = nil
	p.playingID = ""
}

func (p *Player) stopLocked() {
	if p.current != nil {
		p.current.Stop()
		p.current = nil
	}
	p.playingID = ""
}

// Stop halts playback and abandons any pending request.
func (p *Player) Stop() {
	p.mu.Lock()
	p.stopLocked()
	p.request++
	p.loadingID = ""
	p.mu.Unlock()
}

// ScheduleAutoPlay plays a freshly finalized message after the settle delay
// if auto-play is enabled when the delay elapses.
func (p *Player) ScheduleAutoPlay(id, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	gen := p.cacheGen
	var timer *time.Timer
	timer = time.AfterFunc(p.autoPlayDelay, func() {
		p.mu.Lock()
		delete(p.timers, timer)
		enabled := p.autoPlay && !p.closed && gen == p.cacheGen
		p.mu.Unlock()
		if enabled {
			p.Play(context.Background(), id, text)
		}
	})
	p.timers[timer] = struct{}{}
}

// CancelAutoPlay drops every auto-play still waiting for its delay.
func (p *Player) CancelAutoPlay() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTimersLocked()
}

func (p *Player) stopTimersLocked() {
	for timer := range p.timers {
		timer.Stop()
	}
	p.timers = make(map[*time.Timer]struct{})
}

func (p *Player) SetAutoPlay(enabled bool) {
	p.mu.Lock()
	p.autoPlay = enabled
	p.mu.Unlock()
}

func (p *Player) AutoPlay() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.autoPlay
}

// ClearCache drops every cached buffer. Syntheses still running will not
// repopulate it.
func (p *Player) ClearCache() {
	p.mu.Lock()
	p.cacheGen++
	p.cache.Clear()
	p.mu.Unlock()
}

// Cached returns the decoded audio for a message, if any.
func (p *Player) Cached(id string) (*Buffer, bool) {
	return p.cache.Get(id)
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{PlayingID: p.playingID, LoadingID: p.loadingID, AutoPlay: p.autoPlay}
}

// Close stops playback and pending auto-plays.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.stopLocked()
	p.stopTimersLocked()
}
