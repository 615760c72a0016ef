package session

// Session lifecycle and the real-time boundary.
//
// Audio capture pushes fixed-size frames into a bounded queue; a dedicated
// scoring goroutine consumes them in FIFO order. The producer is never
// blocked: when the queue is full the oldest frame is dropped (and counted),
// which can drift the scorer slightly under sustained backpressure but can
// never deadlock the capture path. Echo cancellation and frame analysis run
// on the consumer goroutine, which owns all mutable state; no locks sit on
// the per-sample path.
//
// Stopping drains frames already enqueued (so the final combo window is not
// truncated) but accepts no new audio.

import (
	"sync"
	"time"

	"github.com/hamzapatwa/PitchPerfectly/reference"
)

// DefaultQueueCapacity bounds the capture -> scorer queue.
const DefaultQueueCapacity = 256

// Config parameterizes one live session.
type Config struct {
	SampleRate    int
	FrameLength   int // samples per capture frame
	Throttle      int // raw frames per emitted LiveFrame
	QueueCapacity int
	Scoring       ScorerConfig
}

// DefaultConfig matches a 48 kHz capture path with 2048-sample frames.
func DefaultConfig() Config {
	return Config{
		SampleRate:    48000,
		FrameLength:   2048,
		Throttle:      DefaultThrottle,
		QueueCapacity: DefaultQueueCapacity,
		Scoring:       DefaultScorerConfig(),
	}
}

// captureFrame pairs a mic frame with the playback rendered over the same
// interval (the echo canceller's far-end reference).
type captureFrame struct {
	mic      []float64
	playback []float64
}

// Emitter receives throttled updates for delivery to the presentation layer.
// Both callbacks run on the scoring goroutine and must not block.
type Emitter interface {
	EmitLiveFrame(frame LiveFrame)
	EmitScore(score ScoreFrame)
}

// Session owns one EchoCancellerState and one PerformanceTrace for the
// duration of a live performance.
type Session struct {
	ID     string
	SongID string

	cfg      Config
	track    *reference.Track
	echo     *EchoCanceller
	analyzer *FrameAnalyzer
	scorer   *Scorer
	trace    PerformanceTrace
	emitter  Emitter

	frames  chan captureFrame
	done    chan struct{}
	stopped bool
	dropped int
	mu      sync.Mutex

	result *Result
}

// New creates an armed session bound to a reference track. The echo filter
// starts from zeroed state; previous sessions leave nothing behind.
func New(id string, track *reference.Track, cfg Config, emitter Emitter) *Session {
	if cfg.QueueCapacity < 1 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	s := &Session{
		ID:       id,
		SongID:   track.SongID,
		cfg:      cfg,
		track:    track,
		echo:     NewEchoCanceller(cfg.SampleRate),
		analyzer: NewFrameAnalyzer(cfg.SampleRate, cfg.Throttle),
		scorer:   NewScorer(track, cfg.Scoring),
		emitter:  emitter,
		frames:   make(chan captureFrame, cfg.QueueCapacity),
		done:     make(chan struct{}),
	}
	s.echo.Reset()
	s.scorer.Arm()
	return s
}

// Start transitions Armed -> Running and launches the scoring goroutine.
// The echo canceller is initialized (non-degenerate) by construction, so the
// transition is immediate.
func (s *Session) Start() error {
	if err := s.scorer.Run(); err != nil {
		return err
	}
	go s.consume()
	return nil
}

// PushFrame enqueues one capture frame. Never blocks: when the queue is full
// the oldest enqueued frame is dropped to make room. Frames pushed after
// Stop are rejected.
func (s *Session) PushFrame(mic, playback []float64) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSessionNotRunning
	}

	frame := captureFrame{mic: mic, playback: playback}
	select {
	case s.frames <- frame:
	default:
		// Queue full: drop-oldest keeps the newest audio flowing.
		select {
		case <-s.frames:
			s.dropped++
		default:
		}
		select {
		case s.frames <- frame:
		default:
			s.dropped++
		}
	}
	s.mu.Unlock()
	return nil
}

// consume is the single scoring goroutine: echo cancel, analyze, score,
// append, emit. Exits once the queue closes and drains.
func (s *Session) consume() {
	defer close(s.done)
	for frame := range s.frames {
		voice := s.echo.Process(frame.mic, frame.playback)

		live, emit := s.analyzer.Analyze(voice)
		if !emit {
			continue
		}

		score, err := s.scorer.ScoreFrame(live)
		if err != nil {
			continue // stop raced a drained frame; nothing to score
		}
		s.trace.append(live, score)

		if s.emitter != nil {
			s.emitter.EmitLiveFrame(live)
			s.emitter.EmitScore(score)
		}
	}
}

// Stop closes the session to new audio, drains in-flight frames and builds
// the immutable Result. Safe to call once; later calls return the result.
func (s *Session) Stop() *Result {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		<-s.done
		return s.result
	}
	s.stopped = true
	close(s.frames)
	s.mu.Unlock()

	<-s.done // drain, don't discard
	s.scorer.Stop()

	average, pitchAvg, energyAvg, maxCombo := s.scorer.summary()
	s.result = &Result{
		SessionID:     s.ID,
		SongID:        s.SongID,
		Trace:         s.trace,
		AverageScore:  average,
		PitchAverage:  pitchAvg,
		EnergyAverage: energyAvg,
		MaxCombo:      maxCombo,
		Badges:        s.scorer.badges(),
		EchoConverged: s.echo.Converged(),
		EchoResets:    s.echo.ResetCount(),
		DroppedFrames: s.dropped,
		FinishedAt:    time.Now(),
	}
	return s.result
}

// Track returns the session's read-only reference track.
func (s *Session) Track() *reference.Track { return s.track }

// State reports the scorer lifecycle state.
func (s *Session) State() ScorerState { return s.scorer.State() }
