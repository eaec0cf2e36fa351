package mixer

import (
	"log/slog"
	"sync"

	"github.com/yoe/dvswitch/errors"
	"github.com/yoe/dvswitch/frame"
)

// frameMsg carries a just-published source frame into the fan-out
// goroutine.
type frameMsg struct {
	sourceID SourceID
	frame    *frame.Frame
}

// RefMixer is a reference implementation of Mixer: it selects one
// registered source as the live video feed, applies a pluggable
// VideoEffect (default pass-through), and fans out the resulting frame to
// every registered sink from a single dedicated goroutine - the "mixer
// thread" the design notes refer to.
//
// It does not implement picture-in-picture compositing, audio mixing, or
// recording; EnableRecord only tracks and reports the armed flag for
// operator visibility, matching the original's exposed (but here
// unimplemented) recording toggle.
type RefMixer struct {
	logger *slog.Logger

	mu           sync.Mutex
	sources      map[SourceID]struct{}
	nextSourceID SourceID
	sinks        map[SinkID]Sink
	nextSinkID   SinkID

	format        FormatSettings
	videoSourceID SourceID
	audioSourceID SourceID
	videoEffect   VideoEffect
	doRecord      bool
	cutPending    bool

	monitor Monitor

	frames chan frameMsg
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a reference mixer with a fixed output format and starts its
// fan-out goroutine. Call Stop to shut it down.
func New(format FormatSettings, logger *slog.Logger) *RefMixer {
	if logger == nil {
		logger = slog.Default()
	}
	m := &RefMixer{
		logger:        logger.With("component", "mixer"),
		sources:       make(map[SourceID]struct{}),
		sinks:         make(map[SinkID]Sink),
		format:        format,
		videoSourceID: InvalidID,
		audioSourceID: InvalidID,
		videoEffect:   PassThroughEffect,
		frames:        make(chan frameMsg, 64),
		done:          make(chan struct{}),
	}
	m.wg.Add(1)
	go m.run()
	return m
}

// SetMonitor installs an observer for source/sink/selection churn. Not
// safe to call concurrently with mixer operations; intended to be set once
// at startup.
func (m *RefMixer) SetMonitor(mon Monitor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.monitor = mon
}

// SetVideoEffect installs a compositing hook. Not safe to call
// concurrently with mixer operations; intended to be set once at startup.
func (m *RefMixer) SetVideoEffect(effect VideoEffect) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if effect == nil {
		effect = PassThroughEffect
	}
	m.videoEffect = effect
}

// AddSource registers a new source and returns its id.
func (m *RefMixer) AddSource() SourceID {
	m.mu.Lock()
	id := m.nextSourceID
	m.nextSourceID++
	m.sources[id] = struct{}{}
	mon := m.monitor
	m.mu.Unlock()

	m.logger.Debug("source added", "source_id", id)
	if mon != nil {
		mon.OnSourceAdded(id)
	}
	return id
}

// RemoveSource unregisters a source. If it was the selected video or audio
// source, that selection reverts to InvalidID.
func (m *RefMixer) RemoveSource(id SourceID) {
	m.mu.Lock()
	delete(m.sources, id)
	if m.videoSourceID == id {
		m.videoSourceID = InvalidID
	}
	if m.audioSourceID == id {
		m.audioSourceID = InvalidID
	}
	mon := m.monitor
	m.mu.Unlock()

	m.logger.Debug("source removed", "source_id", id)
	if mon != nil {
		mon.OnSourceRemoved(id)
	}
}

// AllocateFrame returns a frame with a buffer sized for the largest
// supported video system.
func (m *RefMixer) AllocateFrame() *frame.Frame {
	return frame.New()
}

// PutFrame hands a completed source frame to the mixer. Called from the
// event-loop goroutine; ownership of f transfers to the mixer.
func (m *RefMixer) PutFrame(id SourceID, f *frame.Frame) {
	select {
	case m.frames <- frameMsg{sourceID: id, frame: f}:
	case <-m.done:
		f.Release()
	}
}

// AddSink registers a sink callback and returns its id.
func (m *RefMixer) AddSink(sink Sink) SinkID {
	m.mu.Lock()
	id := m.nextSinkID
	m.nextSinkID++
	m.sinks[id] = sink
	mon := m.monitor
	m.mu.Unlock()

	m.logger.Debug("sink added", "sink_id", id)
	if mon != nil {
		mon.OnSinkAdded(id)
	}
	return id
}

// RemoveSink unregisters a sink.
func (m *RefMixer) RemoveSink(id SinkID) {
	m.mu.Lock()
	delete(m.sinks, id)
	mon := m.monitor
	m.mu.Unlock()

	m.logger.Debug("sink removed", "sink_id", id)
	if mon != nil {
		mon.OnSinkRemoved(id)
	}
}

// SetVideoSource selects which registered source feeds the live video
// output. Selecting an unregistered id is a protocol-violation-shaped
// control error: it leaves the previous selection untouched and returns an
// invalid-classified error rather than panicking.
func (m *RefMixer) SetVideoSource(id SourceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != InvalidID {
		if _, ok := m.sources[id]; !ok {
			return errors.WrapInvalid(errors.ErrInvalidData, "mixer", "SetVideoSource", "unknown source id")
		}
	}
	m.videoSourceID = id
	mon := m.monitor
	if mon != nil {
		mon.OnVideoSourceChanged(id)
	}
	return nil
}

// SetAudioSource selects which registered source feeds the live audio
// output. See SetVideoSource for error behavior.
func (m *RefMixer) SetAudioSource(id SourceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != InvalidID {
		if _, ok := m.sources[id]; !ok {
			return errors.WrapInvalid(errors.ErrInvalidData, "mixer", "SetAudioSource", "unknown source id")
		}
	}
	m.audioSourceID = id
	mon := m.monitor
	if mon != nil {
		mon.OnAudioSourceChanged(id)
	}
	return nil
}

// GetFormat returns the mixer's fixed output format.
func (m *RefMixer) GetFormat() FormatSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.format
}

// Cut marks the next frame published to sinks as the start of a new cut.
// The flag is consumed (cleared) by exactly the next publish.
func (m *RefMixer) Cut() {
	m.mu.Lock()
	m.cutPending = true
	m.mu.Unlock()
}

// EnableRecord sets the recording-armed flag. This implementation does not
// perform recording; the flag is tracked purely for operator visibility
// via health/metrics.
func (m *RefMixer) EnableRecord(enabled bool) {
	m.mu.Lock()
	m.doRecord = enabled
	m.mu.Unlock()
}

// Recording reports the current recording-armed flag.
func (m *RefMixer) Recording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doRecord
}

// Stop terminates the fan-out goroutine and releases any frame still
// in-flight. Safe to call once.
func (m *RefMixer) Stop() {
	close(m.done)
	m.wg.Wait()
}

// run is the mixer's dedicated fan-out goroutine: it reads frames
// published by sources, selects the one matching the current video
// source, applies the video effect, consumes the pending cut flag, and
// publishes the result to every registered sink.
func (m *RefMixer) run() {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			// Drain and release anything still queued so references are
			// not leaked on shutdown.
			for {
				select {
				case msg := <-m.frames:
					msg.frame.Release()
				default:
					return
				}
			}
		case msg := <-m.frames:
			m.handleFrame(msg)
		}
	}
}

func (m *RefMixer) handleFrame(msg frameMsg) {
	m.mu.Lock()
	isSelected := msg.sourceID == m.videoSourceID
	effect := m.videoEffect
	cutBefore := false
	if isSelected && m.cutPending {
		cutBefore = true
		m.cutPending = false
	}
	sinks := make([]Sink, 0, len(m.sinks))
	for _, s := range m.sinks {
		sinks = append(sinks, s)
	}
	m.mu.Unlock()

	if !isSelected {
		msg.frame.Release()
		return
	}

	out := effect(msg.frame)
	out.CutBefore = cutBefore

	for _, sink := range sinks {
		sink.PutFrame(out.Ref())
	}
	out.Release()
}
