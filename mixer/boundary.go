// Package mixer defines the boundary contract between the server and the
// video mixer, and provides a reference mixer implementation that
// satisfies it: source registration, a selectable video/audio source, a
// cut-triggered sink fan-out, and a pluggable compositing hook.
package mixer

import "github.com/yoe/dvswitch/frame"

// SourceID identifies a registered source connection within the mixer.
type SourceID int

// SinkID identifies a registered sink connection within the mixer.
type SinkID int

// InvalidID means "no source selected" for the video and audio source
// selections. AddSource/AddSink never return it.
const InvalidID = -1

// Sink is the consumer-side callback the mixer invokes for every frame it
// publishes to a registered sink. Implemented by sinkqueue-backed
// connection objects; called from the mixer's own goroutine, never from
// the event loop.
type Sink interface {
	PutFrame(f *frame.Frame)
}

// Mixer is the boundary the server depends on. Mixer internals beyond this
// surface are out of scope for the server; see RefMixer for a concrete
// implementation.
type Mixer interface {
	AddSource() SourceID
	RemoveSource(id SourceID)
	AllocateFrame() *frame.Frame
	PutFrame(id SourceID, f *frame.Frame)
	AddSink(sink Sink) SinkID
	RemoveSink(id SinkID)
}

// FormatSettings describes the mixer's output video system. It is fixed
// for the mixer's lifetime in this implementation (see Open Question 1 in
// the design notes): there is no mid-stream renegotiation.
type FormatSettings struct {
	System      frame.System
	FrameAspect string
	SampleRate  int
}

// SourceActivation records whether a registered source currently feeds the
// live video and/or audio output, for tally-light style reporting.
type SourceActivation struct {
	IsVideoSource bool
	IsAudioSource bool
}

// VideoEffect transforms the selected source's frame into the frame
// published to sinks. The default, PassThroughEffect, returns its input
// unchanged; a picture-in-picture or wipe effect would implement this
// signature but is out of scope here.
type VideoEffect func(selected *frame.Frame) *frame.Frame

// PassThroughEffect is the default VideoEffect: the output is exactly the
// selected source's frame.
func PassThroughEffect(selected *frame.Frame) *frame.Frame {
	return selected
}

// Monitor observes source/sink churn and selection changes without
// coupling the mixer to the health/metric packages directly.
type Monitor interface {
	OnSourceAdded(id SourceID)
	OnSourceRemoved(id SourceID)
	OnSinkAdded(id SinkID)
	OnSinkRemoved(id SinkID)
	OnVideoSourceChanged(id SourceID)
	OnAudioSourceChanged(id SourceID)
}
