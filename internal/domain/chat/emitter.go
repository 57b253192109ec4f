package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// State is the lifecycle position of a response stream.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateGenerating
	StateStreaming
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateGenerating:
		return "generating"
	case StateStreaming:
		return "streaming"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrStreamTerminated is returned for writes after the terminal event.
	ErrStreamTerminated = errors.New("stream already terminated")
	errBadTransition    = errors.New("invalid stream transition")
)

// forward transitions; Terminated is reachable from every other state.
var transitions = map[State]State{
	StateIdle:       StateFetching,
	StateFetching:   StateGenerating,
	StateGenerating: StateStreaming,
}

// emitter owns the output channel of one response. It is driven by a single
// goroutine and enforces the event grammar: content and metadata, then
// exactly one terminal event, then close.
type emitter struct {
	ctx   context.Context
	out   chan StreamEvent
	state State
	// set when a send was abandoned because the reader left
	abandoned bool
}

func newEmitter(ctx context.Context, buffer int) *emitter {
	return &emitter{ctx: ctx, out: make(chan StreamEvent, buffer)}
}

func (e *emitter) events() <-chan StreamEvent {
	return e.out
}

func (e *emitter) State() State {
	return e.state
}

func (e *emitter) advance(to State) error {
	if e.state == StateTerminated {
		return ErrStreamTerminated
	}
	if next, ok := transitions[e.state]; !ok || next != to {
		return fmt.Errorf("%w: %s to %s", errBadTransition, e.state, to)
	}
	e.state = to
	return nil
}

func (e *emitter) metadata(meta Meta) error {
	if e.state == StateIdle {
		return fmt.Errorf("%w: metadata while %s", errBadTransition, e.state)
	}
	return e.send(StreamEvent{Kind: EventMetadata, Meta: &meta})
}

// content emits one chunk, entering Streaming on the first one.
func (e *emitter) content(text string) error {
	if e.state == StateGenerating {
		if err := e.advance(StateStreaming); err != nil {
			return err
		}
	}
	if e.state != StateStreaming {
		if e.state == StateTerminated {
			return ErrStreamTerminated
		}
		return fmt.Errorf("%w: content while %s", errBadTransition, e.state)
	}
	return e.send(StreamEvent{Kind: EventContent, Text: text})
}

func (e *emitter) done() error {
	return e.terminate(StreamEvent{Kind: EventDone})
}

func (e *emitter) fail(reason string, err error) error {
	return e.terminate(StreamEvent{Kind: EventError, Reason: reason, Err: err})
}

// terminate delivers the terminal event and closes the channel. The channel
// is closed even when the reader has gone.
func (e *emitter) terminate(ev StreamEvent) error {
	if e.state == StateTerminated {
		return ErrStreamTerminated
	}
	e.state = StateTerminated
	defer close(e.out)
	if e.abandoned {
		return e.ctx.Err()
	}
	select {
	case e.out <- ev:
		return nil
	default:
	}
	return e.deliver(ev)
}

func (e *emitter) send(ev StreamEvent) error {
	if e.state == StateTerminated {
		return ErrStreamTerminated
	}
	if e.abandoned {
		return e.ctx.Err()
	}
	return e.deliver(ev)
}

func (e *emitter) deliver(ev StreamEvent) error {
	select {
	case e.out <- ev:
		return nil
	case <-e.ctx.Done():
		e.abandoned = true
		return e.ctx.Err()
	}
}

// Segment splits text into groups of size words. Words are rejoined with
// single spaces and every group but the last keeps a trailing space, so
// concatenating the groups yields the whitespace-normalized text.
func Segment(text string, size int) []string {
	if size <= 0 {
		size = defaultWordsPerChunk
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	groups := make([]string, 0, (len(words)+size-1)/size)
	for start := 0; start < len(words); start += size {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		group := strings.Join(words[start:end], " ")
		if end < len(words) {
			group += " "
		}
		groups = append(groups, group)
	}
	return groups
}
