package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/yanqian/ocean-insight/internal/domain/chat"
)

const doneSentinel = "[DONE]"

var errStreamClosed = errors.New("event stream already terminated")

// sseEncoder is the only writer of chat stream frames. Each frame is a
// single "data: <payload>\n\n" line. Once a terminal frame is written
// every later write fails with errStreamClosed.
type sseEncoder struct {
	w       io.Writer
	flusher http.Flusher
	details bool
	closed  bool
}

func newSSEEncoder(w http.ResponseWriter, details bool) (*sseEncoder, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &sseEncoder{w: w, flusher: flusher, details: details}, true
}

// Open commits the event-stream headers.
func (e *sseEncoder) Open(w http.ResponseWriter) {
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	e.flusher.Flush()
}

type chunkFrame struct {
	Chunk string `json:"chunk"`
}

type metaFrame struct {
	Meta *chat.Meta `json:"meta"`
}

type errorFrame struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Encode writes ev. Content and metadata produce one frame. done produces
// the sentinel. error produces an error frame, which is itself terminal.
func (e *sseEncoder) Encode(ev chat.StreamEvent) error {
	switch ev.Kind {
	case chat.EventContent:
		return e.frame(chunkFrame{Chunk: ev.Text}, false)
	case chat.EventMetadata:
		if ev.Meta == nil {
			return nil
		}
		return e.frame(metaFrame{Meta: ev.Meta}, false)
	case chat.EventDone:
		return e.write([]byte(doneSentinel), true)
	case chat.EventError:
		frame := errorFrame{Error: ev.Reason}
		if e.details && ev.Err != nil {
			frame.Details = ev.Err.Error()
		}
		return e.frame(frame, true)
	default:
		return fmt.Errorf("unknown stream event kind %q", ev.Kind)
	}
}

// Closed reports whether a terminal frame was written.
func (e *sseEncoder) Closed() bool {
	return e.closed
}

func (e *sseEncoder) frame(v any, terminal bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode stream frame: %w", err)
	}
	return e.write(payload, terminal)
}

func (e *sseEncoder) write(payload []byte, terminal bool) error {
	if e.closed {
		return errStreamClosed
	}
	if terminal {
		e.closed = true
	}
	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, "\n\n"...)
	if _, err := e.w.Write(buf); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}
