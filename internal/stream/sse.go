// SPDX-License-Identifier: MIT

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// DefaultKeepAlive is the interval between keep-alive comments.
const DefaultKeepAlive = time.Second

// ErrClosed is returned by Send after the writer failed once.
var ErrClosed = errors.New("stream: writer closed")

// EncodeError reports an event whose payload could not be serialized. Nothing
// was written and the writer stays usable.
type EncodeError struct {
	Type string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("stream: encode %s event: %v", e.Type, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// SSEWriter frames events as Server-Sent Events on an http.ResponseWriter.
// Send and the keep-alive loop share one mutex so frames never interleave.
type SSEWriter struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	rc     *http.ResponseController
	closed bool
}

// NewSSEWriter writes the stream headers and the 200 status line.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()
	return &SSEWriter{w: w, rc: rc}
}

// Send writes one "event:" / "data:" frame and flushes it.
func (s *SSEWriter) Send(ev Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return &EncodeError{Type: ev.Type, Err: err}
	}
	return s.write(func() error {
		_, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, data)
		return err
	})
}

// Comment writes an SSE comment line, ignored by clients.
func (s *SSEWriter) Comment(text string) error {
	return s.write(func() error {
		_, err := fmt.Fprintf(s.w, ": %s\n\n", text)
		return err
	})
}

func (s *SSEWriter) write(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := fn(); err != nil {
		s.closed = true
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.closed = true
		return err
	}
	return nil
}

// KeepAlive writes a comment every interval until ctx is done or a write
// fails. The returned func stops the loop and waits for it to exit.
func (s *SSEWriter) KeepAlive(ctx context.Context, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = DefaultKeepAlive
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Comment("keep-alive"); err != nil {
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
