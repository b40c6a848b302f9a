package p2p

import (
	"bytes"
	"errors"
	"net"
	"time"
)

// Set of framing failures.
var (
	ErrOverflow = errors.New("message exceeds maximum length")
	ErrIdle     = errors.New("took too long to complete message")
)

// deadlineReader represents the part of a connection the framer reads from.
type deadlineReader interface {
	Read(b []byte) (int, error)
	SetReadDeadline(t time.Time) error
}

// framer splits the stream into newline terminated frames. A partial frame
// must complete within the idle timeout and may not reach the maximum length.
type framer struct {
	r      deadlineReader
	max    int
	idle   time.Duration
	buf    []byte
	chunk  []byte
	since  time.Time
	readAt time.Time
}

func newFramer(r deadlineReader, max int, idle time.Duration) *framer {
	return &framer{
		r:     r,
		max:   max,
		idle:  idle,
		chunk: make([]byte, 64*1024),
	}
}

// next returns the next frame without its terminator.
func (f *framer) next() ([]byte, error) {
	for {
		if i := bytes.IndexByte(f.buf, '\n'); i >= 0 {
			if i >= f.max {
				return nil, ErrOverflow
			}
			frame := append([]byte(nil), f.buf[:i]...)
			f.buf = append(f.buf[:0], f.buf[i+1:]...)
			if len(f.buf) > 0 {
				f.since = f.readAt
			}
			return frame, nil
		}

		if len(f.buf) >= f.max {
			return nil, ErrOverflow
		}

		deadline := time.Time{}
		if len(f.buf) > 0 {
			deadline = f.since.Add(f.idle)
		}
		if err := f.r.SetReadDeadline(deadline); err != nil {
			return nil, err
		}

		n, err := f.r.Read(f.chunk)
		if n > 0 {
			f.readAt = time.Now()
			if len(f.buf) == 0 {
				f.since = f.readAt
			}
			f.buf = append(f.buf, f.chunk[:n]...)
			continue
		}

		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() && len(f.buf) > 0 {
				return nil, ErrIdle
			}
			return nil, err
		}
	}
}
