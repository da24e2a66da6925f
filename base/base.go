package base

import (
	"time"

	"go.uber.org/zap"
)

// Stream is the byte transport the HDLC layer runs on. Implementations own
// the underlying handle exclusively for the lifetime of a session.
type Stream interface {
	Open() error
	Close() error
	IsOpen() bool
	SetLogger(logger *zap.SugaredLogger)
	SetDeadline(t time.Time) // zero time means no deadline
	ClearRx() error          // drop any unread inbound bytes
	Wake() error             // assert DTR wake; no-op where the medium has no DTR
	Sleep() error            // deassert DTR
	Read(p []byte) (n int, err error)
	Write(src []byte) error // always write everything
}

// Clock supplies the wall-clock timestamp stamped onto a reading draft.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
