// Package cosem implements the COSEM application layer on top of an HDLC
// link: the AARQ/AARE association with a low-level password and the typed
// GET transactions that read catalogue registers.
package cosem

import (
	"fmt"
	"time"

	"github.com/wintek-iot/meterlink/base"
	"github.com/wintek-iot/meterlink/hdlc"
	"go.uber.org/zap"
)

// DefaultPassword is the factory low-level-security password.
const DefaultPassword = "1111111111111111"

const passwordLength = 16

// Settings configures one association.
type Settings struct {
	Password       []byte
	Pacing         time.Duration // delay between GET steps, default 50ms
	HandshakePause time.Duration // delay after handshake frames, default 100ms
	Budget         time.Duration // total session budget, 0 means unlimited
}

// NewSettings validates the password and applies defaults. An empty
// password selects the factory default.
func NewSettings(password string) (*Settings, error) {
	if password == "" {
		password = DefaultPassword
	}
	if len(password) != passwordLength {
		return nil, fmt.Errorf("password has to be %d bytes long", passwordLength)
	}
	return &Settings{
		Password:       []byte(password),
		Pacing:         50 * time.Millisecond,
		HandshakePause: 100 * time.Millisecond,
	}, nil
}

// Session is the client end of a single association with one meter. It is
// not safe for concurrent use; the protocol itself is strictly sequential.
type Session struct {
	link     *hdlc.Link
	settings *Settings
	logger   *zap.SugaredLogger
	state    base.SessionState
	started  time.Time
}

func New(link *hdlc.Link, settings *Settings) *Session {
	return &Session{
		link:     link,
		settings: settings,
		state:    base.StateDisconnected,
	}
}

func (s *Session) logf(format string, v ...any) {
	if s.logger != nil {
		s.logger.Infof(format, v...)
	}
}

func (s *Session) warnf(format string, v ...any) {
	if s.logger != nil {
		s.logger.Warnf(format, v...)
	}
}

func (s *Session) SetLogger(logger *zap.SugaredLogger) {
	s.logger = logger
	s.link.SetLogger(logger)
}

func (s *Session) State() base.SessionState {
	return s.state
}

// Counter exposes the link sequence byte, mainly for tests and diagnostics.
func (s *Session) Counter() byte {
	return s.link.Counter()
}

// Connect brings the association up: SNRM/UA for the link, then AARQ/AARE
// with the low-level password. Handshake failures are fatal for the
// session and leave it in the failed state.
func (s *Session) Connect() error {
	if s.state == base.StateAssociated {
		return nil
	}
	if err := s.link.Open(); err != nil {
		s.state = base.StateFailed
		return err
	}
	s.state = base.StateLinkUp
	time.Sleep(s.settings.HandshakePause)

	resp, err := s.link.Exchange(encodeAARQ(s.settings.Password))
	if err != nil {
		s.state = base.StateFailed
		return handshakeErr("aarq", err)
	}
	aare, err := decodeAARE(resp)
	if err != nil {
		s.state = base.StateFailed
		return handshakeErr("aarq", err)
	}
	if aare.result != 0 {
		s.state = base.StateFailed
		return handshakeErr("aarq", fmt.Errorf("association result %d, diagnostic %d", aare.result, aare.diagnostic))
	}

	time.Sleep(s.settings.HandshakePause)
	s.started = time.Now()
	s.state = base.StateAssociated
	s.logf("association established")
	return nil
}

// Disconnect tears the association down with a best-effort DISC and resets
// the link counter regardless of the meter's reply.
func (s *Session) Disconnect() error {
	err := s.link.Close()
	s.state = base.StateDisconnected
	return err
}

// budget reports whether the caller-supplied session budget has run out.
func (s *Session) budget() error {
	if s.settings.Budget > 0 && time.Since(s.started) > s.settings.Budget {
		return base.ErrBudgetExceeded
	}
	return nil
}

func (s *Session) pace() {
	time.Sleep(s.settings.Pacing)
}
