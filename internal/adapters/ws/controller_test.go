package ws

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeev/chatline/internal/core"
)

type fakeSocket struct {
	closed bool
}

func (f *fakeSocket) ReadMessage() (int, []byte, error)        { return 0, nil, nil }
func (f *fakeSocket) WriteMessage(mt int, data []byte) error   { return nil }
func (f *fakeSocket) SetWriteDeadline(t time.Time) error       { return nil }
func (f *fakeSocket) SetReadDeadline(t time.Time) error        { return nil }
func (f *fakeSocket) SetReadLimit(limit int64)                 {}
func (f *fakeSocket) SetPongHandler(h func(string) error)      {}
func (f *fakeSocket) RemoteAddr() net.Addr                     { return &net.TCPAddr{} }
func (f *fakeSocket) Close() error                             { f.closed = true; return nil }

func TestTrySendAfterCloseReportsClosed(t *testing.T) {
	sock := &fakeSocket{}
	cc := &connCtx{
		userID: "u1",
		conn:   sock,
		send:   make(chan core.Frame, 1),
	}

	// The hub can keep resolving this connection until its read pump's
	// teardown runs, so a send after Close must fail, never panic.
	cc.Close()
	assert.True(t, sock.closed)

	var err error
	require.NotPanics(t, func() {
		err = cc.TrySend(core.Frame(`{"event":"typing:start"}`))
	})
	assert.ErrorIs(t, err, core.ErrClosed)
}

func TestTrySendBackpressure(t *testing.T) {
	cc := &connCtx{
		userID: "u1",
		conn:   &fakeSocket{},
		send:   make(chan core.Frame, 1),
	}

	require.NoError(t, cc.TrySend(core.Frame(`a`)))
	assert.ErrorIs(t, cc.TrySend(core.Frame(`b`)), core.ErrBackpressure)
}

func TestCloseIsIdempotent(t *testing.T) {
	cc := &connCtx{
		userID: "u1",
		conn:   &fakeSocket{},
		send:   make(chan core.Frame, 1),
	}

	require.NotPanics(t, func() {
		cc.Close()
		cc.Close()
	})
}
