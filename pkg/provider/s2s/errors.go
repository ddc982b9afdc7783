package s2s

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/coder/websocket"
)

// ErrSessionClosed is returned by SessionHandle methods after Close.
var ErrSessionClosed = errors.New("s2s: session closed")

// noiseFragments are substrings of error messages that providers emit while a
// call is being torn down.
var noiseFragments = []string{
	"already ended",
	"already closed",
	"call ended",
	"meeting has ended",
	"use of closed network connection",
}

// IsTransportNoise reports whether err is an expected teardown error (the call
// was already over, the socket was closed by us, the context was cancelled).
// Such errors should be swallowed rather than reported.
func IsTransportNoise(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSessionClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range noiseFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
