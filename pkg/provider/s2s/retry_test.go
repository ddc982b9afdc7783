package s2s_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/karanmishra2003/HoloHire/pkg/provider/s2s"
	"github.com/karanmishra2003/HoloHire/pkg/provider/s2s/mock"
)

func TestConnectWithRetry(t *testing.T) {
	t.Parallel()

	errDial := errors.New("dial refused")
	fast := s2s.RetryConfig{MaxAttempts: 3, Backoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

	tests := []struct {
		name      string
		provider  *mock.Provider
		wantErr   bool
		wantCalls int
	}{
		{
			name:      "first attempt succeeds",
			provider:  &mock.Provider{},
			wantCalls: 1,
		},
		{
			name:      "succeeds after transient failures",
			provider:  &mock.Provider{ConnectErr: errDial, FailFirst: 2},
			wantCalls: 3,
		},
		{
			name:      "gives up after max attempts",
			provider:  &mock.Provider{ConnectErr: errDial},
			wantErr:   true,
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sess, err := s2s.ConnectWithRetry(context.Background(), tt.provider, s2s.SessionConfig{}, fast)
			if tt.wantErr {
				if !errors.Is(err, errDial) {
					t.Fatalf("err = %v; want wrapping %v", err, errDial)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if sess == nil {
					t.Fatal("expected a session")
				}
			}
			if got := len(tt.provider.Calls()); got != tt.wantCalls {
				t.Errorf("Connect calls = %d; want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestConnectWithRetry_ContextCancelled(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{ConnectErr: errors.New("down")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s2s.ConnectWithRetry(ctx, p, s2s.SessionConfig{}, s2s.RetryConfig{Backoff: time.Hour})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	if got := len(p.Calls()); got != 1 {
		t.Errorf("Connect calls = %d; want 1", got)
	}
}

func TestIsTransportNoise(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"session closed", fmt.Errorf("write: %w", s2s.ErrSessionClosed), true},
		{"context cancelled", context.Canceled, true},
		{"eof", io.EOF, true},
		{"meeting ended", errors.New("Meeting has ended"), true},
		{"already closed", errors.New("transport already closed"), true},
		{"closed conn", errors.New("read tcp: use of closed network connection"), true},
		{"real failure", errors.New("401 unauthorized"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := s2s.IsTransportNoise(tt.err); got != tt.want {
				t.Errorf("IsTransportNoise(%v) = %v; want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestEventKind_String(t *testing.T) {
	t.Parallel()
	if s2s.EventUserTranscript.String() != "user_transcript" {
		t.Errorf("got %q", s2s.EventUserTranscript.String())
	}
	if s2s.EventKind(99).String() != "unknown" {
		t.Errorf("got %q", s2s.EventKind(99).String())
	}
}
