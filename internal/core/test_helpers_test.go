package core

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatspace/chatspace-server/internal/history"
	"github.com/chatspace/chatspace-server/internal/identity"
	"github.com/chatspace/chatspace-server/internal/store/memory"
)

// openAdmission admits everyone; the per-test gate cases use gatedAdmission.
type openAdmission struct{}

func (openAdmission) Authenticate(ctx context.Context, room, password string) error { return nil }
func (openAdmission) MakePublic(ctx context.Context, room string) error             { return nil }
func (openAdmission) MakePrivate(ctx context.Context, room, password string) error  { return nil }

// gatedAdmission admits only the configured password.
type gatedAdmission struct {
	password string
}

func (g gatedAdmission) Authenticate(ctx context.Context, room, password string) error {
	if password == "" {
		return ErrChannelPasswordRequired
	}
	if password != g.password {
		return ErrWrongChannelPassword
	}
	return nil
}

func (gatedAdmission) MakePublic(ctx context.Context, room string) error            { return nil }
func (gatedAdmission) MakePrivate(ctx context.Context, room, password string) error { return nil }

func newTestCoordinator(t *testing.T, admission Admission) *Coordinator {
	t.Helper()

	st := memory.New()
	logger := zerolog.Nop()
	seq := history.NewSequencer(st, &logger)
	ident := identity.NewService(st, 16)

	return NewCoordinator(NewRegistry(), seq, ident, admission, st, nil, &logger, Options{
		StoreTimeout: time.Second,
	})
}

func joined(t *testing.T, coord *Coordinator, room string, cid, nick string) *Client {
	t.Helper()

	c := NewClient(cid, nick, "rgb(1,2,3)")
	coord.Subscribe(context.Background(), room, c, "")
	drain(c)
	return c
}

// drain discards everything currently queued for the client.
func drain(c *Client) {
	for {
		select {
		case <-c.Events:
		default:
			return
		}
	}
}

func mustEvent(t *testing.T, c *Client, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-c.Events:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, c *Client, kind EventKind) {
	t.Helper()

	for {
		select {
		case ev := <-c.Events:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		default:
			return
		}
	}
}
