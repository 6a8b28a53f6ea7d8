package jsonfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/blindchat/internal/core/identity"
)

func TestSessionStore(t *testing.T) {
	ctx := context.Background()

	t.Run("load empty", func(t *testing.T) {
		store := NewSessionStore(filepath.Join(t.TempDir(), "session.json"))

		_, err := store.Load(ctx)
		if !errors.Is(err, identity.ErrNoSession) {
			t.Errorf("got %v, want ErrNoSession", err)
		}
	})

	t.Run("save and load", func(t *testing.T) {
		store := NewSessionStore(filepath.Join(t.TempDir(), "nested", "session.json"))

		sess := identity.Session{
			Identity:   identity.Identity{ID: "u1", AvatarURL: "https://example.com/u1.png"},
			Token:      "tok",
			SignedInAt: time.Now().UTC().Truncate(time.Second),
		}

		if err := store.Save(ctx, sess); err != nil {
			t.Fatalf("Save: %v", err)
		}

		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}

		if got.Identity != sess.Identity || got.Token != sess.Token || !got.SignedInAt.Equal(sess.SignedInAt) {
			t.Errorf("got %+v, want %+v", got, sess)
		}
	})

	t.Run("clear", func(t *testing.T) {
		store := NewSessionStore(filepath.Join(t.TempDir(), "session.json"))

		if err := store.Save(ctx, identity.Session{Identity: identity.Identity{ID: "u1"}}); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("second Clear: %v", err)
		}

		_, err := store.Load(ctx)
		if !errors.Is(err, identity.ErrNoSession) {
			t.Errorf("got %v, want ErrNoSession", err)
		}
	})

	t.Run("corrupted file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
			t.Fatal(err)
		}

		_, err := NewSessionStore(path).Load(ctx)
		if err == nil || errors.Is(err, identity.ErrNoSession) {
			t.Errorf("got %v, want parse error", err)
		}
	})
}
