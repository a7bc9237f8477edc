package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStoreTest(t *testing.T) (*SessionStore, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewSessionStore(rdb, ""), mr, rdb
}

func TestSessionStoreKeyLayout(t *testing.T) {
	store, mr, _ := newStoreTest(t)
	ctx := context.Background()

	if err := store.SetPending(ctx, "42", "h1", time.Minute); err != nil {
		t.Fatalf("set pending: %v", err)
	}
	if !mr.Exists("pending_handshake:42") {
		t.Fatalf("expected pending_handshake:42, keys=%v", mr.Keys())
	}
	if err := store.Promote(ctx, "42", "h1", "s1"); err != nil {
		t.Fatalf("promote: %v", err)
	}
	got, err := mr.Get("session_token:42")
	if err != nil || got != "s1" {
		t.Fatalf("expected session_token:42=s1, got %q err=%v", got, err)
	}
}

func TestGetSessionTokenMissing(t *testing.T) {
	store, _, _ := newStoreTest(t)

	_, err := store.GetSessionToken(context.Background(), "nobody")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSetPendingOverwritesPrior(t *testing.T) {
	store, _, _ := newStoreTest(t)
	ctx := context.Background()

	if err := store.SetPending(ctx, "u1", "h1", time.Minute); err != nil {
		t.Fatalf("set h1: %v", err)
	}
	if err := store.SetPending(ctx, "u1", "h2", time.Minute); err != nil {
		t.Fatalf("set h2: %v", err)
	}

	pending, err := store.GetPending(ctx, "u1")
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if pending.Token != "h2" || pending.UserID != "u1" {
		t.Fatalf("unexpected pending record %+v", pending)
	}
	if time.Since(pending.CreatedAt) > time.Minute {
		t.Fatalf("created_at not recorded: %v", pending.CreatedAt)
	}
}

func TestPromoteClearsPendingAndSetsSession(t *testing.T) {
	store, _, _ := newStoreTest(t)
	ctx := context.Background()

	if err := store.SetPending(ctx, "u1", "h1", time.Minute); err != nil {
		t.Fatalf("set pending: %v", err)
	}
	if err := store.Promote(ctx, "u1", "h1", "s1"); err != nil {
		t.Fatalf("promote: %v", err)
	}

	token, err := store.GetSessionToken(ctx, "u1")
	if err != nil || token != "s1" {
		t.Fatalf("expected s1, got %q err=%v", token, err)
	}
	if _, err := store.GetPending(ctx, "u1"); !errors.Is(err, ErrPendingNotFound) {
		t.Fatalf("expected pending cleared, got %v", err)
	}
}

func TestPromoteRejectsSupersededHandshake(t *testing.T) {
	store, _, _ := newStoreTest(t)
	ctx := context.Background()

	if err := store.SetPending(ctx, "u1", "h1", time.Minute); err != nil {
		t.Fatalf("set h1: %v", err)
	}
	if err := store.SetPending(ctx, "u1", "h2", time.Minute); err != nil {
		t.Fatalf("set h2: %v", err)
	}

	if err := store.Promote(ctx, "u1", "h1", "stale"); !errors.Is(err, ErrHandshakeSuperseded) {
		t.Fatalf("expected ErrHandshakeSuperseded, got %v", err)
	}
	if _, err := store.GetSessionToken(ctx, "u1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("stale promote must not write a session, got %v", err)
	}

	if err := store.Promote(ctx, "u1", "h2", "fresh"); err != nil {
		t.Fatalf("promote current handshake: %v", err)
	}
}

func TestPromoteWithoutPendingIsSuperseded(t *testing.T) {
	store, _, _ := newStoreTest(t)

	err := store.Promote(context.Background(), "u1", "h1", "s1")
	if !errors.Is(err, ErrHandshakeSuperseded) {
		t.Fatalf("expected ErrHandshakeSuperseded, got %v", err)
	}
}

// rewriteAfterGet rewrites key right after every GET of it, so each WATCH
// transaction observes a concurrent write.
type rewriteAfterGet struct {
	mr   *miniredis.Miniredis
	key  string
	gets int
}

func (h *rewriteAfterGet) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *rewriteAfterGet) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		args := cmd.Args()
		if cmd.Name() == "get" && len(args) == 2 && args[1] == h.key {
			h.gets++
			if v, getErr := h.mr.Get(h.key); getErr == nil {
				_ = h.mr.Set(h.key, v)
			}
		}
		return err
	}
}

func (h *rewriteAfterGet) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestPromoteContentionIsUnavailable(t *testing.T) {
	store, mr, rdb := newStoreTest(t)
	ctx := context.Background()
	if err := store.SetPending(ctx, "u1", "h1", time.Minute); err != nil {
		t.Fatalf("set pending: %v", err)
	}

	hook := &rewriteAfterGet{mr: mr, key: "pending_handshake:u1"}
	rdb.AddHook(hook)

	err := store.Promote(ctx, "u1", "h1", "s1")
	if !errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrHandshakeSuperseded) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if hook.gets != 4 {
		t.Fatalf("expected 4 guarded attempts, got %d", hook.gets)
	}
	if mr.Exists("session_token:u1") {
		t.Fatal("contended promote must not write a session")
	}
	if !mr.Exists("pending_handshake:u1") {
		t.Fatal("contended promote must leave the pending record")
	}
}

func TestClearPendingOnlyMatchingToken(t *testing.T) {
	store, _, _ := newStoreTest(t)
	ctx := context.Background()

	if err := store.SetPending(ctx, "u1", "h2", time.Minute); err != nil {
		t.Fatalf("set pending: %v", err)
	}
	if err := store.ClearPending(ctx, "u1", "h1"); err != nil {
		t.Fatalf("clear stale: %v", err)
	}
	if _, err := store.GetPending(ctx, "u1"); err != nil {
		t.Fatalf("newer pending must survive, got %v", err)
	}
	if err := store.ClearPending(ctx, "u1", "h2"); err != nil {
		t.Fatalf("clear current: %v", err)
	}
	if _, err := store.GetPending(ctx, "u1"); !errors.Is(err, ErrPendingNotFound) {
		t.Fatalf("expected pending cleared, got %v", err)
	}
	if err := store.ClearPending(ctx, "u1", "h2"); err != nil {
		t.Fatalf("clear absent must be a no-op, got %v", err)
	}
}

func TestClearSessionIdempotent(t *testing.T) {
	store, mr, _ := newStoreTest(t)
	ctx := context.Background()

	if err := store.ClearSession(ctx, "u1"); err != nil {
		t.Fatalf("clear absent session: %v", err)
	}

	if err := mr.Set("session_token:u1", "s1"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := mr.Set("profile:u1", "{}"); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	if err := store.SetPending(ctx, "u1", "h1", time.Minute); err != nil {
		t.Fatalf("seed pending: %v", err)
	}
	if err := store.ClearSession(ctx, "u1", "profile:u1"); err != nil {
		t.Fatalf("clear session: %v", err)
	}
	if mr.Exists("session_token:u1") || mr.Exists("profile:u1") || mr.Exists("pending_handshake:u1") {
		t.Fatalf("expected keys removed, have %v", mr.Keys())
	}
	if err := store.ClearSession(ctx, "u1"); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestGetPendingCorruptRecord(t *testing.T) {
	store, mr, _ := newStoreTest(t)

	if err := mr.Set("pending_handshake:u1", "bad"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.GetPending(context.Background(), "u1"); !errors.Is(err, ErrPendingCorrupt) {
		t.Fatalf("expected ErrPendingCorrupt, got %v", err)
	}
}

func TestStoreSurfacesBackendFailure(t *testing.T) {
	store, mr, _ := newStoreTest(t)
	mr.Close()
	ctx := context.Background()

	if err := store.SetPending(ctx, "u1", "h1", time.Minute); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("SetPending: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := store.GetSessionToken(ctx, "u1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("GetSessionToken: expected ErrStoreUnavailable, got %v", err)
	}
	if err := store.ClearSession(ctx, "u1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("ClearSession: expected ErrStoreUnavailable, got %v", err)
	}
	if err := store.Promote(ctx, "u1", "h1", "s1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Promote: expected ErrStoreUnavailable, got %v", err)
	}
}

func TestPrefixApplied(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewSessionStore(rdb, "bot1:")
	if err := store.SetPending(context.Background(), "u1", "h1", time.Minute); err != nil {
		t.Fatalf("set pending: %v", err)
	}
	if !mr.Exists("bot1:pending_handshake:u1") {
		t.Fatalf("expected prefixed key, got %v", mr.Keys())
	}
}
