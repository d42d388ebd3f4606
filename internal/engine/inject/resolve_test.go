package inject

import (
	"context"
	"errors"
	"testing"

	errspkg "github.com/sockwire/sockwire/internal/engine/errors"
	"github.com/sockwire/sockwire/internal/engine/types"
)

func newTestResolver(t *testing.T, builtins Builtins, parallel bool) *Resolver {
	t.Helper()
	return &Resolver{
		Ctx:      NewContext(context.Background(), builtins, parallel),
		Registry: NewRegistry(),
	}
}

func TestResolveCachesPerInvocation(t *testing.T) {
	t.Parallel()

	calls := 0
	provider := func() int {
		calls++
		return 42
	}

	r := newTestResolver(t, Builtins{}, false)

	t.Run("same declaration resolves once", func(t *testing.T) {
		d := Depends(provider)
		for i := 0; i < 3; i++ {
			v, err := r.Resolve(d)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v != 42 {
				t.Fatalf("expected 42, got %v", v)
			}
		}
		if calls != 1 {
			t.Fatalf("expected 1 provider call, got %d", calls)
		}
	})

	t.Run("distinct declarations share the cache", func(t *testing.T) {
		if _, err := r.Resolve(Depends(provider)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 1 {
			t.Fatalf("expected cached value to be reused, got %d calls", calls)
		}
	})

	t.Run("fresh context resolves again", func(t *testing.T) {
		r2 := newTestResolver(t, Builtins{}, false)
		if _, err := r2.Resolve(Depends(provider)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 2 {
			t.Fatalf("expected 2 calls across invocations, got %d", calls)
		}
	})
}

func TestResolveNoCache(t *testing.T) {
	t.Parallel()

	calls := 0
	provider := func() int {
		calls++
		return calls
	}

	r := newTestResolver(t, Builtins{}, false)
	d := Depends(provider, NoCache())

	first, err := r.Resolve(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.Resolve(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct values, got %v twice", first)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestResolveSubDependencies(t *testing.T) {
	t.Parallel()

	type db struct{ dsn string }
	type repo struct{ conn *db }

	newDB := func() *db { return &db{dsn: "test"} }
	newRepo := func(conn *db) *repo { return &repo{conn: conn} }

	t.Run("explicit args", func(t *testing.T) {
		r := newTestResolver(t, Builtins{}, false)
		d := Depends(newRepo, WithArgs(Depends(newDB)))

		v, err := r.Resolve(d)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := v.(*repo)
		if got.conn == nil || got.conn.dsn != "test" {
			t.Fatalf("sub-dependency not resolved: %+v", got)
		}
	})

	t.Run("registry type lookup", func(t *testing.T) {
		r := newTestResolver(t, Builtins{}, false)
		if err := r.Registry.Provide(newDB); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		v, err := r.Resolve(Depends(newRepo))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.(*repo).conn == nil {
			t.Fatal("expected registry-resolved sub-dependency")
		}
	})

	t.Run("unresolvable parameter", func(t *testing.T) {
		r := newTestResolver(t, Builtins{}, false)
		_, err := r.Resolve(Depends(newRepo))

		var unresolved *errspkg.UnresolvedDependencyError
		if !errors.As(err, &unresolved) {
			t.Fatalf("expected UnresolvedDependencyError, got %v", err)
		}
	})
}

func TestResolveNamed(t *testing.T) {
	t.Parallel()

	t.Run("registered name resolves", func(t *testing.T) {
		r := newTestResolver(t, Builtins{}, false)
		if err := r.Registry.Register("session", func() string { return "abc" }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		v, err := r.Resolve(Named("session"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != "abc" {
			t.Fatalf("expected abc, got %v", v)
		}
	})

	t.Run("missing name fails", func(t *testing.T) {
		r := newTestResolver(t, Builtins{}, false)
		_, err := r.Resolve(Named("missing"))

		var unresolved *errspkg.UnresolvedDependencyError
		if !errors.As(err, &unresolved) {
			t.Fatalf("expected UnresolvedDependencyError, got %v", err)
		}
		if unresolved.Name != "missing" {
			t.Fatalf("expected name missing, got %q", unresolved.Name)
		}
	})
}

func TestResolveCycleDetection(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, Builtins{}, false)

	type a struct{}
	type b struct{}

	var declA, declB *Declaration
	newA := func(dep *b) *a { return &a{} }
	newB := func(dep *a) *b { return &b{} }
	declA = Depends(newA)
	declB = Depends(newB)
	WithArgs(declB)(declA)
	WithArgs(declA)(declB)

	_, err := r.Resolve(declA)

	var cyclic *errspkg.CyclicDependencyError
	if !errors.As(err, &cyclic) {
		t.Fatalf("expected CyclicDependencyError, got %v", err)
	}
	if len(cyclic.Chain) < 2 {
		t.Fatalf("expected cycle chain, got %v", cyclic.Chain)
	}
	if cyclic.Chain[0] != cyclic.Chain[len(cyclic.Chain)-1] {
		t.Fatalf("expected chain to close on the repeated provider, got %v", cyclic.Chain)
	}
}

func TestResolveSelfCycleWithoutCache(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, Builtins{}, false)

	type node struct{}
	var decl *Declaration
	newNode := func(parent *node) *node { return &node{} }
	decl = Depends(newNode, NoCache())
	WithArgs(decl)(decl)

	_, err := r.Resolve(decl)
	if !errspkg.IsCyclicDependency(err) {
		t.Fatalf("expected cycle even with caching disabled, got %v", err)
	}
}

func TestResolveReleaseOrder(t *testing.T) {
	t.Parallel()

	var released []string

	first := func() (string, func()) {
		return "first", func() { released = append(released, "first") }
	}
	second := func() (string, func() error) {
		return "second", func() error {
			released = append(released, "second")
			return nil
		}
	}

	r := newTestResolver(t, Builtins{}, false)
	if _, err := r.Resolve(Depends(first)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Resolve(Depends(second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := r.Ctx.Teardown(); err != nil {
		t.Fatalf("unexpected teardown error: %v", err)
	}

	if len(released) != 2 || released[0] != "second" || released[1] != "first" {
		t.Fatalf("expected reverse acquisition order, got %v", released)
	}

	t.Run("teardown is idempotent", func(t *testing.T) {
		if err := r.Ctx.Teardown(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(released) != 2 {
			t.Fatalf("releases ran twice: %v", released)
		}
	})
}

func TestResolveReleaseErrorsJoined(t *testing.T) {
	t.Parallel()

	releaseErr := errors.New("close failed")
	provider := func() (string, func() error) {
		return "v", func() error { return releaseErr }
	}

	r := newTestResolver(t, Builtins{}, false)
	if _, err := r.Resolve(Depends(provider)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := r.Ctx.Teardown()
	if !errors.Is(err, releaseErr) {
		t.Fatalf("expected release error to surface, got %v", err)
	}
}

func TestResolveProviderError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	provider := func() (int, error) { return 0, boom }

	r := newTestResolver(t, Builtins{}, false)
	_, err := r.Resolve(Depends(provider))
	if !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestResolveSuspendingInParallelMode(t *testing.T) {
	t.Parallel()

	suspending := func(ctx context.Context) int { return 1 }

	t.Run("rejected in parallel mode", func(t *testing.T) {
		r := newTestResolver(t, Builtins{}, true)
		_, err := r.Resolve(Depends(suspending))

		var mismatch *errspkg.SyncAsyncMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("expected SyncAsyncMismatchError, got %v", err)
		}
	})

	t.Run("allowed in cooperative mode", func(t *testing.T) {
		r := newTestResolver(t, Builtins{}, false)
		v, err := r.Resolve(Depends(suspending))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != 1 {
			t.Fatalf("expected 1, got %v", v)
		}
	})
}

func TestResolveBuiltins(t *testing.T) {
	t.Parallel()

	builtins := Builtins{
		SocketID:  "sid-1",
		Event:     "connect",
		Namespace: "/",
		Environ:   map[string]any{"remote": "10.0.0.1"},
		Auth:      map[string]any{"token": "t"},
		HasAuth:   true,
	}

	provider := func(sid types.SocketID, event types.Event, env types.Environ, auth types.Auth) string {
		return string(sid) + ":" + string(event)
	}

	r := newTestResolver(t, builtins, false)
	v, err := r.Resolve(Depends(provider))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "sid-1:connect" {
		t.Fatalf("unexpected value: %v", v)
	}
}

func TestResolveAuthOutsideConnect(t *testing.T) {
	t.Parallel()

	provider := func(auth types.Auth) string { return "x" }

	r := newTestResolver(t, Builtins{Event: "chat_message"}, false)
	_, err := r.Resolve(Depends(provider))

	var notAvailable *errspkg.AuthNotAvailableError
	if !errors.As(err, &notAvailable) {
		t.Fatalf("expected AuthNotAvailableError, got %v", err)
	}
	if notAvailable.Event != "chat_message" {
		t.Fatalf("expected offending event name, got %q", notAvailable.Event)
	}
}

func TestResolveReasonOutsideDisconnect(t *testing.T) {
	t.Parallel()

	provider := func(reason types.Reason) string { return "x" }

	r := newTestResolver(t, Builtins{Event: "connect"}, false)
	_, err := r.Resolve(Depends(provider))

	var notAvailable *errspkg.ReasonNotAvailableError
	if !errors.As(err, &notAvailable) {
		t.Fatalf("expected ReasonNotAvailableError, got %v", err)
	}
}

func TestResolveCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Resolver{
		Ctx:      NewContext(ctx, Builtins{}, false),
		Registry: NewRegistry(),
	}

	_, err := r.Resolve(Depends(func() int { return 1 }))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
