package registry

import (
	"errors"
	"reflect"
	"testing"

	"github.com/comfortablynumb/pmp-unit-test/internal/cms"
	"github.com/comfortablynumb/pmp-unit-test/internal/mocker"
	"github.com/comfortablynumb/pmp-unit-test/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeMocker struct {
	service string
	calls   [][]any
	methods []string
	resets  int
	inits   int
}

func (m *fakeMocker) ProvideService() string { return m.service }

func (m *fakeMocker) Mock(args ...any) (any, error) {
	m.calls = append(m.calls, args)
	return m, nil
}

func (m *fakeMocker) Dispatch(method string, args ...any) (any, error) {
	m.methods = append(m.methods, method)
	return method, nil
}

func (m *fakeMocker) Reset() { m.resets++ }

func (m *fakeMocker) Init() { m.inits++ }

// plainMocker has a service name but no entry points
type plainMocker struct{}

func (plainMocker) ProvideService() string { return "plain" }

type fakeContext struct {
	fixtures cms.Fixtures
}

func (c *fakeContext) Fixtures() cms.Fixtures { return c.fixtures }

func TestRegister(t *testing.T) {
	fn := mocker.Func(func(args ...any) (any, error) { return "called", nil })

	tests := []struct {
		name    string
		value   any
		service string
		wantErr bool
		wantAs  string
	}{
		{"mocker uses its service", &fakeMocker{service: "fake"}, "", false, "fake"},
		{"mocker with override", &fakeMocker{service: "fake"}, "other", false, "other"},
		{"func with name", fn, "fn", false, "fn"},
		{"plain func with name", func(args ...any) (any, error) { return nil, nil }, "plainfn", false, "plainfn"},
		{"func without name", fn, "", true, ""},
		{"nil func", mocker.Func(nil), "fn", true, ""},
		{"constructor", Constructor(func(r *Registry) mocker.Mocker { return &fakeMocker{service: "built"} }), "", false, "built"},
		{"object with name", &struct{}{}, "object", false, "object"},
		{"object without name", &struct{}{}, "", true, ""},
		{"unknown class name", "SomeMocker", "", true, ""},
		{"nil", nil, "x", true, ""},
		{"int", 42, "x", true, ""},
		{"nil pointer", (*fakeMocker)(nil), "x", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			_, err := r.Register(tt.value, tt.service)
			if tt.wantErr {
				if !errors.Is(err, mocker.ErrRegistration) {
					t.Errorf("Expected ErrRegistration, got %v", err)
				}
				if len(r.Services()) != 0 {
					t.Errorf("Expected nothing registered, got %v", r.Services())
				}
				return
			}
			if err != nil {
				t.Fatalf("Register failed: %v", err)
			}
			if _, err := r.Get(tt.wantAs); err != nil {
				t.Errorf("Expected mocker under %q: %v", tt.wantAs, err)
			}
		})
	}
}

func TestGetUnknown(t *testing.T) {
	r := New()
	before := testutil.ToFloat64(observability.DispatchErrorCounter())

	_, err := r.Get("missing")
	if !errors.Is(err, mocker.ErrDispatch) {
		t.Errorf("Expected ErrDispatch, got %v", err)
	}
	if got := testutil.ToFloat64(observability.DispatchErrorCounter()); got != before+1 {
		t.Errorf("Expected dispatch error counter %v, got %v", before+1, got)
	}

	defer func() {
		if recover() == nil {
			t.Error("Expected MustGet to panic")
		}
	}()
	r.MustGet("missing")
}

func TestCall(t *testing.T) {
	r := New()
	m := &fakeMocker{service: "http"}
	multi := &fakeMocker{service: "my_svc"}
	for _, v := range []*fakeMocker{m, multi} {
		if _, err := r.Register(v, ""); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	if _, err := r.Register(mocker.Func(func(args ...any) (any, error) { return len(args), nil }), "count"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := r.Call("http", "a"); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if _, err := r.Call("mock_http", "b"); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !reflect.DeepEqual(m.calls, [][]any{{"a"}, {"b"}}) {
		t.Errorf("Expected two calls, got %v", m.calls)
	}

	out, err := r.Call("count", 1, 2, 3)
	if err != nil || out != 3 {
		t.Errorf("Expected 3, got %v (%v)", out, err)
	}

	out, err = r.Call("http_remove", "url")
	if err != nil || out != "remove" {
		t.Errorf("Expected remove dispatch, got %v (%v)", out, err)
	}
	out, err = r.Call("mock_http_default_not_found")
	if err != nil || out != "default_not_found" {
		t.Errorf("Expected default_not_found dispatch, got %v (%v)", out, err)
	}
	out, err = r.Call("my_svc_do_thing")
	if err != nil || out != "do_thing" {
		t.Errorf("Expected do_thing dispatch, got %v (%v)", out, err)
	}

	for _, name := range []string{"unknown", "mock_unknown", "unknown_method", "_http"} {
		if _, err := r.Call(name); !errors.Is(err, mocker.ErrDispatch) {
			t.Errorf("Call(%q): expected ErrDispatch, got %v", name, err)
		}
	}
}

func TestCallNotCallable(t *testing.T) {
	r := New()
	if _, err := r.Register(plainMocker{}, ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := r.Call("plain"); !errors.Is(err, mocker.ErrDispatch) {
		t.Errorf("Expected ErrDispatch, got %v", err)
	}
	if _, err := r.Call("plain_get"); !errors.Is(err, mocker.ErrDispatch) {
		t.Errorf("Expected ErrDispatch, got %v", err)
	}
	if _, err := r.Dispatch("plain", "get"); !errors.Is(err, mocker.ErrDispatch) {
		t.Errorf("Expected ErrDispatch, got %v", err)
	}
}

func TestDispatch(t *testing.T) {
	r := New()
	m := &fakeMocker{service: "http"}
	if _, err := r.Register(m, ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	out, err := r.Dispatch("http", "once", "url", "body")
	if err != nil || out != "once" {
		t.Errorf("Expected once, got %v (%v)", out, err)
	}
	if _, err := r.Dispatch("missing", "once"); !errors.Is(err, mocker.ErrDispatch) {
		t.Errorf("Expected ErrDispatch, got %v", err)
	}
}

func TestRegisterAllResetAllInitAll(t *testing.T) {
	r := New()
	a := &fakeMocker{service: "a"}
	b := &fakeMocker{service: "b"}

	err := r.RegisterAll(
		func(*Registry) mocker.Mocker { return a },
		func(*Registry) mocker.Mocker { return b },
	)
	if err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}
	if a.inits != 1 || b.inits != 1 {
		t.Errorf("Expected one init each, got %d and %d", a.inits, b.inits)
	}

	r.ResetAll().ResetAll()
	if a.resets != 2 || b.resets != 2 {
		t.Errorf("Expected two resets each, got %d and %d", a.resets, b.resets)
	}

	if got := r.Services(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Expected [a b], got %v", got)
	}

	if !r.Unregister("a") || r.Unregister("a") {
		t.Error("Expected Unregister to succeed once")
	}
}

func TestSetTestContext(t *testing.T) {
	r := New()
	if r.Fixtures() != nil || r.TestContext() != nil {
		t.Error("Expected unbound registry")
	}

	fixtures := cms.NewFixtures(cms.NewStore())
	ctx := &fakeContext{fixtures: fixtures}
	r.SetTestContext(ctx)
	if r.TestContext() != ctx {
		t.Error("Expected bound context")
	}
	if r.Fixtures() != fixtures {
		t.Error("Expected fixtures from the context")
	}

	r.SetTestContext(nil)
	if r.Fixtures() != nil || r.TestContext() != nil {
		t.Error("Expected registry to be unbound")
	}
}

func TestDefault(t *testing.T) {
	first := Default()
	if first != Default() {
		t.Error("Expected the same default registry")
	}
}
