// Package registry is the lookup and dispatch point for mockers. Tests ask it
// for a mocker by service name, call mockers by name, and reset every mocker
// at teardown.
package registry

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/comfortablynumb/pmp-unit-test/internal/cms"
	"github.com/comfortablynumb/pmp-unit-test/internal/mocker"
	"github.com/comfortablynumb/pmp-unit-test/internal/observability"
	"go.uber.org/zap"
)

// mockPrefix is stripped from call names, so "mock_http" resolves to "http".
const mockPrefix = "mock_"

// TestContext is the running test case the registry is bound to.
type TestContext interface {
	// Fixtures returns the data factory used to create content fixtures.
	Fixtures() cms.Fixtures
}

// Navigator is implemented by test contexts that can simulate a request to
// a site URL.
type Navigator interface {
	GoTo(url string)
}

// Constructor builds a mocker bound to r. Registering a Constructor
// registers the mocker it returns.
type Constructor func(r *Registry) mocker.Mocker

// Registry maps service names to mockers.
type Registry struct {
	mu       sync.RWMutex
	mocks    map[string]any
	ctx      TestContext
	fixtures cms.Fixtures
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// New creates an empty, unbound registry
func New() *Registry {
	return &Registry{mocks: make(map[string]any)}
}

// Default returns the process-wide registry, creating it on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New()
	})
	return defaultRegistry
}

// Register adds a mocker under service. v may be a mocker.Func (service is
// required), a Constructor, or any mocker object; objects implementing
// mocker.Mocker default to their own service name.
func (r *Registry) Register(v any, service string) (*Registry, error) {
	switch m := v.(type) {
	case mocker.Func:
		return r.registerFunc(m, service)
	case func(args ...any) (any, error):
		return r.registerFunc(m, service)
	case Constructor:
		return r.Register(m(r), service)
	case func(*Registry) mocker.Mocker:
		return r.Register(m(r), service)
	case string:
		return r, fmt.Errorf("%w: unknown mocker %q", mocker.ErrRegistration, m)
	}

	if !isObject(v) {
		return r, fmt.Errorf("%w: cannot register %T as a mocker", mocker.ErrRegistration, v)
	}

	if service == "" {
		if m, ok := v.(mocker.Mocker); ok {
			service = m.ProvideService()
		}
	}
	if service == "" {
		return r, fmt.Errorf("%w: mocker with unknown service name: %T", mocker.ErrRegistration, v)
	}

	r.mu.Lock()
	r.mocks[service] = v
	r.mu.Unlock()

	observability.Debug("registered mocker", zap.String("service", service), zap.String("type", fmt.Sprintf("%T", v)))
	return r, nil
}

func (r *Registry) registerFunc(fn mocker.Func, service string) (*Registry, error) {
	if fn == nil {
		return r, fmt.Errorf("%w: nil callable mock", mocker.ErrRegistration)
	}
	if service == "" {
		return r, fmt.Errorf("%w: callable mock, service name required", mocker.ErrRegistration)
	}

	r.mu.Lock()
	r.mocks[service] = fn
	r.mu.Unlock()
	return r, nil
}

func isObject(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	case reflect.Struct:
		return true
	}
	return false
}

// RegisterAll registers the mockers built by ctors, then initializes every
// registered mocker.
func (r *Registry) RegisterAll(ctors ...Constructor) error {
	for _, ctor := range ctors {
		if _, err := r.Register(ctor, ""); err != nil {
			return err
		}
	}
	r.InitAll()
	return nil
}

// Unregister removes the mocker registered under service
func (r *Registry) Unregister(service string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.mocks[service]; !ok {
		return false
	}
	delete(r.mocks, service)
	return true
}

// Get returns the mocker registered under service.
func (r *Registry) Get(service string) (any, error) {
	r.mu.RLock()
	m, ok := r.mocks[service]
	r.mu.RUnlock()

	if !ok {
		observability.RecordDispatchError()
		return nil, fmt.Errorf("%w: unregistered mocker %q", mocker.ErrDispatch, service)
	}
	return m, nil
}

// MustGet is Get for test code: it panics on unknown services.
func (r *Registry) MustGet(service string) any {
	m, err := r.Get(service)
	if err != nil {
		panic(err)
	}
	return m
}

// Call invokes a mocker by name. Names resolve in order: an exact service
// name, the name without its "mock_" prefix, then "<service>_<method>"
// dispatched to the service's Dispatch method.
func (r *Registry) Call(name string, args ...any) (any, error) {
	if m, ok := r.lookup(name); ok {
		return r.invoke(name, m, args)
	}

	stripped := strings.TrimPrefix(name, mockPrefix)
	if stripped != name {
		if m, ok := r.lookup(stripped); ok {
			return r.invoke(stripped, m, args)
		}
	}

	for i := len(stripped) - 1; i > 0; i-- {
		if stripped[i] != '_' {
			continue
		}
		if m, ok := r.lookup(stripped[:i]); ok {
			if d, ok := m.(mocker.Dispatcher); ok {
				return d.Dispatch(stripped[i+1:], args...)
			}
		}
	}

	observability.RecordDispatchError()
	return nil, fmt.Errorf("%w: call to unregistered mocker %q", mocker.ErrDispatch, name)
}

// Dispatch invokes method on the mocker registered under service, the
// `registry.service.method(args)` form.
func (r *Registry) Dispatch(service, method string, args ...any) (any, error) {
	m, err := r.Get(service)
	if err != nil {
		return nil, err
	}
	d, ok := m.(mocker.Dispatcher)
	if !ok {
		observability.RecordDispatchError()
		return nil, mocker.UnknownMethod(service, method)
	}
	return d.Dispatch(method, args...)
}

func (r *Registry) lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mocks[name]
	return m, ok
}

func (r *Registry) invoke(name string, m any, args []any) (any, error) {
	switch c := m.(type) {
	case mocker.Func:
		return c(args...)
	case mocker.Caller:
		return c.Mock(args...)
	}
	observability.RecordDispatchError()
	return nil, fmt.Errorf("%w: mocker %q is not callable", mocker.ErrDispatch, name)
}

// SetTestContext binds the running test case and derives the data factory
// from it. A nil ctx unbinds the registry.
func (r *Registry) SetTestContext(ctx TestContext) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ctx = ctx
	r.fixtures = nil
	if ctx != nil {
		r.fixtures = ctx.Fixtures()
	}
	return r
}

// TestContext returns the bound test case, or nil
func (r *Registry) TestContext() TestContext {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ctx
}

// Fixtures returns the data factory of the bound test case, or nil when the
// registry is unbound.
func (r *Registry) Fixtures() cms.Fixtures {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fixtures
}

// ResetAll resets every registered mocker that holds per-test state.
func (r *Registry) ResetAll() *Registry {
	for _, m := range r.snapshot() {
		if rs, ok := m.(mocker.Resetter); ok {
			rs.Reset()
		}
	}
	return r
}

// InitAll initializes every registered mocker that needs it
func (r *Registry) InitAll() *Registry {
	for _, m := range r.snapshot() {
		if in, ok := m.(mocker.Initializer); ok {
			in.Init()
		}
	}
	return r
}

// Services returns the registered service names, sorted
func (r *Registry) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.mocks))
	for name := range r.mocks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// snapshot returns the mockers in service name order. Mocker methods are
// called outside the lock since they may call back into the registry.
func (r *Registry) snapshot() []any {
	names := r.Services()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]any, 0, len(names))
	for _, name := range names {
		if m, ok := r.mocks[name]; ok {
			out = append(out, m)
		}
	}
	return out
}
