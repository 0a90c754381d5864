// Package mocker defines the contract every pluggable mock satisfies and the
// errors shared by the registry and the concrete mockers.
package mocker

import (
	"errors"
	"fmt"
)

var (
	// ErrRegistration is returned when a value cannot be registered as a mocker.
	ErrRegistration = errors.New("mocker registration failed")

	// ErrDispatch is returned when a call targets an unknown service or method.
	ErrDispatch = errors.New("mocker dispatch failed")

	// ErrNotInitialized is returned by content mockers used before a test
	// context has been bound to the registry.
	ErrNotInitialized = errors.New("mocker not properly initialized")
)

// Mocker simulates one category of runtime state for tests.
type Mocker interface {
	// ProvideService returns the name the mocker is registered under.
	ProvideService() string
}

// Resetter is implemented by mockers that hold per-test state.
type Resetter interface {
	Reset()
}

// Initializer is implemented by mockers that need one-time setup after
// registration.
type Initializer interface {
	Init()
}

// Caller is the `mock(args...)` entry point of a mocker.
type Caller interface {
	Mock(args ...any) (any, error)
}

// Dispatcher resolves follow-on calls such as `http.remove` by name.
type Dispatcher interface {
	Dispatch(method string, args ...any) (any, error)
}

// Func is a callable mocker. It has no service name of its own and must be
// registered with an explicit one.
type Func func(args ...any) (any, error)

// UnknownMethod builds the error returned for a method a mocker does not handle.
func UnknownMethod(service, method string) error {
	return fmt.Errorf("%w: call to unknown function %q on mocker %q", ErrDispatch, method, service)
}

// Arg returns args[i] converted to T, or def when it is absent or of another type.
func Arg[T any](args []any, i int, def T) T {
	if i >= len(args) {
		return def
	}
	if v, ok := args[i].(T); ok {
		return v
	}
	return def
}
