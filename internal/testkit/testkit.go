// Package testkit binds a fresh site runtime and mocker registry to a test.
//
//	func TestFeed(t *testing.T) {
//		tc := testkit.New(t)
//		tc.HTTP().MockURL("https://example.com/feed", "<rss/>")
//		...
//	}
//
// Every mocker is reset when the test ends.
package testkit

import (
	"testing"

	"github.com/comfortablynumb/pmp-unit-test/internal/cms"
	"github.com/comfortablynumb/pmp-unit-test/internal/config"
	"github.com/comfortablynumb/pmp-unit-test/internal/mocks"
	"github.com/comfortablynumb/pmp-unit-test/internal/registry"
	"github.com/comfortablynumb/pmp-unit-test/internal/requests"
)

// Case is a running test case. It is the registry's test context: it
// provides the data factory and simulates front end requests.
type Case struct {
	tb       testing.TB
	Env      *cms.Env
	Registry *registry.Registry
	Config   *config.Config
	fixtures cms.Fixtures
}

type options struct {
	cfg      *config.Config
	reg      *registry.Registry
	httpOpts []mocks.HTTPOption
}

// Option configures New
type Option func(*options)

// WithConfig uses cfg instead of the PMP_* environment
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithRegistry registers the mockers with reg instead of a fresh registry
func WithRegistry(reg *registry.Registry) Option {
	return func(o *options) {
		o.reg = reg
	}
}

// WithHTTPOptions passes opts to the HTTP mocker
func WithHTTPOptions(opts ...mocks.HTTPOption) Option {
	return func(o *options) {
		o.httpOpts = append(o.httpOpts, opts...)
	}
}

// New creates a test case with the built-in mockers registered and bound to
// it. The registry is reset and unbound when tb finishes.
func New(tb testing.TB, opts ...Option) *Case {
	tb.Helper()

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg == nil {
		cfg, err := config.FromEnv()
		if err != nil {
			tb.Fatalf("failed to load harness config: %v", err)
		}
		o.cfg = cfg
	}
	if o.reg == nil {
		o.reg = registry.New()
	}

	env := cms.NewEnv()
	c := &Case{
		tb:       tb,
		Env:      env,
		Registry: o.reg,
		Config:   o.cfg,
		fixtures: cms.NewFixtures(env.Store),
	}

	httpOpts := append([]mocks.HTTPOption{
		mocks.WithRemoteTransport(requests.NewNetTransport(requests.NewClient(o.cfg.PassthroughTimeout))),
	}, o.httpOpts...)

	if err := mocks.RegisterDefaults(o.reg, env, httpOpts...); err != nil {
		tb.Fatalf("failed to register mockers: %v", err)
	}
	o.reg.SetTestContext(c)

	tb.Cleanup(func() {
		o.reg.ResetAll()
		o.reg.SetTestContext(nil)
	})

	h := c.HTTP()
	if o.cfg.Record {
		h.Recorder().Start()
	}
	if len(o.cfg.FixturesDirs) > 0 {
		if _, err := h.LoadFixtures(o.cfg.FixturesDirs...); err != nil {
			tb.Fatalf("failed to load HTTP fixtures: %v", err)
		}
	}
	if o.cfg.Default404 {
		h.DefaultNotFound(true, o.cfg.Verbal404)
	}
	return c
}

// Fixtures implements registry.TestContext
func (c *Case) Fixtures() cms.Fixtures {
	return c.fixtures
}

// GoTo implements registry.Navigator
func (c *Case) GoTo(url string) {
	c.Env.GoTo(url)
}

// Mock calls the mocker registered as name and fails the test on error
func (c *Case) Mock(name string, args ...any) any {
	c.tb.Helper()
	out, err := c.Registry.Call(name, args...)
	if err != nil {
		c.tb.Fatalf("mock %s: %v", name, err)
	}
	return out
}

// HTTP returns the HTTP mocker
func (c *Case) HTTP() *mocks.HTTP {
	return get[*mocks.HTTP](c, mocks.ServiceHTTP)
}

// Post returns the post mocker
func (c *Case) Post() *mocks.Post {
	return get[*mocks.Post](c, mocks.ServicePost)
}

// Image returns the image mocker
func (c *Case) Image() *mocks.Image {
	return get[*mocks.Image](c, mocks.ServiceImage)
}

// User returns the user mocker
func (c *Case) User() *mocks.User {
	return get[*mocks.User](c, mocks.ServiceUser)
}

// Input returns the input mocker
func (c *Case) Input() *mocks.Input {
	return get[*mocks.Input](c, mocks.ServiceInput)
}

// Mail returns the mail mocker
func (c *Case) Mail() *mocks.Mail {
	return get[*mocks.Mail](c, mocks.ServiceMail)
}

// WP returns the query mocker
func (c *Case) WP() *mocks.WP {
	return get[*mocks.WP](c, mocks.ServiceWP)
}

func get[T any](c *Case, service string) T {
	c.tb.Helper()
	m, err := c.Registry.Get(service)
	if err != nil {
		c.tb.Fatalf("%v", err)
	}
	typed, ok := m.(T)
	if !ok {
		c.tb.Fatalf("mocker %q is a %T", service, m)
	}
	return typed
}
