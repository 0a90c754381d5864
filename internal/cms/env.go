// Package cms is the in-process site runtime the mockers act on: the content
// store, the global query objects, the current user and screen, the request
// superglobals, the mailer slot, the option table and the hook bus.
package cms

import (
	"strings"
	"sync"
)

// Request superglobal buckets
const (
	MethodGet     = "GET"
	MethodPost    = "POST"
	MethodRequest = "REQUEST"
)

// Screen names
const (
	ScreenFront     = "front"
	ScreenDashboard = "dashboard"
)

// Env holds the global state of one site runtime.
type Env struct {
	Hooks *Hooks
	Store *Store

	mu           sync.RWMutex
	options      map[string]any
	screen       string
	currentUser  int64
	post         *Post
	wpQuery      *Query
	wpTheQuery   *Query
	superglobals map[string]map[string]string
	server       map[string]string
	mailer       Mailer
}

// NewEnv creates a runtime on the front end, logged out, with a home query
func NewEnv() *Env {
	q := NewQuery()
	q.Flags["is_home"] = true
	return &Env{
		Hooks:   NewHooks(),
		Store:   NewStore(),
		options: map[string]any{"show_on_front": "posts"},
		screen:  ScreenFront,
		wpQuery: q,
		// the main query starts out as the same object as the current query
		wpTheQuery: q,
		superglobals: map[string]map[string]string{
			MethodGet:     {},
			MethodPost:    {},
			MethodRequest: {},
		},
		server: map[string]string{"REQUEST_METHOD": MethodGet},
		mailer: &DefaultMailer{},
	}
}

// Option returns a site option
func (e *Env) Option(name string) any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.options[name]
}

// UpdateOption sets a site option
func (e *Env) UpdateOption(name string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.options[name] = value
}

// CurrentScreen returns the active screen id
func (e *Env) CurrentScreen() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.screen
}

// SetCurrentScreen switches the active screen
func (e *Env) SetCurrentScreen(screen string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.screen = screen
}

// IsAdmin reports whether the active screen is a dashboard screen
func (e *Env) IsAdmin() bool {
	return e.CurrentScreen() != ScreenFront
}

// SetCurrentUser logs in the user with id; zero logs out.
func (e *Env) SetCurrentUser(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentUser = id
}

// CurrentUser returns the logged in user, or the anonymous user with id 0.
func (e *Env) CurrentUser() *User {
	e.mu.RLock()
	id := e.currentUser
	e.mu.RUnlock()

	if id != 0 {
		if u := e.Store.GetUser(id); u != nil {
			return u
		}
	}
	return &User{}
}

// GlobalPost returns the current post
func (e *Env) GlobalPost() *Post {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.post
}

// SetGlobalPost sets the current post
func (e *Env) SetGlobalPost(p *Post) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.post = p
}

// Query returns the current query
func (e *Env) Query() *Query {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.wpQuery
}

// SetQuery replaces the current query
func (e *Env) SetQuery(q *Query) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wpQuery = q
}

// TheQuery returns the main query
func (e *Env) TheQuery() *Query {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.wpTheQuery
}

// SetTheQuery replaces the main query
func (e *Env) SetTheQuery(q *Query) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wpTheQuery = q
}

// QueryPosts runs args as the current and main query and sets up the current
// post from the result.
func (e *Env) QueryPosts(args QueryArgs) *Query {
	q := RunQuery(e.Store, args)
	e.mu.Lock()
	e.wpQuery = q
	e.wpTheQuery = q
	e.post = q.Post
	e.mu.Unlock()
	return q
}

// GoTo simulates a front-end request to url, e.g. "/" or "/?p=12".
func (e *Env) GoTo(url string) *Query {
	_, query, _ := strings.Cut(url, "?")
	args := parseQueryString(query)

	e.mu.Lock()
	e.superglobals[MethodGet] = make(map[string]string, len(args))
	for k, v := range args {
		e.superglobals[MethodGet][k] = v.(string)
	}
	e.mu.Unlock()

	return e.QueryPosts(args)
}

// Superglobal returns a copy of the request bucket for method.
func (e *Env) Superglobal(method string) map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	src := e.superglobals[strings.ToUpper(method)]
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// SetSuperglobal replaces the request bucket for method
func (e *Env) SetSuperglobal(method string, values map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	e.superglobals[strings.ToUpper(method)] = out
}

// Server returns a server variable such as REQUEST_METHOD
func (e *Env) Server(key string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.server[key]
}

// SetServer sets a server variable
func (e *Env) SetServer(key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.server[key] = value
}

// Mailer returns the active mail transport
func (e *Env) Mailer() Mailer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mailer
}

// SetMailer swaps the active mail transport
func (e *Env) SetMailer(m Mailer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mailer = m
}
