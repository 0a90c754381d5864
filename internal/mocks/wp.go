package mocks

import (
	"fmt"
	"sort"
	"strings"

	"github.com/comfortablynumb/pmp-unit-test/internal/cms"
	"github.com/comfortablynumb/pmp-unit-test/internal/mocker"
	"github.com/comfortablynumb/pmp-unit-test/internal/observability"
	"github.com/comfortablynumb/pmp-unit-test/internal/registry"
	"go.uber.org/zap"
)

const ServiceWP = "wp"

// wpProperties are the query properties Mock may set besides is_* flags
var wpProperties = map[string]bool{
	"query_vars":            true,
	"request":               true,
	"comment_count":         true,
	"max_num_pages":         true,
	"max_num_comment_pages": true,
	"queried_object_id":     true,
	"queried_object":        true,
}

// WP mocks the current and main query objects
type WP struct {
	reg            *registry.Registry
	env            *cms.Env
	backedUp       bool
	backupQuery    *cms.Query
	backupTheQuery *cms.Query
}

// NewWP creates a query mocker
func NewWP(reg *registry.Registry, env *cms.Env) *WP {
	return &WP{reg: reg, env: env}
}

// ProvideService implements mocker.Mocker
func (w *WP) ProvideService() string {
	return ServiceWP
}

// Mock implements mocker.Caller. The argument is a map of:
//
//	query      cms.QueryArgs (or map[string]any) run as a new current query
//	wp_query   a prebuilt *cms.Query used as the current query
//	feed       feed name, sets the feed query var and is_feed
//	is_*       conditional flags; is_front_page also sets show_on_front
//	query_vars, request, comment_count, max_num_pages,
//	max_num_comment_pages, queried_object_id, queried_object
func (w *WP) Mock(args ...any) (any, error) {
	var in map[string]any
	switch a := mocker.Arg[any](args, 0, nil).(type) {
	case nil:
	case map[string]any:
		in = a
	case cms.QueryArgs:
		in = a
	default:
		return nil, fmt.Errorf("%w: unsupported wp arguments %T", mocker.ErrDispatch, a)
	}

	opts := make(map[string]any, len(in))
	for k, v := range in {
		opts[k] = v
	}

	w.backup()
	if tq := w.env.TheQuery(); tq != nil {
		w.env.SetTheQuery(tq.Clone())
	}

	if q, ok := opts["query"]; ok && truthy(q) {
		w.env.SetQuery(cms.RunQuery(w.env.Store, toQueryArgs(q)))
	} else if q, ok := opts["wp_query"].(*cms.Query); ok && q != nil {
		w.env.SetQuery(q)
	}
	delete(opts, "query")
	delete(opts, "wp_query")

	if feed, ok := opts["feed"]; ok && truthy(feed) {
		vars := make(map[string]any)
		if existing, ok := opts["query_vars"].(map[string]any); ok {
			for k, v := range existing {
				vars[k] = v
			}
		}
		vars["feed"] = feed
		opts["query_vars"] = vars
		opts["is_feed"] = true
	}
	delete(opts, "feed")

	if obj, ok := opts["queried_object"]; ok && truthy(obj) {
		if id, ok := objectID(obj); ok {
			opts["queried_object_id"] = id
		}
	}

	for _, key := range orderedKeys(opts) {
		if err := w.apply(key, opts[key]); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// orderedKeys puts the front page flags first, since setting them can
// replace the current query, followed by the remaining keys sorted.
func orderedKeys(opts map[string]any) []string {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	rank := func(k string) int {
		if k == "is_front_page" || k == "is_home" {
			return 0
		}
		return 1
	}
	sort.Slice(keys, func(i, j int) bool {
		if rank(keys[i]) != rank(keys[j]) {
			return rank(keys[i]) < rank(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (w *WP) apply(key string, value any) error {
	flag := strings.HasPrefix(key, "is_")
	if !flag && !wpProperties[key] {
		if key == "post" {
			return fmt.Errorf("%w: mocking wp_query.post is not supported, use the post mocker", mocker.ErrDispatch)
		}
		return fmt.Errorf("%w: mocking wp_query.%s is not supported", mocker.ErrDispatch, key)
	}

	switch key {
	case "is_single", "is_singular", "is_attachment":
		if truthy(value) {
			observability.Warn("Deprecated query flag, mock the post instead", zap.String("flag", key))
		}
	case "is_front_page":
		key = "is_home"
		if truthy(value) {
			w.env.UpdateOption("show_on_front", "posts")
		} else {
			w.env.UpdateOption("show_on_front", false)
		}
	}

	if truthy(value) && (flag || key == "queried_object_id" || key == "queried_object") {
		w.env.SetTheQuery(w.env.Query())
	}

	if key == "is_home" && value == true {
		if nav, ok := w.reg.TestContext().(registry.Navigator); ok {
			nav.GoTo("/")
		}
		w.env.SetTheQuery(w.env.Query())
	}

	q := w.env.Query()
	if q == nil {
		return fmt.Errorf("%w: no current query", mocker.ErrNotInitialized)
	}

	switch key {
	case "query_vars":
		q.Vars = toVars(value)
	case "request":
		q.Request = fmt.Sprint(value)
	case "comment_count":
		q.CommentCount = int(toInt64(value))
	case "max_num_pages":
		q.MaxNumPages = int(toInt64(value))
	case "max_num_comment_pages":
		q.MaxNumCommentPages = int(toInt64(value))
	case "queried_object_id":
		q.QueriedObjectID = toInt64(value)
	case "queried_object":
		q.QueriedObject = value
	default:
		q.SetFlag(key, truthy(value))
	}
	return nil
}

// Set sets a query var on the current query
func (w *WP) Set(name string, value any) *WP {
	w.backup()
	if q := w.env.Query(); q != nil {
		q.Set(name, value)
	}
	return w
}

// Set404 marks the current query as not found
func (w *WP) Set404() *WP {
	w.backup()
	if q := w.env.Query(); q != nil {
		q.Set404()
	}
	return w
}

// backup snapshots both queries before the first change
func (w *WP) backup() {
	if w.backedUp {
		return
	}
	w.backupQuery = w.env.Query().Clone()
	w.backupTheQuery = w.env.TheQuery().Clone()
	w.backedUp = true
}

// Reset restores the queries seen before the first change
func (w *WP) Reset() {
	if !w.backedUp {
		return
	}
	w.env.SetQuery(w.backupQuery)
	w.env.SetTheQuery(w.backupTheQuery)
	w.backupQuery = nil
	w.backupTheQuery = nil
	w.backedUp = false
}

// Dispatch implements mocker.Dispatcher
func (w *WP) Dispatch(method string, args ...any) (any, error) {
	switch method {
	case "set":
		name := mocker.Arg(args, 0, "")
		if name == "" {
			return nil, fmt.Errorf("%w: wp.set needs a query var name", mocker.ErrDispatch)
		}
		return w.Set(name, mocker.Arg[any](args, 1, nil)), nil
	case "set_404":
		return w.Set404(), nil
	}
	return nil, mocker.UnknownMethod(ServiceWP, method)
}

// objectID derives the queried object id from a term, post or user
func objectID(obj any) (int64, bool) {
	switch o := obj.(type) {
	case *cms.Post:
		return o.ID, true
	case *cms.User:
		return o.ID, true
	case map[string]any:
		if id, ok := o["term_id"]; ok {
			return toInt64(id), true
		}
		if id, ok := o["ID"]; ok {
			return toInt64(id), true
		}
	}
	return 0, false
}

func toQueryArgs(v any) cms.QueryArgs {
	switch a := v.(type) {
	case cms.QueryArgs:
		return a
	case map[string]any:
		return cms.QueryArgs(a)
	case map[string]string:
		out := make(cms.QueryArgs, len(a))
		for k, val := range a {
			out[k] = val
		}
		return out
	}
	return cms.QueryArgs{}
}

func toVars(v any) map[string]any {
	out := make(map[string]any)
	switch vars := v.(type) {
	case map[string]any:
		for k, val := range vars {
			out[k] = val
		}
	case map[string]string:
		for k, val := range vars {
			out[k] = val
		}
	}
	return out
}
