package cms

import (
	"strconv"
	"strings"
)

// queryFlags are the conditional properties a Query carries.
var queryFlags = []string{
	"is_single", "is_preview", "is_page", "is_archive", "is_date", "is_year",
	"is_month", "is_day", "is_time", "is_author", "is_category", "is_tag",
	"is_tax", "is_search", "is_feed", "is_comment_feed", "is_trackback",
	"is_home", "is_privacy_policy", "is_404", "is_embed", "is_paged",
	"is_admin", "is_attachment", "is_singular", "is_robots", "is_favicon",
	"is_posts_page", "is_post_type_archive",
}

// Query is the main query object: the request's query vars, the matched
// posts and the conditional flags derived from them.
type Query struct {
	Vars               map[string]any
	Flags              map[string]bool
	Request            string
	CommentCount       int
	MaxNumPages        int
	MaxNumCommentPages int
	QueriedObjectID    int64
	QueriedObject      any
	Posts              []*Post
	Post               *Post
}

// QueryArgs are the arguments used to run a Query.
type QueryArgs map[string]any

// NewQuery returns an empty query with every known flag unset
func NewQuery() *Query {
	q := &Query{
		Vars:  make(map[string]any),
		Flags: make(map[string]bool, len(queryFlags)),
	}
	for _, f := range queryFlags {
		q.Flags[f] = false
	}
	return q
}

// RunQuery runs args against store. Supported vars are "p", "post_type" and
// "posts_per_page"; every var is kept in Vars.
func RunQuery(store *Store, args QueryArgs) *Query {
	q := NewQuery()
	for k, v := range args {
		q.Vars[k] = v
	}

	if id := toInt64(args["p"]); id > 0 {
		if p := store.GetPost(id); p != nil {
			q.Posts = []*Post{p}
		}
		q.Flags["is_single"] = true
		q.Flags["is_singular"] = true
	} else {
		postType, _ := args["post_type"].(string)
		if postType == "" {
			postType = "post"
		}
		q.Posts = store.Posts(postType)
		if n := int(toInt64(args["posts_per_page"])); n > 0 && len(q.Posts) > n {
			q.Posts = q.Posts[:n]
		}
		if len(args) == 0 {
			q.Flags["is_home"] = true
		} else {
			q.Flags["is_archive"] = true
			q.Flags["is_post_type_archive"] = postType != "post"
		}
	}

	if len(q.Posts) > 0 {
		q.Post = q.Posts[0]
	} else if q.Flags["is_singular"] {
		q.Set404()
	}
	return q
}

// HasFlag reports whether name is a known conditional flag
func (q *Query) HasFlag(name string) bool {
	_, ok := q.Flags[name]
	return ok
}

// Is returns the value of the conditional flag name
func (q *Query) Is(name string) bool {
	return q.Flags[name]
}

// Set stores a query var
func (q *Query) Set(name string, value any) {
	if q.Vars == nil {
		q.Vars = make(map[string]any)
	}
	q.Vars[name] = value
}

// SetFlag sets the conditional flag name
func (q *Query) SetFlag(name string, value bool) {
	if q.Flags == nil {
		q.Flags = make(map[string]bool, len(queryFlags))
	}
	q.Flags[name] = value
}

// Get returns a query var
func (q *Query) Get(name string) any {
	return q.Vars[name]
}

// Set404 marks the query as not found.
func (q *Query) Set404() {
	for f := range q.Flags {
		q.Flags[f] = false
	}
	q.SetFlag("is_404", true)
}

// ResetPostdata points Post back at the first matched post
func (q *Query) ResetPostdata() {
	q.Post = nil
	if len(q.Posts) > 0 {
		q.Post = q.Posts[0]
	}
}

// Clone returns a copy whose maps and post slice are independent of q.
func (q *Query) Clone() *Query {
	if q == nil {
		return nil
	}
	c := *q
	c.Vars = make(map[string]any, len(q.Vars))
	for k, v := range q.Vars {
		c.Vars[k] = v
	}
	c.Flags = make(map[string]bool, len(q.Flags))
	for k, v := range q.Flags {
		c.Flags[k] = v
	}
	c.Posts = append([]*Post(nil), q.Posts...)
	return &c
}

// parseQueryString turns "p=12&post_type=page" into QueryArgs.
func parseQueryString(s string) QueryArgs {
	args := make(QueryArgs)
	s = strings.TrimPrefix(s, "?")
	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		args[k] = v
	}
	return args
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}
