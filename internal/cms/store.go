package cms

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// DateLayout is the layout of post dates exchanged with the fixture factory
const DateLayout = "2006-01-02 15:04:05"

// Post is a stored content item. Attachments and revisions are posts with
// their own Type.
type Post struct {
	ID       int64
	Type     string
	Status   string
	Title    string
	Content  string
	Excerpt  string
	Name     string
	Parent   int64
	Date     time.Time
	File     string
	Meta     map[string][]any
	Terms    map[string][]string
	Modified time.Time
}

// User is a stored account.
type User struct {
	ID    int64
	Login string
	Roles []string
}

// HasRole reports whether the user carries role
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Store is the in-memory content store backing the runtime.
type Store struct {
	mu         sync.RWMutex
	posts      map[int64]*Post
	users      map[int64]*User
	postTypes  map[string]bool
	taxonomies map[string]map[string]bool
	nextPostID int64
	nextUserID int64
}

// NewStore creates a store with the built-in post types registered
func NewStore() *Store {
	return &Store{
		posts:      make(map[int64]*Post),
		users:      make(map[int64]*User),
		postTypes:  map[string]bool{"post": true, "page": true, "attachment": true, "revision": true},
		taxonomies: map[string]map[string]bool{"category": {"post": true}, "post_tag": {"post": true}},
	}
}

// InsertPost stores p under a fresh id and returns it.
func (s *Store) InsertPost(p *Post) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPostID++
	p.ID = s.nextPostID
	if p.Type == "" {
		p.Type = "post"
	}
	if p.Status == "" {
		p.Status = "publish"
	}
	if p.Meta == nil {
		p.Meta = make(map[string][]any)
	}
	if p.Terms == nil {
		p.Terms = make(map[string][]string)
	}
	s.posts[p.ID] = p
	return p.ID
}

// GetPost returns the post with id, or nil
func (s *Store) GetPost(id int64) *Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.posts[id]
}

// DeletePost removes a post and its revisions
func (s *Store) DeletePost(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return false
	}
	delete(s.posts, id)
	for rid, p := range s.posts {
		if p.Type == "revision" && p.Parent == id {
			delete(s.posts, rid)
		}
	}
	return true
}

// Posts returns the posts of postType ordered by date, newest first.
func (s *Store) Posts(postType string) []*Post {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Post, 0)
	for _, p := range s.posts {
		if postType == "" || p.Type == postType {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date.Equal(result[j].Date) {
			return result[i].ID > result[j].ID
		}
		return result[i].Date.After(result[j].Date)
	})
	return result
}

// RegisterPostType makes name a known post type
func (s *Store) RegisterPostType(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postTypes[name] = true
}

// PostTypeExists reports whether name was registered
func (s *Store) PostTypeExists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.postTypes[name]
}

// RegisterTaxonomyForObjectType attaches taxonomy to postType.
func (s *Store) RegisterTaxonomyForObjectType(taxonomy, postType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.taxonomies[taxonomy] == nil {
		s.taxonomies[taxonomy] = make(map[string]bool)
	}
	s.taxonomies[taxonomy][postType] = true
}

// SetObjectTerms replaces the terms of taxonomy on post id.
func (s *Store) SetObjectTerms(id int64, terms []string, taxonomy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return fmt.Errorf("post %d not found", id)
	}
	if !s.taxonomies[taxonomy][p.Type] {
		return fmt.Errorf("taxonomy %q is not registered for post type %q", taxonomy, p.Type)
	}
	p.Terms[taxonomy] = append([]string(nil), terms...)
	return nil
}

// AddPostMeta appends value under key on post id
func (s *Store) AddPostMeta(id int64, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return fmt.Errorf("post %d not found", id)
	}
	p.Meta[key] = append(p.Meta[key], value)
	return nil
}

// SaveRevision stores a revision snapshot of post id and returns its id.
func (s *Store) SaveRevision(id int64) (int64, error) {
	p := s.GetPost(id)
	if p == nil {
		return 0, fmt.Errorf("post %d not found", id)
	}

	s.mu.RLock()
	rev := &Post{
		Type:    "revision",
		Status:  "inherit",
		Title:   p.Title,
		Content: p.Content,
		Excerpt: p.Excerpt,
		Name:    fmt.Sprintf("%d-revision-v1", p.ID),
		Parent:  p.ID,
		Date:    time.Now(),
	}
	s.mu.RUnlock()

	return s.InsertPost(rev), nil
}

// InsertUser stores u under a fresh id and returns it
func (s *Store) InsertUser(u *User) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextUserID++
	u.ID = s.nextUserID
	if u.Login == "" {
		u.Login = fmt.Sprintf("user_%d", u.ID)
	}
	s.users[u.ID] = u
	return u.ID
}

// GetUser returns the user with id, or nil
func (s *Store) GetUser(id int64) *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[id]
}

// DeleteUser removes the user with id
func (s *Store) DeleteUser(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return false
	}
	delete(s.users, id)
	return true
}
