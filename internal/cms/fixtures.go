package cms

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PostArgs describe a post fixture. Zero values take the store defaults.
type PostArgs struct {
	Type     string
	Status   string
	Title    string
	Content  string
	Excerpt  string
	Name     string
	Parent   int64
	Date     string // DateLayout, or "spread-out" when seeding
	Taxonomy map[string][]string
	PostMeta map[string]any
	Callback func(*Post)
}

// Fixtures creates content fixtures: the data factory of a test case.
type Fixtures interface {
	CreatePost(args PostArgs) (*Post, error)
	CreateAttachment(args PostArgs) (*Post, error)
	UploadObject(file string, parent int64) (int64, error)
	CreateUser(role string) (int64, error)
}

type storeFixtures struct {
	store *Store
}

// NewFixtures returns a data factory writing to store
func NewFixtures(store *Store) Fixtures {
	return &storeFixtures{store: store}
}

func (f *storeFixtures) CreatePost(args PostArgs) (*Post, error) {
	p := &Post{
		Type:    args.Type,
		Status:  args.Status,
		Title:   args.Title,
		Content: args.Content,
		Excerpt: args.Excerpt,
		Name:    args.Name,
		Parent:  args.Parent,
		Date:    time.Now(),
	}
	if args.Date != "" {
		d, err := time.ParseInLocation(DateLayout, args.Date, time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid post date %q: %w", args.Date, err)
		}
		p.Date = d
	}
	if p.Type != "" && !f.store.PostTypeExists(p.Type) {
		return nil, fmt.Errorf("post type %q is not registered", p.Type)
	}
	f.store.InsertPost(p)
	return p, nil
}

func (f *storeFixtures) CreateAttachment(args PostArgs) (*Post, error) {
	args.Type = "attachment"
	if args.Status == "" {
		args.Status = "inherit"
	}
	return f.CreatePost(args)
}

func (f *storeFixtures) UploadObject(file string, parent int64) (int64, error) {
	if _, err := os.Stat(file); err != nil {
		return 0, fmt.Errorf("failed to upload %s: %w", file, err)
	}
	name := filepath.Base(file)
	p, err := f.CreateAttachment(PostArgs{Title: name, Name: name, Parent: parent})
	if err != nil {
		return 0, err
	}
	p.File = file
	return p.ID, nil
}

func (f *storeFixtures) CreateUser(role string) (int64, error) {
	if role == "" {
		return 0, fmt.Errorf("role is required")
	}
	return f.store.InsertUser(&User{Roles: []string{role}}), nil
}
