package mocks

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/comfortablynumb/pmp-unit-test/internal/cms"
	"github.com/comfortablynumb/pmp-unit-test/internal/mocker"
	"github.com/comfortablynumb/pmp-unit-test/internal/registry"
)

const (
	ServicePost = "post"

	// AMPQueryVar is the query var marking an AMP endpoint request
	AMPQueryVar = "amp"

	// SpreadOut as PostArgs.Date makes Seed date each post one day before
	// the previous one.
	SpreadOut = "spread-out"

	defaultSeedCount = 5
)

// Post mocks the current post. The first Mock, or any Mock with arguments,
// creates a post and makes it the queried post.
type Post struct {
	generator
	mockedID int64
	seeds    []*cms.Post
	seeding  bool
	ids      []int64
}

// NewPost creates a post mocker creating fixtures through reg
func NewPost(reg *registry.Registry, env *cms.Env) *Post {
	return &Post{generator: generator{reg: reg, env: env}}
}

// ProvideService implements mocker.Mocker
func (p *Post) ProvideService() string {
	return ServicePost
}

// Reset deletes every post the mocker created
func (p *Post) Reset() {
	for _, id := range p.ids {
		p.env.Store.DeletePost(id)
	}
	p.ids = nil
	p.seeds = nil
	p.mockedID = 0
	p.seeding = false
}

// Mock implements mocker.Caller. With no arguments it reuses the current
// mocked post; a cms.PostArgs argument always creates a new one.
func (p *Post) Mock(args ...any) (any, error) {
	if len(args) == 0 {
		return p, p.mock(nil)
	}
	a, err := postArgs(args[0])
	if err != nil {
		return nil, err
	}
	return p, p.mock(&a)
}

// MockPost creates a post from args, makes it current and returns it
func (p *Post) MockPost(args cms.PostArgs) (*cms.Post, error) {
	if err := p.mock(&args); err != nil {
		return nil, err
	}
	return p.Get()
}

func (p *Post) mock(args *cms.PostArgs) error {
	if args != nil || p.mockedID == 0 {
		var a cms.PostArgs
		if args != nil {
			a = *args
		}

		if a.Type != "" && !p.env.Store.PostTypeExists(a.Type) {
			p.env.Store.RegisterPostType(a.Type)
		}

		post, err := p.generate(a)
		if err != nil {
			return err
		}
		p.mockedID = post.ID
		p.ids = append(p.ids, post.ID)

		taxonomies := make([]string, 0, len(a.Taxonomy))
		for tax := range a.Taxonomy {
			taxonomies = append(taxonomies, tax)
		}
		sort.Strings(taxonomies)
		for _, tax := range taxonomies {
			p.env.Store.RegisterTaxonomyForObjectType(tax, post.Type)
			if err := p.env.Store.SetObjectTerms(post.ID, a.Taxonomy[tax], tax); err != nil {
				return err
			}
		}

		for key, value := range a.PostMeta {
			if err := p.env.Store.AddPostMeta(post.ID, key, value); err != nil {
				return err
			}
		}

		p.env.Hooks.DoAction(cms.ActionMockedPost, post, a)

		if a.Callback != nil {
			a.Callback(post)
		}
	}

	if p.mockedID != 0 && !p.seeding {
		p.navigate(p.mockedID)
	}
	return nil
}

// navigate makes post id the queried post, through the test case when it
// can simulate requests.
func (p *Post) navigate(id int64) {
	if nav, ok := p.reg.TestContext().(registry.Navigator); ok {
		nav.GoTo(fmt.Sprintf("/?p=%d", id))
		return
	}
	p.env.QueryPosts(cms.QueryArgs{"p": id})
}

// Get returns the current mocked post, mocking one first if needed
func (p *Post) Get() (*cms.Post, error) {
	if p.mockedID == 0 {
		if err := p.mock(nil); err != nil {
			return nil, err
		}
	}
	return p.env.Store.GetPost(p.mockedID), nil
}

// Revision saves a revision of the current post and returns it
func (p *Post) Revision() (*cms.Post, error) {
	post, err := p.Get()
	if err != nil {
		return nil, err
	}
	id, err := p.env.Store.SaveRevision(post.ID)
	if err != nil {
		return nil, err
	}
	p.ids = append(p.ids, id)
	return p.env.Store.GetPost(id), nil
}

// IsAMP marks the current request as an AMP endpoint (or not). AMP pages
// are always front end pages.
func (p *Post) IsAMP(enable bool) (*Post, error) {
	if err := p.mock(nil); err != nil {
		return nil, err
	}
	if enable {
		p.env.SetCurrentScreen(cms.ScreenFront)
	}
	if q := p.env.Query(); q != nil {
		q.Set(AMPQueryVar, enable)
	}
	return p, nil
}

// Seed creates count posts from args. String fields may hold %d for the
// post number; Date set to SpreadOut spaces the posts one day apart.
func (p *Post) Seed(count int, args cms.PostArgs) (*Post, error) {
	p.seeding = true
	defer func() { p.seeding = false }()

	if args.Status == "" {
		args.Status = "publish"
	}
	if args.Title == "" {
		args.Title = "Post #%d"
	}
	if args.Excerpt == "" {
		args.Excerpt = "Excerpt #%d"
	}
	if args.Content == "" {
		args.Content = "Content #%d"
	}

	spread := strings.EqualFold(args.Date, SpreadOut)
	anchor := time.Now()

	for i := 0; i < count; i++ {
		a := args
		date := anchor
		if spread {
			date = anchor.Add(-time.Duration(i) * 24 * time.Hour)
		}
		a.Date = date.Format(cms.DateLayout)

		if err := p.mock(&a); err != nil {
			return nil, err
		}
		post, err := p.Get()
		if err != nil {
			return nil, err
		}
		p.seeds = append(p.seeds, post)
	}
	return p, nil
}

// GetSeeds returns the seeded posts, seeding the default five first if
// nothing was seeded yet
func (p *Post) GetSeeds() ([]*cms.Post, error) {
	if len(p.seeds) == 0 {
		if _, err := p.Seed(defaultSeedCount, cms.PostArgs{}); err != nil {
			return nil, err
		}
	}
	return append([]*cms.Post(nil), p.seeds...), nil
}

// Dispatch implements mocker.Dispatcher. Any is_* name sets that flag on
// the current query.
func (p *Post) Dispatch(method string, args ...any) (any, error) {
	switch method {
	case "get":
		return p.Get()
	case "revision":
		return p.Revision()
	case "is_amp":
		return p.IsAMP(mocker.Arg(args, 0, true))
	case "seed":
		a, err := postArgs(mocker.Arg[any](args, 1, nil))
		if err != nil {
			return nil, err
		}
		return p.Seed(mocker.Arg(args, 0, defaultSeedCount), a)
	case "get_seeds":
		return p.GetSeeds()
	}

	if strings.HasPrefix(method, "is_") {
		q := p.env.Query()
		if q == nil {
			return nil, fmt.Errorf("%w: post has not been mocked", mocker.ErrNotInitialized)
		}
		if q.HasFlag(method) {
			q.SetFlag(method, mocker.Arg(args, 0, true))
		}
		return p, nil
	}
	return nil, mocker.UnknownMethod(ServicePost, method)
}
