// Package mocks holds the concrete mockers: the HTTP transport interceptor
// and the content and state mockers acting on a cms.Env.
package mocks

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/comfortablynumb/pmp-unit-test/internal/cms"
	"github.com/comfortablynumb/pmp-unit-test/internal/mocker"
	"github.com/comfortablynumb/pmp-unit-test/internal/registry"
)

// counterPlaceholder in string fixture fields is replaced by the mocker's
// generation counter.
const counterPlaceholder = "%d"

// generator creates content fixtures through the registry's data factory.
type generator struct {
	reg     *registry.Registry
	env     *cms.Env
	counter int
}

func (g *generator) fixtures() (cms.Fixtures, error) {
	f := g.reg.Fixtures()
	if f == nil {
		return nil, fmt.Errorf("%w: no test context bound to the registry", mocker.ErrNotInitialized)
	}
	return f, nil
}

// generate creates a post (or an attachment) from args with every hook
// suspended, after filling counter placeholders.
func (g *generator) generate(args cms.PostArgs) (*cms.Post, error) {
	f, err := g.fixtures()
	if err != nil {
		return nil, err
	}

	g.counter++
	args = fillCounter(args, g.counter)

	restore := g.env.Hooks.Suspend()
	defer restore()

	if args.Type == "attachment" {
		return f.CreateAttachment(args)
	}
	return f.CreatePost(args)
}

func fillCounter(args cms.PostArgs, n int) cms.PostArgs {
	num := strconv.Itoa(n)
	for _, field := range []*string{&args.Type, &args.Status, &args.Title, &args.Content, &args.Excerpt, &args.Name, &args.Date} {
		*field = strings.ReplaceAll(*field, counterPlaceholder, num)
	}
	return args
}

// postArgs converts a Mock argument to PostArgs
func postArgs(v any) (cms.PostArgs, error) {
	switch a := v.(type) {
	case nil:
		return cms.PostArgs{}, nil
	case cms.PostArgs:
		return a, nil
	case *cms.PostArgs:
		if a == nil {
			return cms.PostArgs{}, nil
		}
		return *a, nil
	}
	return cms.PostArgs{}, fmt.Errorf("%w: expected cms.PostArgs, got %T", mocker.ErrDispatch, v)
}

// truthy reports whether v is a non-empty value
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "0"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	}
	return true
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
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
