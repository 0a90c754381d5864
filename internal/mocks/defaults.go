package mocks

import (
	"github.com/comfortablynumb/pmp-unit-test/internal/cms"
	"github.com/comfortablynumb/pmp-unit-test/internal/mocker"
	"github.com/comfortablynumb/pmp-unit-test/internal/registry"
)

// Constructors returns the built-in mockers acting on env: http, post,
// image, user, input, mail and wp.
func Constructors(env *cms.Env, opts ...HTTPOption) []registry.Constructor {
	return []registry.Constructor{
		func(r *registry.Registry) mocker.Mocker { return NewHTTP(env, opts...) },
		func(r *registry.Registry) mocker.Mocker { return NewPost(r, env) },
		func(r *registry.Registry) mocker.Mocker { return NewImage(r, env) },
		func(r *registry.Registry) mocker.Mocker { return NewUser(r, env) },
		func(r *registry.Registry) mocker.Mocker { return NewInput(env) },
		func(r *registry.Registry) mocker.Mocker { return NewMail(env) },
		func(r *registry.Registry) mocker.Mocker { return NewWP(r, env) },
	}
}

// RegisterDefaults registers the built-in mockers with reg
func RegisterDefaults(reg *registry.Registry, env *cms.Env, opts ...HTTPOption) error {
	return reg.RegisterAll(Constructors(env, opts...)...)
}
