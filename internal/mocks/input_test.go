package mocks

import (
	"testing"

	"github.com/comfortablynumb/pmp-unit-test/internal/cms"
	"github.com/comfortablynumb/pmp-unit-test/internal/mocker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputMock(t *testing.T) {
	env := cms.NewEnv()
	in := NewInput(env)
	env.SetSuperglobal(cms.MethodGet, map[string]string{"orig": "1"})

	_, err := in.Mock(map[string]map[string]string{
		"post": {"title": "hello"},
		"get":  {"page": "2"},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"title": "hello"}, env.Superglobal(cms.MethodPost))
	assert.Equal(t, map[string]string{"page": "2"}, env.Superglobal(cms.MethodGet))
	assert.Equal(t, cms.MethodPost, env.Server("REQUEST_METHOD"))

	_, err = in.Mock(map[string]any{"REQUEST": map[string]any{"n": 3}})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"n": "3"}, env.Superglobal(cms.MethodRequest))
	assert.Equal(t, cms.MethodRequest, env.Server("REQUEST_METHOD"))

	in.Reset()
	assert.Equal(t, map[string]string{"orig": "1"}, env.Superglobal(cms.MethodGet))
	assert.Empty(t, env.Superglobal(cms.MethodPost))
	assert.Empty(t, env.Superglobal(cms.MethodRequest))
	assert.Equal(t, cms.MethodGet, env.Server("REQUEST_METHOD"))
}

func TestInputMockIgnoresUnknownBuckets(t *testing.T) {
	env := cms.NewEnv()
	in := NewInput(env)

	_, err := in.Mock(map[string]map[string]string{"cookie": {"a": "b"}})
	require.NoError(t, err)
	assert.Equal(t, cms.MethodGet, env.Server("REQUEST_METHOD"))
}

func TestInputMockRejectsBadInput(t *testing.T) {
	in := NewInput(cms.NewEnv())

	_, err := in.Mock("GET")
	assert.ErrorIs(t, err, mocker.ErrDispatch)

	_, err = in.Mock(map[string]any{"get": "page=2"})
	assert.ErrorIs(t, err, mocker.ErrDispatch)
}
