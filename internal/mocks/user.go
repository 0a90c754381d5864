package mocks

import (
	"github.com/comfortablynumb/pmp-unit-test/internal/cms"
	"github.com/comfortablynumb/pmp-unit-test/internal/mocker"
	"github.com/comfortablynumb/pmp-unit-test/internal/registry"
)

const ServiceUser = "user"

// User roles created by the user mocker
const (
	RoleAdministrator = "administrator"
	RoleSubscriber    = "subscriber"
)

// User mocks the logged in session: anonymous, a subscriber on the front
// end, or an administrator on the dashboard.
type User struct {
	generator
	userID  int64
	adminID int64
}

// NewUser creates a user mocker
func NewUser(reg *registry.Registry, env *cms.Env) *User {
	return &User{generator: generator{reg: reg, env: env}}
}

// ProvideService implements mocker.Mocker
func (u *User) ProvideService() string {
	return ServiceUser
}

// Mock implements mocker.Caller as Mock(user, screen). user is true or
// "user" for a subscriber, "admin" or "administrator" for an administrator,
// and false or nil for the anonymous user. An administrator lands on the
// dashboard unless a screen is given; true with an admin screen also logs
// in the administrator.
func (u *User) Mock(args ...any) (any, error) {
	var user any = true
	if len(args) > 0 {
		user = args[0]
	}
	screen := cms.ScreenFront
	screenGiven := len(args) > 1
	if screenGiven {
		screen = mocker.Arg(args, 1, cms.ScreenFront)
	}

	switch {
	case isAdminName(user) || (user == true && isAdminName(screen)):
		id, err := u.ensure(u.adminID, RoleAdministrator)
		if err != nil {
			return nil, err
		}
		u.adminID = id
		if !screenGiven || isAdminName(screen) {
			screen = cms.ScreenDashboard
		}
		u.env.SetCurrentScreen(screen)
		u.env.SetCurrentUser(id)

	case user == true || user == "user":
		id, err := u.ensure(u.userID, RoleSubscriber)
		if err != nil {
			return nil, err
		}
		u.userID = id
		u.env.SetCurrentScreen(cms.ScreenFront)
		u.env.SetCurrentUser(id)

	default:
		u.env.SetCurrentScreen(cms.ScreenFront)
		u.env.SetCurrentUser(0)
	}
	return u, nil
}

// ensure returns id while that user still exists, or creates a user with role
func (u *User) ensure(id int64, role string) (int64, error) {
	if id != 0 && u.env.Store.GetUser(id) != nil {
		return id, nil
	}
	f, err := u.fixtures()
	if err != nil {
		return 0, err
	}
	return f.CreateUser(role)
}

func isAdminName(v any) bool {
	return v == "admin" || v == RoleAdministrator
}

// Get returns the current user
func (u *User) Get() *cms.User {
	return u.env.CurrentUser()
}

// Reset logs out
func (u *User) Reset() {
	u.env.SetCurrentScreen(cms.ScreenFront)
	u.env.SetCurrentUser(0)
}

// Dispatch implements mocker.Dispatcher
func (u *User) Dispatch(method string, args ...any) (any, error) {
	if method == "get" {
		return u.Get(), nil
	}
	return nil, mocker.UnknownMethod(ServiceUser, method)
}
