// Package navguard decides whether a route transition is permitted given
// the current authentication state, and clears transient coordinator state
// when the user navigates away from context-specific views.
package navguard

import "net/url"

// Route names used in guard decisions.
const (
	RouteLogin  = "login"
	RouteHome   = "home-redirect"
	RouteDay    = "day-id"
	RouteNote   = "note-id"
	RouteSearch = "search"
)

// Route describes a navigation target.
type Route struct {
	Name   string
	Path   string
	Params map[string]string
	Query  url.Values

	// RequiresAuth is true when any matched route segment carries the
	// auth flag.
	RequiresAuth bool
}

// Decision is the guard's verdict on a transition.
type Decision struct {
	Allow bool

	// Redirect target, set when Allow is false.
	RedirectName string
	Query        url.Values
}

// TokenReader is the slice of the token store the guard needs.
type TokenReader interface {
	HasToken() bool
}

// Coordinator is the slice of the sidebar coordinator the guard clears.
type Coordinator interface {
	ClearDate()
	ClearSearch()
}

// Guard enforces the navigation contract.
type Guard struct {
	tokens TokenReader
	coord  Coordinator
}

// New creates a navigation guard.
func New(tokens TokenReader, coord Coordinator) *Guard {
	return &Guard{tokens: tokens, coord: coord}
}

// Evaluate gates a transition to the given route. Unauthenticated access
// to an auth route redirects to login, carrying the attempted path in the
// "from" query parameter; authenticated access to an auth-free route
// redirects to the landing view. Allowed transitions clear the date cursor
// unless entering the day view, and the search inputs unless entering the
// search view.
func (g *Guard) Evaluate(to Route) Decision {
	hasToken := g.tokens.HasToken()

	if to.RequiresAuth && !hasToken {
		return Decision{
			RedirectName: RouteLogin,
			Query:        url.Values{"from": {to.Path}},
		}
	}
	if !to.RequiresAuth && hasToken {
		return Decision{RedirectName: RouteHome}
	}

	if g.coord != nil {
		if to.Name != RouteDay {
			g.coord.ClearDate()
		}
		if to.Name != RouteSearch {
			g.coord.ClearSearch()
		}
	}
	return Decision{Allow: true}
}
