package gate

import "strings"

// Origin classifies the deployment environment a process runs in. It is
// resolved once at startup and passed explicitly; call sites never
// re-derive it.
type Origin string

const (
	OriginProduction Origin = "production"
	OriginTest       Origin = "test"
	OriginOther      Origin = "other"
)

// ResolveOrigin maps a configured environment name onto an Origin. Any
// unrecognized or development/local environment collapses to OriginOther,
// which the gatekeeper refuses to let dispatch externally.
func ResolveOrigin(environment string) Origin {
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "production", "prod":
		return OriginProduction
	case "test", "staging":
		return OriginTest
	default:
		return OriginOther
	}
}

// Gatekeeper decides whether an already throttle-allowed signal may leave
// the process. It is orthogonal to the throttle: the throttle limits
// frequency, the gatekeeper limits blast radius by environment.
type Gatekeeper struct {
	origin Origin
}

// New constructs a Gatekeeper for a resolved origin.
func New(origin Origin) *Gatekeeper {
	return &Gatekeeper{origin: origin}
}

// Origin reports the origin this gatekeeper was resolved with.
func (g *Gatekeeper) Origin() Origin { return g.origin }

// Permit reports whether external dispatch is allowed. Production and
// test origins dispatch for real; everything else is recorded but never
// reaches the external channel.
func (g *Gatekeeper) Permit() bool {
	return g.origin == OriginProduction || g.origin == OriginTest
}

// Tag returns the visible marker prepended to outgoing messages so a test
// send can never be mistaken for a live one. Production sends carry no
// marker.
func (g *Gatekeeper) Tag() string {
	switch g.origin {
	case OriginTest:
		return "[TEST]"
	case OriginOther:
		return "[BLOCKED]"
	default:
		return ""
	}
}
