package client

// Guard makes navigation decisions from the session phase. It encodes the
// hydration gate: no redirect ever fires while the session is still
// unconfirmed, so a briefly-offline client is not bounced away and back.
// After session loss, protected paths fall back to the safe public default
// while paths already on the public allow-list stay put, avoiding redirect
// loops on pages that merely render optional signed-in affordances.
type Guard struct {
	public   map[string]bool
	safePath string
}

// DefaultPublicPaths are reachable without a session.
var DefaultPublicPaths = []string{"/", "/login", "/stories", "/partners", "/documents", "/contact"}

// NewGuard builds a guard with the given public allow-list and fallback
// path. Nil and empty use the defaults.
func NewGuard(public []string, safePath string) *Guard {
	if public == nil {
		public = DefaultPublicPaths
	}
	if safePath == "" {
		safePath = "/"
	}
	allowed := make(map[string]bool, len(public))
	for _, p := range public {
		allowed[p] = true
	}
	return &Guard{public: allowed, safePath: safePath}
}

// Resolve returns the path the navigation should land on and whether that
// is a redirect away from the requested path.
func (g *Guard) Resolve(status Status, path string) (string, bool) {
	switch status {
	case StatusHydrating:
		// decision deferred until hydration settles
		return path, false
	case StatusAuthenticated:
		return path, false
	default:
		if g.public[path] {
			return path, false
		}
		return g.safePath, true
	}
}
