package auth

import "strings"

// Decision is the outcome of the route authorization policy: either the
// request proceeds, or the client is redirected with the attempted page
// carried along for the unauthorized screen.
type Decision struct {
	Allow      bool
	RedirectTo string
}

var allowed = Decision{Allow: true}

func redirect(location string) Decision {
	return Decision{RedirectTo: location}
}

var publicPaths = []string{
	"/",
	"/login",
	"/signup",
	"/unauthorized",
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
	"/v1/auth/login",
	"/v1/auth/otp",
	"/v1/auth/signup",
}

var publicPrefixes = []string{
	"/assets/",
}

type department struct {
	prefix string
	page   string
	role   Role
}

var departments = []department{
	{prefix: "/hr", page: "HR", role: RoleHR},
	{prefix: "/finance", page: "Finance", role: RoleFinance},
	{prefix: "/sales", page: "Sales", role: RoleSales},
}

// Decide evaluates the route policy for a path and the caller's claims
// (nil when unauthenticated). Precedence: public paths, authentication,
// admin-only paths, department paths, then the authenticated catch-all.
func Decide(path string, claims *Claims) Decision {
	if IsPublicPath(path) {
		return allowed
	}
	if claims == nil {
		return redirect("/login")
	}
	if matchesPrefix(path, "/admin") {
		if claims.Type == TypeAdmin {
			return allowed
		}
		return redirect("/unauthorized?page=Admin")
	}
	for _, d := range departments {
		if !matchesPrefix(path, d.prefix) {
			continue
		}
		if claims.Type == TypeAdmin || claims.Role == d.role {
			return allowed
		}
		return redirect("/unauthorized?page=" + d.page)
	}
	return allowed
}

// IsPublicPath reports whether the path is reachable without a session.
func IsPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func matchesPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
