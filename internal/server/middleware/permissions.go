package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
)

// Permission is an action on templates, carried in the "permissions" claim
// of a token.
type Permission string

const (
	PermTemplateView    Permission = "template.view"
	PermTemplateLearn   Permission = "template.learn"
	PermTemplateHarvest Permission = "template.harvest"
)

const roleAdmin = "admin"

var templatePermissions = []Permission{PermTemplateView, PermTemplateLearn, PermTemplateHarvest}

// implied lists the permissions granted along with another one.
var implied = map[Permission][]Permission{
	PermTemplateLearn: {PermTemplateView},
}

// ParsePermissions reads a permissions claim. Entries outside the template
// set are dropped, and implied permissions are added.
func ParsePermissions(claim []any) []Permission {
	var out []Permission
	add := func(p Permission) {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	for _, raw := range claim {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		p := Permission(strings.TrimSpace(s))
		if !slices.Contains(templatePermissions, p) {
			continue
		}
		add(p)
		for _, q := range implied[p] {
			add(q)
		}
	}
	return out
}

// Can reports whether u may perform p. Admins may perform every template
// action.
func (u *AppUser) Can(p Permission) bool {
	if u == nil {
		return false
	}
	return u.Role == roleAdmin || slices.Contains(u.Permissions, p)
}

// RequirePermission passes users holding at least one of permissions and
// rejects the others with 403.
func RequirePermission(permissions ...Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := c.(*AppContext).User
			if user == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}
			if !slices.ContainsFunc(permissions, user.Can) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden: missing permission " + joinPermissions(permissions)})
			}
			return next(c)
		}
	}
}

func joinPermissions(ps []Permission) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return strings.Join(names, " or ")
}
