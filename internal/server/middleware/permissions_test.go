package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestParsePermissions(t *testing.T) {
	tests := []struct {
		name  string
		claim []any
		want  []Permission
	}{
		{name: "empty", claim: nil, want: nil},
		{name: "known", claim: []any{"template.harvest"}, want: []Permission{PermTemplateHarvest}},
		{name: "learn implies view", claim: []any{"template.learn"}, want: []Permission{PermTemplateLearn, PermTemplateView}},
		{name: "unknown and non-string dropped", claim: []any{"graph.delete", 3, " template.view "}, want: []Permission{PermTemplateView}},
		{name: "duplicates", claim: []any{"template.view", "template.learn", "template.view"}, want: []Permission{PermTemplateView, PermTemplateLearn}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePermissions(tt.claim))
		})
	}
}

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name string
		user *AppUser
		want int
	}{
		{name: "anonymous", user: nil, want: http.StatusUnauthorized},
		{name: "missing", user: &AppUser{UserID: "u", Permissions: []Permission{PermTemplateView}}, want: http.StatusForbidden},
		{name: "held", user: &AppUser{UserID: "u", Permissions: []Permission{PermTemplateHarvest}}, want: http.StatusOK},
		{name: "admin", user: &AppUser{UserID: "u", Role: roleAdmin}, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := &AppContext{Context: e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec), User: tt.user}

			h := RequirePermission(PermTemplateHarvest)(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})
			assert.NoError(t, h(c))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
