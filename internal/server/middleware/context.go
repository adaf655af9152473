package middleware

import (
	"context"
	"io"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/stencil/internal/queue"
	"github.com/OFFIS-RIT/stencil/pkg/document"
	"github.com/OFFIS-RIT/stencil/pkg/pipeline"
)

type AppUser struct {
	UserID      string
	Role        string
	Permissions []Permission
}

// FileStore is the object storage used for uploads and snapshot links.
type FileStore interface {
	PutFile(ctx context.Context, key string, file io.Reader) error
	GenerateDownloadLink(ctx context.Context, key string) (string, error)
}

type App struct {
	Pipeline     *pipeline.Client
	Queue        queue.Publisher
	Files        FileStore
	Keyfunc      jwt.Keyfunc
	Filter       document.Filter
	MasterAPIKey string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{c, app, nil})
		}
	}
}
