package routes

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/stencil/internal/server/middleware"
	"github.com/OFFIS-RIT/stencil/internal/storage"
	"github.com/OFFIS-RIT/stencil/pkg/errors"
	"github.com/OFFIS-RIT/stencil/pkg/graph"
	"github.com/OFFIS-RIT/stencil/pkg/logger"
)

// GetTemplateHandler returns the encoded basis network of a template.
func GetTemplateHandler(c echo.Context) error {
	type getTemplateResponse struct {
		Message      string             `json:"message"`
		Template     string             `json:"template,omitempty"`
		SubgraphHash string             `json:"subgraph_hash,omitempty"`
		Documents    int                `json:"documents,omitempty"`
		Nodes        int                `json:"nodes,omitempty"`
		UpdatedAt    *time.Time         `json:"updated_at,omitempty"`
		Network      *graph.EncodedNode `json:"network,omitempty"`
	}

	name := c.Param("name")
	app := c.(*middleware.AppContext).App

	t, err := app.Pipeline.Load(c.Request().Context(), name)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return c.JSON(http.StatusNotFound, getTemplateResponse{Message: "Template not found"})
		}
		logger.Error("[Server] Failed to load template", "template", name, "err", err)
		return c.JSON(http.StatusInternalServerError, getTemplateResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusOK, getTemplateResponse{
		Message:      "OK",
		Template:     name,
		SubgraphHash: t.Network.SubgraphHash.String(),
		Documents:    t.Network.Documents,
		Nodes:        len(t.Graph.IDs()),
		UpdatedAt:    &t.Network.UpdatedAt,
		Network:      t.Network.Root,
	})
}

// GetTemplateSnapshotHandler returns a presigned download link for the
// snapshot of the template's current network.
func GetTemplateSnapshotHandler(c echo.Context) error {
	type snapshotResponse struct {
		Message string `json:"message"`
		URL     string `json:"url,omitempty"`
	}

	cc := c.(*middleware.AppContext)
	name := c.Param("name")
	ctx := c.Request().Context()
	t, err := cc.App.Pipeline.Load(ctx, name)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return c.JSON(http.StatusNotFound, snapshotResponse{Message: "Template not found"})
		}
		return c.JSON(http.StatusInternalServerError, snapshotResponse{Message: "Internal server error"})
	}

	url, err := cc.App.Files.GenerateDownloadLink(ctx, storage.SnapshotKey(name, t.Network.SubgraphHash.String()))
	if err != nil {
		logger.Error("[Server] Failed to presign snapshot", "template", name, "err", err)
		return c.JSON(http.StatusInternalServerError, snapshotResponse{Message: "Internal server error"})
	}
	return c.JSON(http.StatusOK, snapshotResponse{Message: "OK", URL: url})
}
