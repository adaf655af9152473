package routes

import (
	"net/http"

	"github.com/invopop/jsonschema"
	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/stencil/internal/server/middleware"
	"github.com/OFFIS-RIT/stencil/pkg/errors"
	"github.com/OFFIS-RIT/stencil/pkg/harvest"
	"github.com/OFFIS-RIT/stencil/pkg/loader"
	"github.com/OFFIS-RIT/stencil/pkg/logger"
)

// HarvestHandler extracts the content of an HTML document with a learned
// template.
func HarvestHandler(c echo.Context) error {
	type harvestBody struct {
		Name   string `param:"name" validate:"required,max=128"`
		HTML   string `json:"html" validate:"required"`
		Source string `json:"source" validate:"omitempty,url"`
		Title  string `json:"title"`
	}

	type harvestResponse struct {
		Message string             `json:"message"`
		Result  *harvest.Result    `json:"result,omitempty"`
		Schema  *jsonschema.Schema `json:"schema,omitempty"`
	}

	data := new(harvestBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, harvestResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, harvestResponse{Message: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	doc, err := loader.ParseDocument(loader.DocumentFile{FilePath: data.Source, Filter: app.Filter}, []byte(data.HTML))
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, harvestResponse{Message: "Document could not be parsed"})
	}
	doc.Title = data.Title

	res, schema, err := app.Pipeline.Harvest(c.Request().Context(), data.Name, doc)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return c.JSON(http.StatusNotFound, harvestResponse{Message: "Template not found"})
		}
		logger.Error("[Server] Harvest failed", "template", data.Name, "err", err)
		return c.JSON(http.StatusInternalServerError, harvestResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusOK, harvestResponse{
		Message: "OK",
		Result:  res,
		Schema:  schema,
	})
}
