package routes

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/OFFIS-RIT/stencil/internal/queue"
	"github.com/OFFIS-RIT/stencil/internal/server/middleware"
	"github.com/OFFIS-RIT/stencil/internal/storage"
	"github.com/OFFIS-RIT/stencil/pkg/logger"
)

// AddDocumentsHandler uploads documents from multipart/form-data and
// enqueues a learn job for them.
func AddDocumentsHandler(c echo.Context) error {
	type addDocumentsBody struct {
		Name      string `param:"name" validate:"required,max=128"`
		Interpret bool   `form:"interpret"`
	}

	type addDocumentsResponse struct {
		Message   string   `json:"message"`
		JobID     string   `json:"job_id,omitempty"`
		Documents []string `json:"documents,omitempty"`
	}

	data := new(addDocumentsBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, addDocumentsResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, addDocumentsResponse{Message: "Invalid request body"})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, addDocumentsResponse{Message: "Invalid request body"})
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		return c.JSON(http.StatusBadRequest, addDocumentsResponse{Message: "No files uploaded"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	jobID, err := gonanoid.New()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, addDocumentsResponse{Message: "Internal server error"})
	}

	job := queue.LearnJob{JobID: jobID, Template: data.Name, Interpret: data.Interpret}
	keys := make([]string, 0, len(uploads))
	for _, file := range uploads {
		fID, err := gonanoid.New()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, addDocumentsResponse{Message: "Internal server error"})
		}
		key := storage.DocumentKey(data.Name, fID, file.Filename)

		src, err := file.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, addDocumentsResponse{Message: "Invalid request body"})
		}
		err = app.Files.PutFile(ctx, key, src)
		src.Close()
		if err != nil {
			logger.Error("[Server] Failed to upload document", "template", data.Name, "key", key, "err", err)
			return c.JSON(http.StatusInternalServerError, addDocumentsResponse{Message: "Internal server error"})
		}

		keys = append(keys, key)
		job.Documents = append(job.Documents, queue.LearnDocument{Key: key, Source: file.Filename})
	}

	body, err := json.Marshal(job)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, addDocumentsResponse{Message: "Internal server error"})
	}
	if err := queue.PublishFIFO(app.Queue, queue.LearnQueue, body); err != nil {
		logger.Error("[Server] Failed to enqueue learn job", "template", data.Name, "job_id", jobID, "err", err)
		return c.JSON(http.StatusInternalServerError, addDocumentsResponse{Message: "Internal server error"})
	}

	logger.Info("[Server] Learn job enqueued", "template", data.Name, "job_id", jobID, "documents", len(keys))
	return c.JSON(http.StatusAccepted, addDocumentsResponse{
		Message:   "Documents queued for learning",
		JobID:     jobID,
		Documents: keys,
	})
}
