package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/spinwisely/kbase/internal/index"
	"github.com/spinwisely/kbase/internal/ingest"
	"github.com/spinwisely/kbase/internal/store"
)

// Ingestor is the slice of the ingestion pipeline the document routes need.
type Ingestor interface {
	Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error)
	Delete(ctx context.Context, documentID string) index.DeleteResult
}

type DocumentsHandler struct {
	Ingestor    Ingestor
	Store       *store.Store
	MaxUploadMB int
}

func (h *DocumentsHandler) Register(g *echo.Group) {
	g.POST("/upload", h.upload)
	g.GET("", h.list)
	g.DELETE("/:id", h.delete)
}

func (h *DocumentsHandler) upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No file provided")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No file provided")
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read upload")
	}

	res, err := h.Ingestor.Ingest(c.Request().Context(), ingest.Request{
		Filename:   fh.Filename,
		MimeType:   fh.Header.Get("Content-Type"),
		UploadedBy: c.FormValue("uploadedBy"),
		Data:       data,
	})
	if err != nil {
		var se *ingest.StageError
		if errors.As(err, &se) && se.Client {
			return echo.NewHTTPError(http.StatusBadRequest, se.Cause.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":       res.DocumentID,
		"filename": res.Filename,
		"chunks":   res.ChunkCount,
		"message":  res.Message,
	})
}

func (h *DocumentsHandler) list(c echo.Context) error {
	docs, err := h.Store.ListDocuments(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if docs == nil {
		docs = []store.Document{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"documents": docs})
}

// delete removes vectors first, then the metadata row. Vector deletion is
// best-effort; the route succeeds as long as the sequence ran.
func (h *DocumentsHandler) delete(c echo.Context) error {
	id := c.Param("id")
	if _, found, err := h.Store.GetDocument(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	} else if !found {
		return echo.NewHTTPError(http.StatusNotFound, "Document not found")
	}

	res := h.Ingestor.Delete(c.Request().Context(), id)
	msg := "Document deleted"
	if res.Status == index.DeleteUnsupported {
		msg = "Document deleted; vectors will be overwritten on re-upload"
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": msg,
		"vectors": res.Status.String(),
	})
}
