package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/spinwisely/kbase/internal/index"
	"github.com/spinwisely/kbase/internal/store"
)

type AdminHandler struct {
	Store *store.Store
	Index index.Index
}

func (h *AdminHandler) Register(g *echo.Group) {
	g.GET("/stats", h.stats)
	g.DELETE("/cleanup", h.cleanup)
}

func (h *AdminHandler) stats(c echo.Context) error {
	stats, err := h.Store.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   stats,
	})
}

// cleanup drops document rows that never got any chunks indexed.
func (h *AdminHandler) cleanup(c echo.Context) error {
	deleted, err := h.Store.DeleteOrphanDocuments(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"deleted": deleted,
		"message": fmt.Sprintf("Cleaned up %d orphaned documents", deleted),
	})
}

func (h *AdminHandler) indexStats(c echo.Context) error {
	stats, err := h.Index.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}
