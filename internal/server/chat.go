package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/spinwisely/kbase/internal/answer"
)

// Answerer resolves one chat question into a reply.
type Answerer interface {
	Answer(ctx context.Context, question, userID string) answer.Reply
}

type ChatHandler struct {
	Answerer Answerer
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("", h.chat)
}

// chat always answers 200 once the message validates: retrieval and
// generation failures arrive as canned replies with an error tag, not as
// error status codes.
func (h *ChatHandler) chat(c echo.Context) error {
	var req struct {
		Message string `json:"message"`
		UserID  string `json:"userId"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Message is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Message is required")
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}

	reply := h.Answerer.Answer(c.Request().Context(), req.Message, req.UserID)
	return c.JSON(http.StatusOK, reply)
}
