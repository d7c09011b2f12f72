package api

import (
	"net/http"
	"strconv"

	"campaign-console/internal/database"

	"github.com/gin-gonic/gin"
)

// HistoryHandler exposes the dispatch log of the current session.
type HistoryHandler struct {
	History *database.History
}

func NewHistoryHandler(history *database.History) *HistoryHandler {
	return &HistoryHandler{History: history}
}

func (h *HistoryHandler) GetMessages(c *gin.Context) {
	messages, err := h.History.Messages(c.Query("run_id"), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *HistoryHandler) GetCalls(c *gin.Context) {
	calls, err := h.History.Calls(c.Query("run_id"), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, calls)
}

func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || n <= 0 {
		return 100
	}
	return n
}
