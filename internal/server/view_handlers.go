package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/collab/internal/activity"
	"github.com/MarcoPoloResearchLab/collab/internal/dashboard"
	"github.com/MarcoPoloResearchLab/collab/internal/logging"
	"github.com/MarcoPoloResearchLab/collab/internal/notes"
	"github.com/MarcoPoloResearchLab/collab/internal/presence"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) handleActivityFeed(c *gin.Context) {
	category, err := activity.ParseCategory(c.Query("category"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_category")
		return
	}
	window, err := activity.ParseWindow(c.Query("window"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_window")
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	filter := activity.Filter{
		CustomerEmail: strings.ToLower(strings.TrimSpace(c.Query("customer_email"))),
		Category:      category,
		Window:        window,
	}
	entries := dashboard.Feed(h.store.Activities(), filter, h.now(), limit)
	c.JSON(http.StatusOK, gin.H{"activities": entries})
}

func (h *httpHandler) handlePresence(c *gin.Context) {
	opts := presence.Options{}
	if raw := strings.TrimSpace(c.Query("compact")); raw != "" {
		compact, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_compact")
			return
		}
		opts.Compact = compact
	}
	if raw := strings.TrimSpace(c.Query("max_visible")); raw != "" {
		maxVisible, err := strconv.Atoi(raw)
		if err != nil || maxVisible < 1 {
			respondError(c, http.StatusBadRequest, "invalid_max_visible")
			return
		}
		opts.MaxVisible = maxVisible
	}
	c.JSON(http.StatusOK, presence.Project(h.store.Members(), opts))
}

func (h *httpHandler) handleDashboard(c *gin.Context) {
	tab, err := dashboard.ParseTab(c.Query("tab"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_tab")
		return
	}
	opts := dashboard.Options{
		Tab:      tab,
		ViewerID: c.GetString(logging.MemberIDKey),
		Now:      h.now(),
	}
	if raw := strings.TrimSpace(c.Query("customer_email")); raw != "" {
		board, err := h.boards.View(c.Request.Context(), raw)
		if err != nil {
			h.respondBoardError(c, err)
			return
		}
		opts.CustomerEmail = board.CustomerEmail()
		opts.Notes = board.Notes()
	}
	c.JSON(http.StatusOK, dashboard.Build(h.store, opts))
}

func (h *httpHandler) respondBoardError(c *gin.Context, err error) {
	if errors.Is(err, notes.ErrInvalidCustomerEmail) {
		respondError(c, http.StatusBadRequest, "invalid_customer_email")
		return
	}
	h.logger.Error("note board unavailable", zap.Error(err))
	respondError(c, http.StatusInternalServerError, "board_unavailable")
}
