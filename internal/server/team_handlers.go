package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/collab/internal/activity"
	"github.com/MarcoPoloResearchLab/collab/internal/team"
	"github.com/gin-gonic/gin"
)

type addActivityPayload struct {
	Type          string                 `json:"type"`
	CustomerEmail string                 `json:"customerEmail"`
	Content       string                 `json:"content"`
	Metadata      map[string]interface{} `json:"metadata"`
}

type updateStatusPayload struct {
	Status string `json:"status"`
}

type updateStatusResponse struct {
	Applied bool        `json:"applied"`
	Member  team.Member `json:"member"`
}

func (h *httpHandler) handleListMembers(c *gin.Context) {
	rawRole := c.Query("role")
	if strings.TrimSpace(rawRole) == "" {
		c.JSON(http.StatusOK, gin.H{"members": h.store.Members()})
		return
	}
	role, err := team.ParseRole(rawRole)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_role")
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": h.store.MembersByRole(role)})
}

func (h *httpHandler) handleOnlineMembers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"members": h.store.OnlineMembers()})
}

func (h *httpHandler) handleCurrentMember(c *gin.Context) {
	member, ok := h.session(c).CurrentMember()
	if !ok {
		respondError(c, http.StatusNotFound, "member_not_found")
		return
	}
	c.JSON(http.StatusOK, member)
}

func (h *httpHandler) handleUpdateStatus(c *gin.Context) {
	var payload updateStatusPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request")
		return
	}
	status, err := team.ParseStatus(payload.Status)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_status")
		return
	}
	session := h.session(c)
	applied := session.UpdateStatus(c.Request.Context(), status)
	member, ok := session.CurrentMember()
	if !ok {
		respondError(c, http.StatusNotFound, "member_not_found")
		return
	}
	c.JSON(http.StatusOK, updateStatusResponse{Applied: applied, Member: member})
}

func (h *httpHandler) handleListActivities(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	entries := h.store.Activities()
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"activities": entries})
}

func (h *httpHandler) handleAddActivity(c *gin.Context) {
	var payload addActivityPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request")
		return
	}
	activityType, err := activity.ParseType(payload.Type)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_activity_type")
		return
	}
	entry, ok := h.session(c).AddActivity(c.Request.Context(), activity.Draft{
		Type:          activityType,
		CustomerEmail: strings.ToLower(strings.TrimSpace(payload.CustomerEmail)),
		Content:       payload.Content,
		Metadata:      payload.Metadata,
	})
	if !ok {
		respondError(c, http.StatusNotFound, "member_not_found")
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// parseLimit reads the optional limit query parameter. Zero means unbounded.
func parseLimit(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		respondError(c, http.StatusBadRequest, "invalid_limit")
		return 0, false
	}
	return limit, true
}
