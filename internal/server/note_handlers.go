package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/collab/internal/logging"
	"github.com/MarcoPoloResearchLab/collab/internal/notes"
	"github.com/gin-gonic/gin"
)

type createNotePayload struct {
	Content    string   `json:"content"`
	Type       string   `json:"type"`
	Priority   string   `json:"priority"`
	IsPrivate  bool     `json:"isPrivate"`
	Tags       []string `json:"tags"`
	AssignedTo string   `json:"assignedTo"`
}

type updateNotePayload struct {
	Content *string   `json:"content"`
	Tags    *[]string `json:"tags"`
}

type reactionPayload struct {
	Type string `json:"type"`
}

type replyPayload struct {
	Content string `json:"content"`
}

type noteStatusPayload struct {
	Status string `json:"status"`
}

type assignPayload struct {
	AssigneeID string `json:"assigneeId"`
}

// mutationResponse reports whether a board operation applied. Rejected
// operations leave the board untouched and carry no note.
type mutationResponse struct {
	Applied bool        `json:"applied"`
	Note    *notes.Note `json:"note,omitempty"`
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	board, ok := h.viewBoard(c)
	if !ok {
		return
	}
	mode, err := notes.ParseFilterMode(c.Query("filter"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_filter")
		return
	}
	showResolved := false
	if raw := strings.TrimSpace(c.Query("show_resolved")); raw != "" {
		showResolved, err = strconv.ParseBool(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_show_resolved")
			return
		}
	}
	visible := board.List(c.GetString(logging.MemberIDKey), notes.Filter{Mode: mode, ShowResolved: showResolved})
	c.JSON(http.StatusOK, gin.H{"customerEmail": board.CustomerEmail(), "notes": visible})
}

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	board, ok := h.resolveBoard(c)
	if !ok {
		return
	}
	var payload createNotePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request")
		return
	}
	noteType, err := notes.ParseNoteType(payload.Type)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_note_type")
		return
	}
	priority, err := notes.ParsePriority(payload.Priority)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_priority")
		return
	}
	note, applied := board.AddNote(c.Request.Context(), c.GetString(logging.MemberIDKey), notes.Draft{
		Content:    payload.Content,
		Type:       noteType,
		Priority:   priority,
		IsPrivate:  payload.IsPrivate,
		Tags:       payload.Tags,
		AssignedTo: payload.AssignedTo,
	})
	if !applied {
		c.JSON(http.StatusOK, mutationResponse{Applied: false})
		return
	}
	c.JSON(http.StatusCreated, mutationResponse{Applied: true, Note: &note})
}

func (h *httpHandler) handleGetNote(c *gin.Context) {
	board, ok := h.viewBoard(c)
	if !ok {
		return
	}
	note, ok := h.resolveNote(c, board)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *httpHandler) handleUpdateNote(c *gin.Context) {
	board, ok := h.resolveBoard(c)
	if !ok {
		return
	}
	note, ok := h.resolveNote(c, board)
	if !ok {
		return
	}
	var payload updateNotePayload
	if err := c.ShouldBindJSON(&payload); err != nil || (payload.Content == nil && payload.Tags == nil) {
		respondError(c, http.StatusBadRequest, "invalid_request")
		return
	}

	ctx := c.Request.Context()
	actorID := c.GetString(logging.MemberIDKey)
	applied := false
	if payload.Content != nil {
		if updated, ok := board.EditNote(ctx, actorID, note.ID, *payload.Content); ok {
			note, applied = updated, true
		}
	}
	if payload.Tags != nil {
		if updated, ok := board.SetTags(ctx, actorID, note.ID, *payload.Tags); ok {
			note, applied = updated, true
		}
	}
	respondMutation(c, note, applied)
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	h.mutateNote(c, func(c *gin.Context, board *notes.Board, noteID string) (notes.Note, bool) {
		return board.DeleteNote(c.Request.Context(), c.GetString(logging.MemberIDKey), noteID)
	})
}

func (h *httpHandler) handleToggleReaction(c *gin.Context) {
	h.mutateNote(c, func(c *gin.Context, board *notes.Board, noteID string) (notes.Note, bool) {
		var payload reactionPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			respondError(c, http.StatusBadRequest, "invalid_request")
			return notes.Note{}, false
		}
		reaction, err := notes.ParseReaction(payload.Type)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_reaction")
			return notes.Note{}, false
		}
		return board.ToggleReaction(c.Request.Context(), c.GetString(logging.MemberIDKey), noteID, reaction)
	})
}

func (h *httpHandler) handleAddReply(c *gin.Context) {
	h.mutateNote(c, func(c *gin.Context, board *notes.Board, noteID string) (notes.Note, bool) {
		var payload replyPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			respondError(c, http.StatusBadRequest, "invalid_request")
			return notes.Note{}, false
		}
		return board.AddReply(c.Request.Context(), c.GetString(logging.MemberIDKey), noteID, payload.Content)
	})
}

func (h *httpHandler) handleTogglePin(c *gin.Context) {
	h.mutateNote(c, func(c *gin.Context, board *notes.Board, noteID string) (notes.Note, bool) {
		return board.TogglePin(c.Request.Context(), c.GetString(logging.MemberIDKey), noteID)
	})
}

func (h *httpHandler) handleSetNoteStatus(c *gin.Context) {
	h.mutateNote(c, func(c *gin.Context, board *notes.Board, noteID string) (notes.Note, bool) {
		var payload noteStatusPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			respondError(c, http.StatusBadRequest, "invalid_request")
			return notes.Note{}, false
		}
		status, err := notes.ParseStatus(payload.Status)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_status")
			return notes.Note{}, false
		}
		return board.SetStatus(c.Request.Context(), c.GetString(logging.MemberIDKey), noteID, status)
	})
}

func (h *httpHandler) handleAssignNote(c *gin.Context) {
	h.mutateNote(c, func(c *gin.Context, board *notes.Board, noteID string) (notes.Note, bool) {
		var payload assignPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			respondError(c, http.StatusBadRequest, "invalid_request")
			return notes.Note{}, false
		}
		return board.Assign(c.Request.Context(), c.GetString(logging.MemberIDKey), noteID, payload.AssigneeID)
	})
}

// mutateNote resolves the board and note, runs the operation and writes the
// mutation response unless the operation already responded.
func (h *httpHandler) mutateNote(c *gin.Context, operation func(c *gin.Context, board *notes.Board, noteID string) (notes.Note, bool)) {
	board, ok := h.resolveBoard(c)
	if !ok {
		return
	}
	note, ok := h.resolveNote(c, board)
	if !ok {
		return
	}
	updated, applied := operation(c, board, note.ID)
	if c.Writer.Written() {
		return
	}
	respondMutation(c, updated, applied)
}

func respondMutation(c *gin.Context, note notes.Note, applied bool) {
	if !applied {
		c.JSON(http.StatusOK, mutationResponse{Applied: false})
		return
	}
	c.JSON(http.StatusOK, mutationResponse{Applied: true, Note: &note})
}

func (h *httpHandler) resolveBoard(c *gin.Context) (*notes.Board, bool) {
	board, err := h.boards.Board(c.Request.Context(), c.Param("email"))
	if err != nil {
		h.respondBoardError(c, err)
		return nil, false
	}
	return board, true
}

// viewBoard serves read paths without registering a board for customers that
// have no notes.
func (h *httpHandler) viewBoard(c *gin.Context) (*notes.Board, bool) {
	board, err := h.boards.View(c.Request.Context(), c.Param("email"))
	if err != nil {
		h.respondBoardError(c, err)
		return nil, false
	}
	return board, true
}

// resolveNote answers 404 for unknown notes and for private notes of other
// authors.
func (h *httpHandler) resolveNote(c *gin.Context, board *notes.Board) (notes.Note, bool) {
	noteID, err := notes.NewNoteID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_note_id")
		return notes.Note{}, false
	}
	note, ok := board.Note(noteID)
	if !ok || (note.IsPrivate && note.Author.ID != c.GetString(logging.MemberIDKey)) {
		respondError(c, http.StatusNotFound, "note_not_found")
		return notes.Note{}, false
	}
	return note, true
}
