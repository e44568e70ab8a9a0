package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/icsr-workflow/internal/application/service"
)

// CreateAssignment handles POST /api/v1/cases/:id/assignments
func (h *Handlers) CreateAssignment(c *gin.Context) {
	var req service.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	req.CaseID = c.Param("id")

	assignment, err := h.services.Assignments.CreateAssignment(c.Request.Context(), req, callerFrom(c).UserID)
	if err != nil {
		h.failWith(c, "create assignment", err)
		return
	}
	respondCreated(c, assignment)
}

// GetCurrentAssignment handles GET /api/v1/cases/:id/assignments/current
func (h *Handlers) GetCurrentAssignment(c *gin.Context) {
	assignment, err := h.services.Assignments.GetCurrentAssignment(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failWith(c, "get current assignment", err)
		return
	}
	respondOK(c, assignment)
}

// GetAssignmentHistory handles GET /api/v1/cases/:id/assignments
func (h *Handlers) GetAssignmentHistory(c *gin.Context) {
	history, err := h.services.Assignments.GetAssignmentHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failWith(c, "get assignment history", err)
		return
	}
	respondOK(c, history)
}

// GetMyCases handles GET /api/v1/me/cases
func (h *Handlers) GetMyCases(c *gin.Context) {
	cases, err := h.services.Assignments.GetMyCases(c.Request.Context(), callerFrom(c).UserID)
	if err != nil {
		h.failWith(c, "get my cases", err)
		return
	}
	respondOK(c, cases)
}

// AddComment handles POST /api/v1/cases/:id/comments
func (h *Handlers) AddComment(c *gin.Context) {
	var req service.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	req.CaseID = c.Param("id")

	comment, err := h.services.Comments.AddComment(c.Request.Context(), req, callerFrom(c).UserID)
	if err != nil {
		h.failWith(c, "add comment", err)
		return
	}
	respondCreated(c, comment)
}

// GetComments handles GET /api/v1/cases/:id/comments
func (h *Handlers) GetComments(c *gin.Context) {
	comments, err := h.services.Comments.GetComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failWith(c, "get comments", err)
		return
	}
	respondOK(c, comments)
}

// AddNote handles POST /api/v1/cases/:id/notes
func (h *Handlers) AddNote(c *gin.Context) {
	var req service.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	req.CaseID = c.Param("id")

	note, err := h.services.Notes.AddNote(c.Request.Context(), req, callerFrom(c).UserID)
	if err != nil {
		h.failWith(c, "add note", err)
		return
	}
	respondCreated(c, note)
}

// GetNotes handles GET /api/v1/cases/:id/notes
func (h *Handlers) GetNotes(c *gin.Context) {
	notes, err := h.services.Notes.GetNotes(c.Request.Context(), c.Param("id"), callerFrom(c).UserID)
	if err != nil {
		h.failWith(c, "get notes", err)
		return
	}
	respondOK(c, notes)
}

// ResolveNote handles POST /api/v1/notes/:noteId/resolve
func (h *Handlers) ResolveNote(c *gin.Context) {
	note, err := h.services.Notes.ResolveNote(c.Request.Context(), c.Param("noteId"), callerFrom(c).UserID)
	if err != nil {
		h.failWith(c, "resolve note", err)
		return
	}
	respondOK(c, note)
}

// ListNotifications handles GET /api/v1/notifications?unread_only=
func (h *Handlers) ListNotifications(c *gin.Context) {
	unreadOnly, err := queryBool(c, "unread_only")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid unread_only")
		return
	}

	notifications, err := h.services.Notifications.ListNotifications(c.Request.Context(),
		callerFrom(c).UserID, unreadOnly != nil && *unreadOnly)
	if err != nil {
		h.failWith(c, "list notifications", err)
		return
	}
	respondOK(c, notifications)
}

// MarkNotificationRead handles POST /api/v1/notifications/:notificationId/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	id := c.Param("notificationId")
	if err := h.services.Notifications.MarkRead(c.Request.Context(), id, callerFrom(c).UserID); err != nil {
		h.failWith(c, "mark notification read", err)
		return
	}
	respondOK(c, gin.H{"id": id, "is_read": true})
}
