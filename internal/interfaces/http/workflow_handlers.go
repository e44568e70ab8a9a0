package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/icsr-workflow/internal/application/workflow"
	domainwf "github.com/garyjia/icsr-workflow/internal/domain/workflow"
)

// TransitionBody is the JSON body of a transition request. The case id comes from the path.
type TransitionBody struct {
	ToStatus  domainwf.Status          `json:"to_status" binding:"required"`
	Comment   string                   `json:"comment,omitempty"`
	AssignTo  string                   `json:"assign_to,omitempty"`
	DueDate   *time.Time               `json:"due_date,omitempty"`
	Priority  string                   `json:"priority,omitempty"`
	Signature *workflow.SignatureInput `json:"signature,omitempty"`
}

// GetAvailableActions handles GET /api/v1/workflow/actions?status=&is_assignee=&is_owner=
func (h *Handlers) GetAvailableActions(c *gin.Context) {
	status := domainwf.Status(c.Query("status"))
	if status == "" {
		respondError(c, http.StatusBadRequest, "status is required")
		return
	}

	isAssignee, err := queryBool(c, "is_assignee")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid is_assignee")
		return
	}
	isOwner, err := queryBool(c, "is_owner")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid is_owner")
		return
	}

	caller := callerFrom(c)
	actions := h.services.Workflow.GetAvailableActions(status, caller.Permissions,
		isAssignee != nil && *isAssignee, isOwner != nil && *isOwner)
	respondOK(c, actions)
}

// GetAvailableActionsForCase handles GET /api/v1/cases/:id/workflow/actions
func (h *Handlers) GetAvailableActionsForCase(c *gin.Context) {
	actions, err := h.services.Workflow.GetAvailableActionsForCase(c.Request.Context(), c.Param("id"), callerFrom(c))
	if err != nil {
		h.failWith(c, "get available actions", err)
		return
	}
	respondOK(c, actions)
}

// GetCaseWorkflowStatus handles GET /api/v1/cases/:id/workflow/status
func (h *Handlers) GetCaseWorkflowStatus(c *gin.Context) {
	status, err := h.services.Workflow.GetCaseWorkflowStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failWith(c, "get workflow status", err)
		return
	}
	if status == nil {
		respondError(c, http.StatusNotFound, domainwf.ReasonCaseNotFound)
		return
	}
	respondOK(c, gin.H{"case_id": c.Param("id"), "workflow_status": *status})
}

// GetCaseWorkflowDetails handles GET /api/v1/cases/:id/workflow
func (h *Handlers) GetCaseWorkflowDetails(c *gin.Context) {
	details, err := h.services.Workflow.GetCaseWorkflowDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failWith(c, "get workflow details", err)
		return
	}
	if details == nil {
		respondError(c, http.StatusNotFound, domainwf.ReasonCaseNotFound)
		return
	}
	respondOK(c, details)
}

// Transition handles POST /api/v1/cases/:id/workflow/transition
func (h *Handlers) Transition(c *gin.Context) {
	var body TransitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	req := workflow.TransitionRequest{
		CaseID:    c.Param("id"),
		ToStatus:  body.ToStatus,
		Comment:   body.Comment,
		AssignTo:  body.AssignTo,
		DueDate:   body.DueDate,
		Priority:  body.Priority,
		Signature: body.Signature,
	}

	result := h.services.Workflow.Transition(c.Request.Context(), req, callerFrom(c))
	if !result.Success {
		c.JSON(transitionStatus(result.Error), Response{Success: false, Data: result, Error: result.Error})
		return
	}
	respondOK(c, result)
}

// GetCaseHistory handles GET /api/v1/cases/:id/history
func (h *Handlers) GetCaseHistory(c *gin.Context) {
	history, err := h.services.Workflow.GetCaseHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failWith(c, "get case history", err)
		return
	}
	respondOK(c, history)
}
