package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/icsr-workflow/internal/application/validation"
	"github.com/garyjia/icsr-workflow/internal/domain/entity"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AcknowledgeBody lists the warning results to acknowledge
type AcknowledgeBody struct {
	ResultIDs []int64 `json:"result_ids" binding:"required"`
	Notes     string  `json:"notes,omitempty"`
}

// ToggleBody activates or deactivates a rule
type ToggleBody struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// TestRuleBody dry-runs a candidate rule against sample case data
type TestRuleBody struct {
	Rule       validation.RuleRequest `json:"rule"`
	SampleData json.RawMessage        `json:"sample_data"`
}

// RunValidation handles POST /api/v1/cases/:id/validation
func (h *Handlers) RunValidation(c *gin.Context) {
	summary, err := h.services.Validation.RunValidation(c.Request.Context(), c.Param("id"), callerFrom(c).UserID)
	if err != nil {
		h.failWith(c, "run validation", err)
		return
	}
	respondOK(c, summary)
}

// GetValidationResults handles GET /api/v1/cases/:id/validation
func (h *Handlers) GetValidationResults(c *gin.Context) {
	summary, err := h.services.Validation.GetValidationResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failWith(c, "get validation results", err)
		return
	}
	respondOK(c, summary)
}

// AcknowledgeWarnings handles POST /api/v1/cases/:id/validation/acknowledge
func (h *Handlers) AcknowledgeWarnings(c *gin.Context) {
	var body AcknowledgeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	summary, err := h.services.Validation.AcknowledgeWarnings(c.Request.Context(), c.Param("id"),
		body.ResultIDs, callerFrom(c).UserID, body.Notes)
	if err != nil {
		h.failWith(c, "acknowledge warnings", err)
		return
	}
	respondOK(c, summary)
}

// ExportValidationReport handles GET /api/v1/cases/:id/validation/report
func (h *Handlers) ExportValidationReport(c *gin.Context) {
	if h.services.Reports == nil {
		respondError(c, http.StatusNotImplemented, "report export is not configured")
		return
	}

	caseID := c.Param("id")
	data, err := h.services.Reports.ExportValidationReport(c.Request.Context(), caseID)
	if err != nil {
		h.failWith(c, "export validation report", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="validation_%s.xlsx"`, caseID))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// GetRules handles GET /api/v1/rules?rule_type=&severity=&is_active=&is_system=&search=
func (h *Handlers) GetRules(c *gin.Context) {
	filter := entity.RuleFilter{
		RuleType: queryString(c, "rule_type"),
		Severity: queryString(c, "severity"),
		Search:   c.Query("search"),
	}

	var err error
	if filter.IsActive, err = queryBool(c, "is_active"); err != nil {
		respondError(c, http.StatusBadRequest, "invalid is_active")
		return
	}
	if filter.IsSystem, err = queryBool(c, "is_system"); err != nil {
		respondError(c, http.StatusBadRequest, "invalid is_system")
		return
	}

	rules, err := h.services.Rules.GetRules(c.Request.Context(), filter)
	if err != nil {
		h.failWith(c, "list rules", err)
		return
	}
	respondOK(c, rules)
}

// GetRule handles GET /api/v1/rules/:ruleId
func (h *Handlers) GetRule(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}

	rule, err := h.services.Rules.GetRule(c.Request.Context(), id)
	if err != nil {
		h.failWith(c, "get rule", err)
		return
	}
	respondOK(c, rule)
}

// CreateRule handles POST /api/v1/rules
func (h *Handlers) CreateRule(c *gin.Context) {
	var req validation.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	rule, err := h.services.Rules.CreateRule(c.Request.Context(), req, callerFrom(c).UserID)
	if err != nil {
		h.failWith(c, "create rule", err)
		return
	}
	respondCreated(c, rule)
}

// UpdateRule handles PUT /api/v1/rules/:ruleId
func (h *Handlers) UpdateRule(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}

	var req validation.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	rule, err := h.services.Rules.UpdateRule(c.Request.Context(), id, req, callerFrom(c).UserID)
	if err != nil {
		h.failWith(c, "update rule", err)
		return
	}
	respondOK(c, rule)
}

// ToggleRule handles PATCH /api/v1/rules/:ruleId/active
func (h *Handlers) ToggleRule(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}

	var body ToggleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	rule, err := h.services.Rules.ToggleRule(c.Request.Context(), id, *body.IsActive, callerFrom(c).UserID)
	if err != nil {
		h.failWith(c, "toggle rule", err)
		return
	}
	respondOK(c, rule)
}

// DeleteRule handles DELETE /api/v1/rules/:ruleId
func (h *Handlers) DeleteRule(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}

	if err := h.services.Rules.DeleteRule(c.Request.Context(), id, callerFrom(c).UserID); err != nil {
		h.failWith(c, "delete rule", err)
		return
	}
	respondOK(c, gin.H{"id": id, "deleted": true})
}

// TestRule handles POST /api/v1/rules/test
func (h *Handlers) TestRule(c *gin.Context) {
	var body TestRuleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	respondOK(c, h.services.Validation.TestRule(c.Request.Context(), body.Rule, body.SampleData))
}

// SeedSystemRules handles POST /api/v1/rules/seed
func (h *Handlers) SeedSystemRules(c *gin.Context) {
	inserted, err := h.services.Rules.SeedSystemRules(c.Request.Context())
	if err != nil {
		h.failWith(c, "seed system rules", err)
		return
	}
	respondOK(c, gin.H{"inserted": inserted})
}

func ruleID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("ruleId"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "invalid rule id")
		return 0, false
	}
	return id, true
}
