package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/icsr-workflow/internal/application/service"
	"github.com/garyjia/icsr-workflow/internal/application/validation"
	"github.com/garyjia/icsr-workflow/internal/application/workflow"
	domainwf "github.com/garyjia/icsr-workflow/internal/domain/workflow"
)

// Caller headers. The desktop shell authenticates the user and forwards these.
const (
	HeaderUserID      = "X-User-ID"
	HeaderPermissions = "X-User-Permissions"
	HeaderSessionID   = "X-Session-ID"
)

const callerKey = "caller"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	health   HealthFunc
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, health HealthFunc, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		health:   health,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string          `json:"status"`
	Timestamp  string          `json:"timestamp"`
	Components map[string]bool `json:"components,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	code := http.StatusOK
	if h.health != nil {
		response.Components = h.health()
		for _, healthy := range response.Components {
			if !healthy {
				response.Status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
	}

	c.JSON(code, Response{
		Success: code == http.StatusOK,
		Data:    response,
	})
}

// requireCaller rejects requests without an acting user and stores the caller for handlers
func requireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing " + HeaderUserID + " header",
			})
			return
		}

		c.Set(callerKey, workflow.Caller{
			UserID:      userID,
			Permissions: domainwf.ParsePermissions(c.GetHeader(HeaderPermissions)),
			SessionID:   c.GetHeader(HeaderSessionID),
		})
		c.Next()
	}
}

func callerFrom(c *gin.Context) workflow.Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(workflow.Caller); ok {
			return caller
		}
	}
	return workflow.Caller{}
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

func respondError(c *gin.Context, code int, msg string) {
	c.JSON(code, Response{Success: false, Error: msg})
}

// failWith maps application sentinel errors to status codes
func (h *Handlers) failWith(c *gin.Context, op string, err error) {
	code := statusForError(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("Request failed", "operation", op, "error", err)
		respondError(c, code, "failed to "+op)
		return
	}
	respondError(c, code, err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrCaseNotFound),
		errors.Is(err, service.ErrNoteNotFound),
		errors.Is(err, validation.ErrCaseNotFound),
		errors.Is(err, validation.ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, validation.ErrInvalidRule):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNoteAlreadyResolved),
		errors.Is(err, validation.ErrDuplicateRuleCode):
		return http.StatusConflict
	case errors.Is(err, service.ErrNoteNotVisible),
		errors.Is(err, validation.ErrSystemRuleImmutable):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// transitionStatus maps a transition failure reason to a status code
func transitionStatus(reason string) int {
	switch {
	case reason == domainwf.ReasonCaseNotFound:
		return http.StatusNotFound
	case reason == domainwf.ReasonPermissionDenied:
		return http.StatusForbidden
	case reason == domainwf.ReasonVersionConflict:
		return http.StatusConflict
	case reason == domainwf.ReasonInvalidSignature:
		return http.StatusUnauthorized
	case reason == domainwf.ReasonCommentRequired,
		reason == domainwf.ReasonAssignmentRequired,
		reason == domainwf.ReasonSignatureRequired,
		strings.HasPrefix(reason, "Invalid transition"):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func queryBool(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func queryString(c *gin.Context, name string) *string {
	if v := c.Query(name); v != "" {
		return &v
	}
	return nil
}
