package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/garyjia/icsr-workflow/internal/application/dispatcher"
	"github.com/garyjia/icsr-workflow/internal/application/port"
	"github.com/garyjia/icsr-workflow/internal/domain/entity"
	"github.com/garyjia/icsr-workflow/internal/domain/event"
	"github.com/garyjia/icsr-workflow/internal/domain/expression"
)

// Engine evaluates active rules against case snapshots and stores the outcome
type Engine interface {
	// RunValidation evaluates every active rule and replaces the case's stored results
	RunValidation(ctx context.Context, caseID, userID string) (*entity.ValidationSummary, error)

	// GetValidationResults summarizes the last stored run without re-evaluating
	GetValidationResults(ctx context.Context, caseID string) (*entity.ValidationSummary, error)

	// AcknowledgeWarnings marks warning results of the case acknowledged. Other severities are ignored.
	AcknowledgeWarnings(ctx context.Context, caseID string, resultIDs []int64, userID, notes string) (*entity.ValidationSummary, error)

	// TestRule dry-runs a candidate rule against sample case data without persisting anything
	TestRule(ctx context.Context, req RuleRequest, sample json.RawMessage) *entity.RuleTestResult
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// MetricsRecorder receives validation run outcomes
type MetricsRecorder interface {
	ObserveValidation(errors, warnings, infos int, duration time.Duration)
}

type engineImpl struct {
	cases      port.CaseStore
	rules      port.RuleRepository
	results    port.ResultRepository
	audit      port.AuditLog
	txManager  port.TransactionManager
	evaluator  *expression.Evaluator
	dispatcher dispatcher.Dispatcher
	logger     Logger
	metrics    MetricsRecorder
	now        func() time.Time
}

// EngineOption configures the validation engine
type EngineOption func(*engineImpl)

// WithDispatcher publishes a completion event after each run
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) { e.dispatcher = d }
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) { e.logger = l }
}

// WithMetrics sets the recorder for run outcomes
func WithMetrics(m MetricsRecorder) EngineOption {
	return func(e *engineImpl) { e.metrics = m }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) { e.now = now }
}

// NewEngine creates a new validation engine
func NewEngine(
	cases port.CaseStore,
	rules port.RuleRepository,
	results port.ResultRepository,
	audit port.AuditLog,
	txManager port.TransactionManager,
	evaluator *expression.Evaluator,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		cases:     cases,
		rules:     rules,
		results:   results,
		audit:     audit,
		txManager: txManager,
		evaluator: evaluator,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *engineImpl) RunValidation(ctx context.Context, caseID, userID string) (*entity.ValidationSummary, error) {
	started := e.now()

	c, err := e.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	if c == nil {
		return nil, ErrCaseNotFound
	}

	env, err := BuildContext(c.Data)
	if err != nil {
		return nil, fmt.Errorf("build validation context: %w", err)
	}

	active := true
	rules, err := e.rules.List(ctx, entity.RuleFilter{IsActive: &active})
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}

	validatedAt := e.now()
	results := make([]entity.ValidationResult, 0)
	for _, rule := range rules {
		result, _, err := e.evaluateRule(rule, env, caseID, validatedAt)
		if err != nil {
			e.logError("Validation rule failed to evaluate",
				"case_id", caseID,
				"rule_code", rule.RuleCode,
				"error", err)
			results = append(results, evaluationFailure(rule, caseID, err, validatedAt))
			continue
		}
		if result != nil {
			results = append(results, *result)
		}
	}

	summary := entity.NewValidationSummary(caseID, results)

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.results.ReplaceForCase(txCtx, caseID, results); err != nil {
			return fmt.Errorf("replace validation results: %w", err)
		}
		details, err := json.Marshal(map[string]interface{}{
			"error_count":   summary.ErrorCount,
			"warning_count": summary.WarningCount,
			"info_count":    summary.InfoCount,
			"can_submit":    summary.CanSubmit,
		})
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		return e.audit.Append(txCtx, &entity.AuditEvent{
			UserID:     userID,
			Action:     entity.AuditActionValidationRun,
			EntityType: entity.EntityTypeCase,
			EntityID:   caseID,
			Details:    details,
			CreatedAt:  validatedAt,
		})
	})
	if err != nil {
		e.logError("Failed to store validation results", "case_id", caseID, "error", err)
		return nil, err
	}

	// results now carry their stored IDs
	summary = entity.NewValidationSummary(caseID, results)

	if e.metrics != nil {
		e.metrics.ObserveValidation(summary.ErrorCount, summary.WarningCount, summary.InfoCount, e.now().Sub(started))
	}
	e.logInfo("Case validated",
		"case_id", caseID,
		"rules", len(rules),
		"errors", summary.ErrorCount,
		"warnings", summary.WarningCount,
		"infos", summary.InfoCount)

	if e.dispatcher != nil {
		e.dispatcher.Publish(ctx, event.NewEvent(event.TypeValidationComplete, caseID, map[string]interface{}{
			event.KeyActorID:      userID,
			event.KeyErrorCount:   summary.ErrorCount,
			event.KeyWarningCount: summary.WarningCount,
		}))
	}

	return summary, nil
}

func (e *engineImpl) GetValidationResults(ctx context.Context, caseID string) (*entity.ValidationSummary, error) {
	results, err := e.results.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("list validation results: %w", err)
	}
	return entity.NewValidationSummary(caseID, results), nil
}

func (e *engineImpl) AcknowledgeWarnings(ctx context.Context, caseID string, resultIDs []int64, userID, notes string) (*entity.ValidationSummary, error) {
	if len(resultIDs) > 0 {
		var changed int64
		err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			var err error
			changed, err = e.results.AcknowledgeWarnings(txCtx, caseID, resultIDs, userID, notes, e.now())
			if err != nil {
				return fmt.Errorf("acknowledge warnings: %w", err)
			}
			if changed == 0 {
				return nil
			}
			details, err := json.Marshal(map[string]interface{}{
				"result_ids": resultIDs,
				"count":      changed,
				"notes":      notes,
			})
			if err != nil {
				return fmt.Errorf("marshal audit details: %w", err)
			}
			return e.audit.Append(txCtx, &entity.AuditEvent{
				UserID:     userID,
				Action:     entity.AuditActionWarningsAcknowledged,
				EntityType: entity.EntityTypeCase,
				EntityID:   caseID,
				Details:    details,
				CreatedAt:  e.now(),
			})
		})
		if err != nil {
			e.logError("Failed to acknowledge warnings", "case_id", caseID, "error", err)
			return nil, err
		}
		e.logInfo("Warnings acknowledged", "case_id", caseID, "count", changed, "user_id", userID)
	}

	return e.GetValidationResults(ctx, caseID)
}

func (e *engineImpl) TestRule(ctx context.Context, req RuleRequest, sample json.RawMessage) *entity.RuleTestResult {
	env, err := BuildContext(sample)
	if err != nil {
		return &entity.RuleTestResult{Error: err.Error()}
	}

	rule := req.toRule()
	if rule.Severity == "" {
		rule.Severity = entity.SeverityError
	}

	result, triggered, err := e.evaluateRule(rule, env, "", e.now())
	if err != nil {
		return &entity.RuleTestResult{Triggered: triggered, Error: err.Error()}
	}
	return &entity.RuleTestResult{
		Passed:    result == nil,
		Triggered: triggered,
		Result:    result,
	}
}

// evaluateRule returns a result when the rule applies and its check fails.
// triggered reports whether the condition held.
func (e *engineImpl) evaluateRule(rule *entity.ValidationRule, env expression.Env, caseID string, at time.Time) (*entity.ValidationResult, bool, error) {
	if !expression.IsAlways(rule.ConditionExpression) {
		applies, err := e.evaluator.Evaluate(rule.ConditionExpression, env)
		if err != nil {
			return nil, false, fmt.Errorf("condition: %w", err)
		}
		if !applies {
			return nil, false, nil
		}
	}

	ok, err := e.evaluator.Evaluate(rule.ValidationExpression, env)
	if err != nil {
		return nil, true, fmt.Errorf("validation: %w", err)
	}
	if ok {
		return nil, true, nil
	}

	return &entity.ValidationResult{
		CaseID:      caseID,
		RuleID:      rule.ID,
		RuleCode:    rule.RuleCode,
		RuleName:    rule.RuleName,
		Severity:    rule.Severity,
		Message:     rule.ErrorMessage,
		FieldPath:   rule.FieldPath,
		FieldValue:  fieldValue(env, rule.FieldPath),
		ValidatedAt: at,
	}, true, nil
}

func evaluationFailure(rule *entity.ValidationRule, caseID string, err error, at time.Time) entity.ValidationResult {
	return entity.ValidationResult{
		CaseID:      caseID,
		RuleID:      rule.ID,
		RuleCode:    rule.RuleCode,
		RuleName:    rule.RuleName,
		Severity:    entity.SeverityWarning,
		Message:     fmt.Sprintf("Rule %s could not be evaluated: %v", rule.RuleCode, err),
		FieldPath:   rule.FieldPath,
		ValidatedAt: at,
	}
}

func fieldValue(env expression.Env, path string) string {
	if path == "" {
		return ""
	}
	switch v := env[path].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func (e *engineImpl) logInfo(msg string, keysAndValues ...interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, keysAndValues...)
	}
}

func (e *engineImpl) logError(msg string, keysAndValues ...interface{}) {
	if e.logger != nil {
		e.logger.Error(msg, keysAndValues...)
	}
}
