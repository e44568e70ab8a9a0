package validation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/icsr-workflow/internal/domain/entity"
	"github.com/garyjia/icsr-workflow/internal/domain/expression"
)

const sampleCase = `{
	"patientInitials": "JD",
	"patientAge": 45,
	"patientSex": "F",
	"receiptDate": "2024-01-20",
	"outcome": "case-level",
	"reactions": [
		{"reactionTerm": "Rash", "onsetDate": "2024-01-10", "outcome": "recovered", "details": {"x": 1}},
		{"reactionTerm": "Nausea", "onsetDate": "2024-01-25"}
	],
	"drugs": [{"productName": "Examplamab", "dose": "12.5"}],
	"reporters": []
}`

type engineFixture struct {
	engine  Engine
	rules   *mockRuleRepo
	results *mockResultRepo
	audit   *mockAuditLog
	metrics *mockMetrics
}

func newEngineFixture(t *testing.T, rules ...*entity.ValidationRule) *engineFixture {
	t.Helper()

	f := &engineFixture{
		rules:   &mockRuleRepo{},
		results: newMockResultRepo(),
		audit:   &mockAuditLog{},
		metrics: &mockMetrics{},
	}
	for _, r := range rules {
		require.NoError(t, f.rules.Create(context.Background(), r))
	}

	cases := &mockCaseStore{cases: map[string]*entity.Case{
		"case-1": {ID: "case-1", Data: json.RawMessage(sampleCase)},
	}}
	fixed := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	evaluator := expression.NewEvaluator(expression.WithClock(func() time.Time { return fixed }))

	f.engine = NewEngine(cases, f.rules, f.results, f.audit, &mockTxManager{}, evaluator,
		WithMetrics(f.metrics),
		WithClock(func() time.Time { return fixed }))
	return f
}

func rule(code, severity, condition, validation string) *entity.ValidationRule {
	return &entity.ValidationRule{
		RuleCode:             code,
		RuleName:             code,
		RuleType:             entity.RuleTypeCustom,
		Severity:             severity,
		ConditionExpression:  condition,
		ValidationExpression: validation,
		ErrorMessage:         code + " violated",
		FieldPath:            "patientAge",
		IsActive:             true,
	}
}

func TestBuildContext(t *testing.T) {
	env, err := BuildContext([]byte(sampleCase))
	require.NoError(t, err)

	assert.Equal(t, "JD", env["patientInitials"])
	assert.Equal(t, float64(45), env["patientAge"])
	assert.Equal(t, "case-level", env["outcome"], "case-level keys win")
	assert.Equal(t, "Rash", env["reactionTerm"], "first reaction only")
	assert.Equal(t, "2024-01-10", env["onsetDate"])
	assert.Equal(t, "Examplamab", env["productName"])
	assert.Equal(t, float64(2), env["reactionCount"])
	assert.Equal(t, float64(1), env["drugCount"])
	assert.Equal(t, float64(0), env["reporterCount"])
	assert.NotContains(t, env, "details")
	assert.NotContains(t, env, "reactions")

	empty, err := BuildContext(nil)
	require.NoError(t, err)
	assert.Equal(t, float64(0), empty["drugCount"])

	_, err = BuildContext([]byte(`{"broken":`))
	assert.Error(t, err)
	_, err = BuildContext([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestEngine_RunValidationSeverityAndConditions(t *testing.T) {
	f := newEngineFixture(t,
		rule("ALWAYS_FAILS", entity.SeverityWarning, "", "false"),
		rule("NEVER_APPLIES", entity.SeverityError, "false", "false"),
		rule("PASSES", entity.SeverityError, "true", "patientAge >= 18"),
		rule("CONDITIONAL_FAIL", entity.SeverityInfo, "patientSex == 'F'", "reporterCount > 0"),
	)

	summary, err := f.engine.RunValidation(context.Background(), "case-1", "u1")
	require.NoError(t, err)

	require.Len(t, summary.Results, 2)
	assert.Equal(t, "ALWAYS_FAILS", summary.Results[0].RuleCode)
	assert.Equal(t, entity.SeverityWarning, summary.Results[0].Severity)
	assert.Equal(t, "45", summary.Results[0].FieldValue)
	assert.Equal(t, "CONDITIONAL_FAIL", summary.Results[1].RuleCode)
	assert.NotZero(t, summary.Results[0].ID)

	assert.Equal(t, 0, summary.ErrorCount)
	assert.Equal(t, 1, summary.WarningCount)
	assert.Equal(t, 1, summary.InfoCount)
	assert.True(t, summary.IsValid)
	assert.False(t, summary.CanSubmit)

	require.Len(t, f.audit.events, 1)
	assert.Equal(t, entity.AuditActionValidationRun, f.audit.events[0].Action)
	assert.Equal(t, 1, f.metrics.runs)
}

func TestEngine_RunValidationSkipsInactiveRules(t *testing.T) {
	inactive := rule("INACTIVE", entity.SeverityError, "", "false")
	inactive.IsActive = false
	f := newEngineFixture(t, inactive)

	summary, err := f.engine.RunValidation(context.Background(), "case-1", "u1")
	require.NoError(t, err)
	assert.Empty(t, summary.Results)
	assert.True(t, summary.CanSubmit)
}

func TestEngine_RunValidationDowngradesBrokenRules(t *testing.T) {
	broken := rule("BROKEN", entity.SeverityError, "", "matchesPattern(patientInitials, pattern)")
	f := newEngineFixture(t, broken, rule("OK_ERROR", entity.SeverityError, "", "false"))

	// the invalid pattern only surfaces at run time
	f.engine.(*engineImpl).cases.(*mockCaseStore).cases["case-1"].Data = json.RawMessage(`{"patientInitials":"JD","pattern":"("}`)

	summary, err := f.engine.RunValidation(context.Background(), "case-1", "u1")
	require.NoError(t, err)

	require.Len(t, summary.Results, 2)
	assert.Equal(t, "BROKEN", summary.Results[0].RuleCode)
	assert.Equal(t, entity.SeverityWarning, summary.Results[0].Severity)
	assert.Contains(t, summary.Results[0].Message, "could not be evaluated")
	assert.Equal(t, "OK_ERROR", summary.Results[1].RuleCode)
	assert.Equal(t, 1, summary.ErrorCount)
}

func TestEngine_RunValidationReplacesPriorRun(t *testing.T) {
	f := newEngineFixture(t,
		rule("A", entity.SeverityError, "", "false"),
		rule("B", entity.SeverityWarning, "", "patientAge > 100"),
	)
	ctx := context.Background()

	first, err := f.engine.RunValidation(ctx, "case-1", "u1")
	require.NoError(t, err)
	second, err := f.engine.RunValidation(ctx, "case-1", "u1")
	require.NoError(t, err)

	codes := func(s *entity.ValidationSummary) []string {
		var out []string
		for _, r := range s.Results {
			out = append(out, r.RuleCode+"/"+r.Severity)
		}
		return out
	}
	assert.Equal(t, codes(first), codes(second))

	stored, err := f.engine.GetValidationResults(ctx, "case-1")
	require.NoError(t, err)
	assert.Len(t, stored.Results, 2)
}

func TestEngine_RunValidationCaseNotFound(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.RunValidation(context.Background(), "missing", "u1")
	assert.ErrorIs(t, err, ErrCaseNotFound)
}

func TestEngine_AcknowledgeWarningsFlipsCanSubmit(t *testing.T) {
	f := newEngineFixture(t,
		rule("WARN_1", entity.SeverityWarning, "", "false"),
		rule("WARN_2", entity.SeverityWarning, "", "false"),
		rule("INFO", entity.SeverityInfo, "", "false"),
	)
	ctx := context.Background()

	summary, err := f.engine.RunValidation(ctx, "case-1", "u1")
	require.NoError(t, err)
	require.False(t, summary.CanSubmit)

	ids := func(codes ...string) []int64 {
		var out []int64
		for _, r := range summary.Results {
			for _, c := range codes {
				if r.RuleCode == c {
					out = append(out, r.ID)
				}
			}
		}
		return out
	}

	after, err := f.engine.AcknowledgeWarnings(ctx, "case-1", ids("WARN_1", "INFO"), "qa", "reviewed")
	require.NoError(t, err)
	assert.False(t, after.CanSubmit)
	assert.Equal(t, 2, after.WarningCount)

	after, err = f.engine.AcknowledgeWarnings(ctx, "case-1", ids("WARN_2"), "qa", "")
	require.NoError(t, err)
	assert.True(t, after.CanSubmit)
	assert.Equal(t, 2, after.WarningCount)
	assert.Equal(t, 1, after.InfoCount)

	for _, r := range after.Results {
		if r.Severity == entity.SeverityInfo {
			assert.False(t, r.IsAcknowledged)
		}
	}
}

func TestEngine_AcknowledgeCannotClearErrors(t *testing.T) {
	f := newEngineFixture(t, rule("ERR", entity.SeverityError, "", "false"))
	ctx := context.Background()

	summary, err := f.engine.RunValidation(ctx, "case-1", "u1")
	require.NoError(t, err)

	after, err := f.engine.AcknowledgeWarnings(ctx, "case-1", []int64{summary.Results[0].ID}, "qa", "")
	require.NoError(t, err)
	assert.False(t, after.Results[0].IsAcknowledged)
	assert.False(t, after.CanSubmit)
}

func TestEngine_TestRule(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	sample := json.RawMessage(`{"patientAge": 130}`)

	tests := []struct {
		name          string
		req           RuleRequest
		wantPassed    bool
		wantTriggered bool
		wantResult    bool
		wantError     bool
	}{
		{
			name:          "violated",
			req:           RuleRequest{RuleCode: "T", Severity: entity.SeverityError, ValidationExpression: "patientAge <= 120", ErrorMessage: "too old", FieldPath: "patientAge"},
			wantTriggered: true,
			wantResult:    true,
		},
		{
			name:          "passes",
			req:           RuleRequest{RuleCode: "T", ValidationExpression: "patientAge > 0"},
			wantPassed:    true,
			wantTriggered: true,
		},
		{
			name:       "condition not met",
			req:        RuleRequest{RuleCode: "T", ConditionExpression: "patientAge < 18", ValidationExpression: "false"},
			wantPassed: true,
		},
		{
			name:          "bad expression",
			req:           RuleRequest{RuleCode: "T", ValidationExpression: "patientAge + 1"},
			wantTriggered: true,
			wantError:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.engine.TestRule(ctx, tt.req, sample)

			assert.Equal(t, tt.wantPassed, res.Passed)
			assert.Equal(t, tt.wantTriggered, res.Triggered)
			assert.Equal(t, tt.wantResult, res.Result != nil)
			assert.Equal(t, tt.wantError, res.Error != "")
		})
	}

	res := f.engine.TestRule(ctx, RuleRequest{ValidationExpression: "false", FieldPath: "patientAge", ErrorMessage: "m"}, sample)
	require.NotNil(t, res.Result)
	assert.Equal(t, "130", res.Result.FieldValue)
	assert.Empty(t, f.results.results)
}
