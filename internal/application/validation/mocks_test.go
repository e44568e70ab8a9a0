package validation

import (
	"context"
	"strings"
	"time"

	"github.com/garyjia/icsr-workflow/internal/domain/entity"
)

type mockTxManager struct {
	commitErr error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	return fn(ctx)
}

type mockCaseStore struct {
	cases map[string]*entity.Case
}

func (m *mockCaseStore) Create(ctx context.Context, c *entity.Case) error {
	m.cases[c.ID] = c
	return nil
}

func (m *mockCaseStore) GetByID(ctx context.Context, id string) (*entity.Case, error) {
	return m.cases[id], nil
}

func (m *mockCaseStore) Update(ctx context.Context, id string, update entity.CaseUpdate) (*entity.Case, error) {
	return m.cases[id], nil
}

func (m *mockCaseStore) UpdateData(ctx context.Context, id string, data []byte) error {
	m.cases[id].Data = data
	return nil
}

type mockRuleRepo struct {
	rules  []*entity.ValidationRule
	nextID int64
}

func (m *mockRuleRepo) Create(ctx context.Context, r *entity.ValidationRule) error {
	m.nextID++
	r.ID = m.nextID
	m.rules = append(m.rules, r)
	return nil
}

func (m *mockRuleRepo) GetByID(ctx context.Context, id int64) (*entity.ValidationRule, error) {
	for _, r := range m.rules {
		if r.ID == id {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockRuleRepo) GetByCode(ctx context.Context, code string) (*entity.ValidationRule, error) {
	for _, r := range m.rules {
		if r.RuleCode == code {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockRuleRepo) List(ctx context.Context, filter entity.RuleFilter) ([]*entity.ValidationRule, error) {
	var out []*entity.ValidationRule
	for _, r := range m.rules {
		if filter.IsActive != nil && r.IsActive != *filter.IsActive {
			continue
		}
		if filter.IsSystem != nil && r.IsSystem != *filter.IsSystem {
			continue
		}
		if filter.Severity != nil && r.Severity != *filter.Severity {
			continue
		}
		if filter.RuleType != nil && r.RuleType != *filter.RuleType {
			continue
		}
		if filter.Search != "" && !strings.Contains(r.RuleName, filter.Search) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRuleRepo) Update(ctx context.Context, r *entity.ValidationRule) error {
	for i, existing := range m.rules {
		if existing.ID == r.ID {
			m.rules[i] = r
		}
	}
	return nil
}

func (m *mockRuleRepo) SetActive(ctx context.Context, id int64, active bool) error {
	for _, r := range m.rules {
		if r.ID == id {
			r.IsActive = active
		}
	}
	return nil
}

func (m *mockRuleRepo) Delete(ctx context.Context, id int64) error {
	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return nil
}

type mockResultRepo struct {
	results map[string][]entity.ValidationResult
	nextID  int64
}

func newMockResultRepo() *mockResultRepo {
	return &mockResultRepo{results: map[string][]entity.ValidationResult{}}
}

func (m *mockResultRepo) ReplaceForCase(ctx context.Context, caseID string, results []entity.ValidationResult) error {
	for i := range results {
		m.nextID++
		results[i].ID = m.nextID
	}
	m.results[caseID] = append([]entity.ValidationResult(nil), results...)
	return nil
}

func (m *mockResultRepo) ListByCase(ctx context.Context, caseID string) ([]entity.ValidationResult, error) {
	return append([]entity.ValidationResult(nil), m.results[caseID]...), nil
}

func (m *mockResultRepo) AcknowledgeWarnings(ctx context.Context, caseID string, ids []int64, by, notes string, at time.Time) (int64, error) {
	wanted := map[int64]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	var changed int64
	stored := m.results[caseID]
	for i := range stored {
		r := &stored[i]
		if wanted[r.ID] && r.Severity == entity.SeverityWarning && !r.IsAcknowledged {
			r.IsAcknowledged = true
			r.AcknowledgedBy = by
			r.AcknowledgedAt = &at
			r.AcknowledgmentNotes = notes
			changed++
		}
	}
	return changed, nil
}

type mockAuditLog struct {
	events []*entity.AuditEvent
}

func (m *mockAuditLog) Append(ctx context.Context, e *entity.AuditEvent) error {
	m.events = append(m.events, e)
	return nil
}

func (m *mockAuditLog) ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.AuditEvent, error) {
	return m.events, nil
}

type mockMetrics struct {
	runs int
}

func (m *mockMetrics) ObserveValidation(errors, warnings, infos int, duration time.Duration) {
	m.runs++
}
