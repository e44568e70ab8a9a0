package validation

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed system_rules.yaml
var systemRulesYAML []byte

type systemRuleFile struct {
	Rules []RuleRequest `yaml:"rules"`
}

// SystemRules returns the bundled system rule definitions
func SystemRules() ([]RuleRequest, error) {
	var file systemRuleFile
	if err := yaml.Unmarshal(systemRulesYAML, &file); err != nil {
		return nil, fmt.Errorf("parse system rules: %w", err)
	}
	return file.Rules, nil
}

// SeedSystemRules inserts bundled system rules whose codes are missing. Existing rows are never overwritten.
func (s *ruleServiceImpl) SeedSystemRules(ctx context.Context) (int, error) {
	defs, err := SystemRules()
	if err != nil {
		return 0, err
	}

	inserted := 0
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, def := range defs {
			if err := s.check(def); err != nil {
				return fmt.Errorf("system rule %s: %w", def.RuleCode, err)
			}

			existing, err := s.rules.GetByCode(txCtx, def.RuleCode)
			if err != nil {
				return fmt.Errorf("get rule by code: %w", err)
			}
			if existing != nil {
				continue
			}

			rule := def.toRule()
			rule.IsSystem = true
			rule.IsActive = true
			rule.CreatedBy = "system"
			rule.CreatedAt = s.now()
			rule.UpdatedAt = rule.CreatedAt
			if err := s.rules.Create(txCtx, rule); err != nil {
				return fmt.Errorf("create system rule %s: %w", def.RuleCode, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logInfo("System validation rules seeded", "inserted", inserted, "bundled", len(defs))
	return inserted, nil
}
