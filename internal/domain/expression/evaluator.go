// Package expression compiles and evaluates the restricted boolean expressions
// used by validation rules. Sources are parsed with the expr-lang parser, checked
// against a fixed grammar and interpreted directly over the AST. Nothing is ever
// handed to a general purpose compiler or VM.
package expression

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/patrickmn/go-cache"
)

var (
	// ErrInvalidExpression is returned when a source fails to parse or uses a construct outside the grammar
	ErrInvalidExpression = errors.New("invalid expression")

	// ErrEvaluation is returned when a well-formed expression fails at run time
	ErrEvaluation = errors.New("expression evaluation failed")
)

// Env holds the variables visible to an expression
type Env map[string]interface{}

// Program is a parsed and checked expression
type Program struct {
	source string
	root   ast.Node
}

// Source returns the normalized expression text
func (p *Program) Source() string {
	return p.source
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithCacheTTL sets how long compiled programs stay cached
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Evaluator) {
		e.cacheTTL = ttl
	}
}

// WithClock overrides the clock used when a helper needs "now"
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

// Evaluator compiles expressions with a program cache and runs them against an Env
type Evaluator struct {
	programs *cache.Cache
	cacheTTL time.Duration
	now      func() time.Time
	helpers  map[string]helper
}

// NewEvaluator creates an evaluator with the standard helper library
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		cacheTTL: 30 * time.Minute,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.programs = cache.New(e.cacheTTL, 2*e.cacheTTL)
	e.helpers = newHelpers(e.now, e.programs)
	return e
}

// Normalize rewrites the === and !== aliases into the canonical grammar.
// Text inside string literals is left untouched.
func Normalize(source string) string {
	source = strings.TrimSpace(source)
	if !strings.Contains(source, "==") {
		return source
	}

	var b strings.Builder
	b.Grow(len(source))

	var quote byte
	for i := 0; i < len(source); i++ {
		ch := source[i]
		switch {
		case quote != 0:
			b.WriteByte(ch)
			if ch == '\\' && quote != '`' && i+1 < len(source) {
				i++
				b.WriteByte(source[i])
			} else if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'' || ch == '`':
			quote = ch
			b.WriteByte(ch)
		case strings.HasPrefix(source[i:], "!=="):
			b.WriteString("!=")
			i += 2
		case strings.HasPrefix(source[i:], "==="):
			b.WriteString("==")
			i += 2
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// IsAlways reports whether a condition source applies unconditionally
func IsAlways(condition string) bool {
	c := Normalize(condition)
	return c == "" || c == "true"
}

// Compile parses and checks a source, returning a cached program when available
func (e *Evaluator) Compile(source string) (*Program, error) {
	normalized := Normalize(source)
	if normalized == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}

	key := "program:" + normalized
	if cached, found := e.programs.Get(key); found {
		return cached.(*Program), nil
	}

	tree, err := parser.Parse(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	checker := &grammarChecker{helpers: e.helpers}
	ast.Walk(&tree.Node, checker)
	if checker.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, checker.err)
	}

	program := &Program{source: normalized, root: tree.Node}
	e.programs.Set(key, program, cache.DefaultExpiration)
	return program, nil
}

// Run evaluates a compiled program and coerces the outcome to a boolean
func (e *Evaluator) Run(program *Program, env Env) (bool, error) {
	value, err := e.eval(program.root, env)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrEvaluation, err)
	}
	return truthy(value), nil
}

// Evaluate compiles and runs a source in one step
func (e *Evaluator) Evaluate(source string, env Env) (bool, error) {
	program, err := e.Compile(source)
	if err != nil {
		return false, err
	}
	return e.Run(program, env)
}

// Check compiles a source and dry-runs it against an empty environment
func (e *Evaluator) Check(source string) error {
	_, err := e.Evaluate(source, Env{})
	return err
}

// CachedPrograms returns the number of programs currently cached
func (e *Evaluator) CachedPrograms() int {
	n := 0
	for key := range e.programs.Items() {
		if strings.HasPrefix(key, "program:") {
			n++
		}
	}
	return n
}
