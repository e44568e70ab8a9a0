package expression

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr/ast"
)

func (e *Evaluator) eval(node ast.Node, env Env) (interface{}, error) {
	switch n := node.(type) {
	case *ast.NilNode:
		return nil, nil
	case *ast.BoolNode:
		return n.Value, nil
	case *ast.IntegerNode:
		return float64(n.Value), nil
	case *ast.FloatNode:
		return n.Value, nil
	case *ast.StringNode:
		return n.Value, nil
	case *ast.IdentifierNode:
		// Unknown fields read as nil so rules can probe optional data.
		return normalizeValue(env[n.Value]), nil
	case *ast.UnaryNode:
		return e.evalUnary(n, env)
	case *ast.BinaryNode:
		return e.evalBinary(n, env)
	case *ast.CallNode:
		return e.evalCall(n, env)
	default:
		return nil, fmt.Errorf("%s is not allowed", describe(node))
	}
}

func (e *Evaluator) evalUnary(n *ast.UnaryNode, env Env) (interface{}, error) {
	v, err := e.eval(n.Node, env)
	if err != nil {
		return nil, err
	}

	switch n.Operator {
	case "!", "not":
		return !truthy(v), nil
	case "-":
		if f, ok := v.(float64); ok {
			return -f, nil
		}
	case "+":
		if f, ok := v.(float64); ok {
			return f, nil
		}
	}
	return nil, fmt.Errorf("operator %q cannot be applied to %T", n.Operator, v)
}

func (e *Evaluator) evalBinary(n *ast.BinaryNode, env Env) (interface{}, error) {
	left, err := e.eval(n.Left, env)
	if err != nil {
		return nil, err
	}

	switch n.Operator {
	case "&&", "and":
		if !truthy(left) {
			return false, nil
		}
		right, err := e.eval(n.Right, env)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	case "||", "or":
		if truthy(left) {
			return true, nil
		}
		right, err := e.eval(n.Right, env)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	}

	right, err := e.eval(n.Right, env)
	if err != nil {
		return nil, err
	}

	switch n.Operator {
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	case "<", ">", "<=", ">=":
		return compare(n.Operator, left, right), nil
	}
	return nil, fmt.Errorf("operator %q is not allowed", n.Operator)
}

func (e *Evaluator) evalCall(n *ast.CallNode, env Env) (interface{}, error) {
	ident, ok := n.Callee.(*ast.IdentifierNode)
	if !ok {
		return nil, fmt.Errorf("only direct helper calls are allowed")
	}
	h, ok := e.helpers[ident.Value]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", ident.Value)
	}

	args := make([]interface{}, 0, len(n.Arguments))
	for _, arg := range n.Arguments {
		v, err := e.eval(arg, env)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	result, err := h.fn(args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ident.Value, err)
	}
	return result, nil
}

// normalizeValue maps Go values from the environment onto the interpreter's value kinds:
// nil, bool, float64, string, or a collection.
func normalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case time.Time:
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	}
	return v
}

func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	default:
		return true
	}
}

// toNumber converts numbers and numeric strings
func toNumber(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func looseEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch x := a.(type) {
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case float64:
		y, ok := toNumber(b)
		return ok && x == y
	case string:
		if y, ok := b.(string); ok {
			return x == y
		}
		xf, okx := toNumber(x)
		yf, oky := toNumber(b)
		return okx && oky && xf == yf
	}
	return false
}

// compare orders two numbers, or two strings lexically. Anything else is false.
func compare(op string, a, b interface{}) bool {
	if a == nil || b == nil {
		return false
	}

	var c int
	as, aIsString := a.(string)
	bs, bIsString := b.(string)
	if aIsString && bIsString {
		c = strings.Compare(as, bs)
	} else {
		af, ok := toNumber(a)
		if !ok {
			return false
		}
		bf, ok := toNumber(b)
		if !ok {
			return false
		}
		switch {
		case af < bf:
			c = -1
		case af > bf:
			c = 1
		}
	}

	switch op {
	case "<":
		return c < 0
	case ">":
		return c > 0
	case "<=":
		return c <= 0
	case ">=":
		return c >= 0
	}
	return false
}

// toText renders a value for string helpers
func toText(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}
