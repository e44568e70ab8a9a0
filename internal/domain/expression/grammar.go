package expression

import (
	"fmt"
	"regexp"

	"github.com/expr-lang/expr/ast"
)

var allowedBinary = map[string]bool{
	"==": true, "!=": true,
	"<": true, ">": true, "<=": true, ">=": true,
	"&&": true, "||": true, "and": true, "or": true,
}

// grammarChecker walks a parsed tree and records the first construct outside the grammar
type grammarChecker struct {
	helpers map[string]helper
	err     error
}

func (c *grammarChecker) Visit(node *ast.Node) {
	if c.err != nil {
		return
	}

	switch n := (*node).(type) {
	case *ast.NilNode, *ast.BoolNode, *ast.IntegerNode, *ast.FloatNode, *ast.StringNode, *ast.IdentifierNode:
	case *ast.UnaryNode:
		switch n.Operator {
		case "!", "not":
		case "-", "+":
			if !isNumberLiteral(n.Node) {
				c.err = fmt.Errorf("unary %s is only allowed on number literals", n.Operator)
			}
		default:
			c.err = fmt.Errorf("operator %q is not allowed", n.Operator)
		}
	case *ast.BinaryNode:
		if !allowedBinary[n.Operator] {
			c.err = fmt.Errorf("operator %q is not allowed", n.Operator)
		}
	case *ast.CallNode:
		c.checkCall(n)
	default:
		c.err = fmt.Errorf("%s is not allowed", describe(n))
	}
}

func (c *grammarChecker) checkCall(n *ast.CallNode) {
	ident, ok := n.Callee.(*ast.IdentifierNode)
	if !ok {
		c.err = fmt.Errorf("only direct helper calls are allowed")
		return
	}

	h, ok := c.helpers[ident.Value]
	if !ok {
		c.err = fmt.Errorf("unknown function %q", ident.Value)
		return
	}
	if len(n.Arguments) < h.minArgs || len(n.Arguments) > h.maxArgs {
		c.err = fmt.Errorf("%s expects %s, got %d", ident.Value, h.arity(), len(n.Arguments))
		return
	}

	// Literal patterns are compiled up front so authoring rejects them early.
	if ident.Value == helperMatchesPattern && len(n.Arguments) == 2 {
		if pattern, ok := n.Arguments[1].(*ast.StringNode); ok {
			if _, err := regexp.Compile(pattern.Value); err != nil {
				c.err = fmt.Errorf("invalid pattern %q: %v", pattern.Value, err)
			}
		}
	}
}

func isNumberLiteral(node ast.Node) bool {
	switch node.(type) {
	case *ast.IntegerNode, *ast.FloatNode:
		return true
	}
	return false
}

func describe(node ast.Node) string {
	switch n := node.(type) {
	case *ast.MemberNode, *ast.ChainNode:
		return "member access"
	case *ast.BuiltinNode:
		return fmt.Sprintf("builtin %q", n.Name)
	case *ast.ConditionalNode:
		return "conditional expression"
	case *ast.ArrayNode:
		return "array literal"
	case *ast.MapNode, *ast.PairNode:
		return "map literal"
	case *ast.ClosureNode, *ast.PointerNode:
		return "closure"
	case *ast.SliceNode:
		return "slice expression"
	default:
		return fmt.Sprintf("%T", node)
	}
}
