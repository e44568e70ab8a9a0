package validation

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/garyjia/icsr-workflow/internal/domain/expression"
)

// Repeating groups whose first element is merged into the validation context
var repeatingGroups = []struct {
	path     string
	countKey string
}{
	{"reactions", "reactionCount"},
	{"drugs", "drugCount"},
	{"reporters", "reporterCount"},
}

// BuildContext flattens a case document into the variables visible to rule expressions.
// Top-level scalars come first; scalars of the first reaction, drug and reporter are added
// only where the case does not already define the key.
func BuildContext(document []byte) (expression.Env, error) {
	env := expression.Env{}
	if len(document) == 0 {
		for _, g := range repeatingGroups {
			env[g.countKey] = float64(0)
		}
		return env, nil
	}
	if !gjson.ValidBytes(document) {
		return nil, fmt.Errorf("case document is not valid JSON")
	}

	root := gjson.ParseBytes(document)
	if !root.IsObject() {
		return nil, fmt.Errorf("case document must be a JSON object")
	}

	mergeScalars(env, root, true)

	for _, g := range repeatingGroups {
		group := root.Get(g.path)
		items := group.Array()
		if !group.IsArray() {
			items = nil
		}
		env[g.countKey] = float64(len(items))
		if len(items) > 0 && items[0].IsObject() {
			mergeScalars(env, items[0], false)
		}
	}

	return env, nil
}

func mergeScalars(env expression.Env, obj gjson.Result, overwrite bool) {
	obj.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if _, exists := env[name]; exists && !overwrite {
			return true
		}
		if v, ok := scalar(value); ok {
			env[name] = v
		}
		return true
	})
}

func scalar(value gjson.Result) (interface{}, bool) {
	switch value.Type {
	case gjson.Null:
		return nil, true
	case gjson.False:
		return false, true
	case gjson.True:
		return true, true
	case gjson.Number:
		return value.Float(), true
	case gjson.String:
		return value.String(), true
	}
	return nil, false
}
