package tools

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Dispatch resolves and invokes one tool call. It never returns an error:
// unknown tools, argument problems, and invocation failures all come back as
// a descriptive error string so the loop can hand them to the model as a
// tool result and keep going.
func Dispatch(ctx context.Context, reg *Registry, name string, args map[string]any) string {
	tool, spec, ok := reg.Lookup(name)
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", name)
	}

	prepared, problem := prepareArguments(spec, args)
	if problem != "" {
		return "Error: " + problem
	}

	output, err := tool.Invoke(ctx, prepared)
	if err != nil {
		return fmt.Sprintf("Error executing tool %s: %v", spec.Name, err)
	}
	return output
}

// prepareArguments validates and coerces the model's arguments against the
// descriptor. Unknown keys are dropped, missing optional keys are omitted,
// and mismatched types are coerced when the conversion is unambiguous.
func prepareArguments(spec Descriptor, args map[string]any) (map[string]any, string) {
	prepared := make(map[string]any, len(args))
	for key, value := range args {
		param, declared := spec.Parameter(key)
		if !declared {
			continue
		}
		coerced, ok := coerce(value, param.Kind)
		if !ok {
			return nil, fmt.Sprintf("argument %q for tool %s: cannot interpret %v as %s",
				key, spec.Name, value, param.Kind)
		}
		prepared[key] = coerced
	}

	var missing []string
	for _, param := range spec.Parameters {
		if param.Required {
			if _, ok := prepared[param.Name]; !ok {
				missing = append(missing, param.Name)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Sprintf("tool %s: missing required argument(s): %s",
			spec.Name, strings.Join(missing, ", "))
	}
	return prepared, ""
}

// coerce converts a value to the declared kind. Only unambiguous conversions
// are performed; everything else is rejected.
func coerce(value any, kind string) (any, bool) {
	switch kind {
	case KindAny:
		return value, true
	case KindString:
		switch v := value.(type) {
		case string:
			return v, true
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		case int:
			return strconv.Itoa(v), true
		case bool:
			return strconv.FormatBool(v), true
		}
	case KindInteger:
		switch v := value.(type) {
		case int:
			return v, true
		case int64:
			return int(v), true
		case float64:
			if v == float64(int64(v)) {
				return int(v), true
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n, true
			}
		}
	case KindNumber:
		switch v := value.(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	case KindBoolean:
		switch v := value.(type) {
		case bool:
			return v, true
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true":
				return true, true
			case "false":
				return false, true
			}
		}
	}
	return nil, false
}
