package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/shaiso/flowgen/internal/domain"
)

// TemplateContext — данные для рендеринга конфигурации узла.
//
// Доступ в шаблонах:
//   - {{ .Input.field }}
//   - {{ .Variables.name }}
//   - {{ .Upstream.node_id.field }}
//   - {{ .RunID }}, {{ .TraceID }}, {{ .NodeID }}
type TemplateContext struct {
	Input     map[string]any
	Variables map[string]any

	// Upstream — выходы узлов-источников входящих рёбер.
	Upstream map[string]any

	RunID   string
	TraceID string
	NodeID  string
}

// NewTemplateContext создаёт контекст рендеринга для узла.
func NewTemplateContext(execCtx domain.ExecutionContext, nodeID string, upstream map[string]any) *TemplateContext {
	ctx := &TemplateContext{
		Input:     execCtx.Input,
		Variables: execCtx.Variables,
		Upstream:  upstream,
		RunID:     execCtx.RunID,
		TraceID:   execCtx.TraceID,
		NodeID:    nodeID,
	}
	if ctx.Input == nil {
		ctx.Input = make(map[string]any)
	}
	if ctx.Variables == nil {
		ctx.Variables = make(map[string]any)
	}
	if ctx.Upstream == nil {
		ctx.Upstream = make(map[string]any)
	}
	return ctx
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — значение по умолчанию для nil и пустой строки
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	"coalesce": func(values ...any) any {
		for _, v := range values {
			if v == nil {
				continue
			}
			if s, ok := v.(string); ok && s == "" {
				continue
			}
			return v
		}
		return nil
	},

	"fromJSON": func(s string) any {
		var result any
		if err := json.Unmarshal([]byte(s), &result); err != nil {
			return nil
		}
		return result
	},

	"join":      func(sep string, items []string) string { return strings.Join(items, sep) },
	"split":     func(sep, s string) []string { return strings.Split(s, sep) },
	"contains":  strings.Contains,
	"hasPrefix": strings.HasPrefix,
	"lower":     strings.ToLower,
	"upper":     strings.ToUpper,
	"trim":      strings.TrimSpace,
	"replace":   strings.ReplaceAll,
}

// Render рендерит строковый шаблон.
// Строки без "{{" возвращаются как есть.
func Render(tmpl string, ctx *TemplateContext) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// RenderValue рекурсивно рендерит строки внутри map и slice.
func RenderValue(value any, ctx *TemplateContext) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil

	case string:
		return Render(v, ctx)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			rendered, err := RenderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			rendered, err := RenderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	default:
		return value, nil
	}
}

// RenderConfig рендерит конфигурацию узла.
func RenderConfig(config map[string]any, ctx *TemplateContext) (map[string]any, error) {
	if config == nil {
		return make(map[string]any), nil
	}

	rendered, err := RenderValue(config, ctx)
	if err != nil {
		return nil, err
	}

	result, ok := rendered.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected map, got %T", ErrTemplateRender, rendered)
	}

	return result, nil
}
