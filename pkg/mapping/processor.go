// Package mapping implements the data mapping processor: the declarative
// layer that reshapes one node's output into the next node's input, either
// field by field or through a structured-text template.
package mapping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wehubfusion/Daedalus/pkg/expr"
	"github.com/wehubfusion/Daedalus/pkg/pathutil"
	"github.com/wehubfusion/Daedalus/pkg/payload"
	"github.com/wehubfusion/Daedalus/pkg/transform"
	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// Processor applies data mappings. The transform registry is injected at
// construction; processors are safe for concurrent use.
type Processor struct {
	transforms *transform.Registry
}

// NewProcessor creates a processor backed by the given transform registry.
// A nil registry gets the builtin set.
func NewProcessor(transforms *transform.Registry) *Processor {
	if transforms == nil {
		transforms = transform.NewRegistry()
	}
	return &Processor{transforms: transforms}
}

// Transforms exposes the registry, mainly so hosts can register extensions.
func (p *Processor) Transforms() *transform.Registry { return p.transforms }

// Transform applies mapping to input under ctx and returns the new payload.
// The input payload is never mutated. TEMPLATE mappings that render to a
// non-map value are wrapped under a "result" key so node inputs stay maps.
func (p *Processor) Transform(
	input map[string]interface{},
	mapping *workflow.DataMapping,
	ctx workflow.ExecutionContext,
) (map[string]interface{}, error) {
	if mapping == nil {
		return payload.CloneMap(input), nil
	}

	switch mapping.Type {
	case workflow.MappingTypeField:
		return p.applyFieldMappings(input, mapping, ctx)
	case workflow.MappingTypeTemplate:
		rendered, err := p.RenderTemplate(mapping.TransformScript, input, ctx)
		if err != nil {
			return nil, err
		}
		if m, ok := rendered.(map[string]interface{}); ok {
			return m, nil
		}
		return map[string]interface{}{"result": rendered}, nil
	default:
		return nil, fmt.Errorf("unknown mapping type %q", mapping.Type)
	}
}

// applyFieldMappings processes field rules strictly in declared order, then
// merges static values last so statics win colliding target paths.
func (p *Processor) applyFieldMappings(
	input map[string]interface{},
	mapping *workflow.DataMapping,
	ctx workflow.ExecutionContext,
) (map[string]interface{}, error) {
	out := make(map[string]interface{})

	for _, fm := range mapping.FieldMappings {
		value, err := pathutil.Get(input, fm.SourceField)
		if err != nil {
			if _, bad := err.(*pathutil.InvalidPathError); bad {
				return nil, err
			}
			// Not found: default, required failure, or silent skip.
			if fm.HasDefault || fm.DefaultValue != nil {
				value = payload.Clone(fm.DefaultValue)
			} else if fm.Required {
				return nil, &MissingRequiredFieldError{SourceField: fm.SourceField, TargetField: fm.TargetField}
			} else {
				continue
			}
		} else {
			value = payload.Clone(value)
		}

		if fm.Transform != nil {
			value, err = p.applyFieldTransform(value, fm.Transform)
			if err != nil {
				return nil, err
			}
		}

		if err := pathutil.Set(out, fm.TargetField, value); err != nil {
			return nil, err
		}
	}

	// Statics are written in sorted key order so collisions among statics
	// themselves resolve deterministically.
	keys := make([]string, 0, len(mapping.StaticValues))
	for k := range mapping.StaticValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := p.resolveStaticValue(mapping.StaticValues[k], ctx)
		if err != nil {
			return nil, err
		}
		if err := pathutil.Set(out, k, v); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// resolveStaticValue interpolates {{context_var}} placeholders in string
// statics from the execution context. Non-strings pass through cloned.
func (p *Processor) resolveStaticValue(v interface{}, ctx workflow.ExecutionContext) (interface{}, error) {
	s, ok := v.(string)
	if !ok || !strings.Contains(s, "{{") {
		return payload.Clone(v), nil
	}
	return p.renderText(s, ctx.Vars())
}

// applyFieldTransform runs a FUNCTION or CONDITION transform on a resolved
// value.
func (p *Processor) applyFieldTransform(value interface{}, ft *workflow.FieldTransform) (interface{}, error) {
	switch ft.Type {
	case workflow.TransformTypeFunction:
		return p.transforms.Apply(ft.TransformValue, value, ft.Options)
	case workflow.TransformTypeCondition:
		return p.evalCondition(ft.TransformValue, value)
	default:
		return nil, &transform.TransformError{Name: string(ft.Type), Reason: "unknown transform type"}
	}
}

// evalCondition substitutes the resolved value for {{value}} and evaluates
// the restricted expression grammar. The value is bound as an environment
// variable rather than spliced in as text, so string values need no quoting
// gymnastics and the expression stays auditable.
func (p *Processor) evalCondition(condition string, value interface{}) (interface{}, error) {
	rewritten := strings.ReplaceAll(condition, "{{value}}", "value")
	rewritten = strings.ReplaceAll(rewritten, "{{ value }}", "value")
	out, err := expr.Eval(rewritten, expr.Env{"value": value})
	if err != nil {
		return nil, &transform.TransformError{Name: "condition", Reason: fmt.Sprintf("evaluating %q", condition), Err: err}
	}
	return out, nil
}
