package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/gridmake/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// isExprDefined checks if an HCL expression was actually present in the source
// code. The decoder populates omitted optional attributes with zero-width
// placeholder expressions, so a nil check is not enough.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	defined := r.End.Byte > r.Start.Byte
	ctxlog.FromContext(ctx).Debug("Checking if HCL attribute was explicitly defined.",
		"attribute", attrName,
		"hcl_range", r.String(),
		"is_defined", defined,
	)
	return defined
}

// pathsFromValue flattens a string, or an arbitrarily nested list, tuple or
// set of strings, into path templates. Numbers and bools are converted to
// their string form.
func pathsFromValue(val cty.Value) ([]any, error) {
	if val.IsNull() {
		return nil, nil
	}
	if !val.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known at load time")
	}

	ty := val.Type()
	switch {
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		var out []any
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			nested, err := pathsFromValue(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		}
		return out, nil
	case ty.IsPrimitiveType():
		s, err := convert.Convert(val, cty.String)
		if err != nil {
			return nil, err
		}
		return []any{s.AsString()}, nil
	default:
		return nil, fmt.Errorf("must be a string or a list of strings, got %s", ty.FriendlyName())
	}
}
