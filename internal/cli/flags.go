package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bulkproc/bulkproc/internal/entity"
	"github.com/bulkproc/bulkproc/internal/selector"
)

// ParseIDList parses a comma-separated ID list ("12,56") into IDs.
// Empty elements are ignored; a non-numeric element is an error.
func ParseIDList(s string) ([]entity.ID, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var ids []entity.ID
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ID %q: must be numeric", part)
		}
		ids = append(ids, entity.ID(n))
	}
	return ids, nil
}

// ParseList parses a comma-separated list of names, dropping empty
// elements.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseFieldConditions parses pipe-delimited condition tuples into
// field conditions, preserving order.
//
// Two forms are accepted:
//
//	field|operator|value          e.g. "status|=|1"
//	field|column|value|operator   e.g. "field_rating|value|4|>="
//
// The four-part form addresses a column of a multi-column field; the
// column is folded into the field name as "field.column". An empty
// column addresses the field directly.
func ParseFieldConditions(tuples []string) ([]selector.FieldCondition, error) {
	var conds []selector.FieldCondition
	for _, tuple := range tuples {
		tuple = strings.TrimSpace(tuple)
		if tuple == "" {
			continue
		}

		parts := strings.Split(tuple, "|")
		var cond selector.FieldCondition
		switch len(parts) {
		case 3:
			cond = selector.FieldCondition{Field: parts[0], Operator: parts[1], Value: parts[2]}
		case 4:
			field := parts[0]
			if parts[1] != "" {
				field = parts[0] + "." + parts[1]
			}
			cond = selector.FieldCondition{Field: field, Operator: parts[3], Value: parts[2]}
		default:
			return nil, fmt.Errorf("invalid field condition %q: want field|operator|value or field|column|value|operator", tuple)
		}

		if cond.Field == "" || cond.Operator == "" {
			return nil, fmt.Errorf("invalid field condition %q: field and operator must not be empty", tuple)
		}
		conds = append(conds, cond)
	}
	return conds, nil
}
