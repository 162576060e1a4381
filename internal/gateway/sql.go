package gateway

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func quoteIdent(name string) (string, error) {
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

func validOp(op Op) bool {
	switch op {
	case Eq, Neq, Gt, Gte, Lt, Lte:
		return true
	}
	return false
}

// whereClause renders filters against alias t, numbering placeholders from
// len(args)+1.
func whereClause(filters []Filter, args []any) (string, []any, error) {
	if len(filters) == 0 {
		return "", args, nil
	}
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		col, err := quoteIdent(f.Column)
		if err != nil {
			return "", nil, err
		}
		if !validOp(f.Op) {
			return "", nil, fmt.Errorf("unsupported operator %q", f.Op)
		}
		args = append(args, f.Value)
		parts = append(parts, fmt.Sprintf("t.%s %s $%d", col, f.Op, len(args)))
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

func buildSelect(table string, filters []Filter, order *Order) (string, []any, error) {
	tbl, err := quoteIdent(table)
	if err != nil {
		return "", nil, err
	}
	where, args, err := whereClause(filters, nil)
	if err != nil {
		return "", nil, err
	}
	q := fmt.Sprintf("SELECT row_to_json(t)::text FROM %s t%s", tbl, where)
	if order != nil {
		col, err := quoteIdent(order.Column)
		if err != nil {
			return "", nil, err
		}
		dir := "DESC"
		if order.Ascending {
			dir = "ASC"
		}
		q += fmt.Sprintf(" ORDER BY t.%s %s", col, dir)
	}
	return q, args, nil
}

func buildAggregate(table string, filters []Filter, agg Aggregation) (string, []any, error) {
	tbl, err := quoteIdent(table)
	if err != nil {
		return "", nil, err
	}
	var expr string
	switch agg.Mode {
	case Count:
		expr = "count(*)::float8"
	case Sum:
		col, err := quoteIdent(agg.Column)
		if err != nil {
			return "", nil, err
		}
		expr = fmt.Sprintf("COALESCE(sum(t.%s), 0)::float8", col)
	default:
		return "", nil, fmt.Errorf("unsupported aggregation mode %d", agg.Mode)
	}
	where, args, err := whereClause(filters, nil)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT %s FROM %s t%s", expr, tbl, where), args, nil
}

// buildCall uses named argument notation so callers pass a map.
func buildCall(fn string, args map[string]any) (string, []any, error) {
	name, err := quoteIdent(fn)
	if err != nil {
		return "", nil, err
	}
	keys := sortedKeys(args)
	params := make([]string, 0, len(keys))
	vals := make([]any, 0, len(keys))
	for _, k := range keys {
		col, err := quoteIdent(k)
		if err != nil {
			return "", nil, err
		}
		vals = append(vals, args[k])
		params = append(params, fmt.Sprintf("%s => $%d", col, len(vals)))
	}
	return fmt.Sprintf("SELECT row_to_json(t)::text FROM %s(%s) t", name, strings.Join(params, ", ")), vals, nil
}

func buildMutation(table string, op MutationOp, payload map[string]any, filters []Filter) (string, []any, error) {
	tbl, err := quoteIdent(table)
	if err != nil {
		return "", nil, err
	}
	const returning = " RETURNING row_to_json(t)::text"

	switch op {
	case Insert:
		if len(payload) == 0 {
			return "", nil, ErrEmptyPayload
		}
		keys := sortedKeys(payload)
		cols := make([]string, 0, len(keys))
		marks := make([]string, 0, len(keys))
		args := make([]any, 0, len(keys))
		for _, k := range keys {
			col, err := quoteIdent(k)
			if err != nil {
				return "", nil, err
			}
			args = append(args, payload[k])
			cols = append(cols, col)
			marks = append(marks, fmt.Sprintf("$%d", len(args)))
		}
		return fmt.Sprintf("INSERT INTO %s AS t (%s) VALUES (%s)%s",
			tbl, strings.Join(cols, ", "), strings.Join(marks, ", "), returning), args, nil

	case Update:
		if len(payload) == 0 {
			return "", nil, ErrEmptyPayload
		}
		if len(filters) == 0 {
			return "", nil, ErrUnfilteredMutation
		}
		keys := sortedKeys(payload)
		sets := make([]string, 0, len(keys))
		args := make([]any, 0, len(keys)+len(filters))
		for _, k := range keys {
			col, err := quoteIdent(k)
			if err != nil {
				return "", nil, err
			}
			args = append(args, payload[k])
			sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
		}
		where, args, err := whereClause(filters, args)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("UPDATE %s AS t SET %s%s%s", tbl, strings.Join(sets, ", "), where, returning), args, nil

	case Delete:
		if len(filters) == 0 {
			return "", nil, ErrUnfilteredMutation
		}
		where, args, err := whereClause(filters, nil)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("DELETE FROM %s AS t%s%s", tbl, where, returning), args, nil

	case Upsert:
		if len(payload) == 0 {
			return "", nil, ErrEmptyPayload
		}
		if len(filters) == 0 {
			return "", nil, ErrUnfilteredMutation
		}
		row := make(map[string]any, len(payload)+len(filters))
		for k, v := range payload {
			row[k] = v
		}
		conflict := make([]string, 0, len(filters))
		for _, f := range filters {
			if f.Op != Eq {
				return "", nil, fmt.Errorf("upsert conflict filter on %q must be equality", f.Column)
			}
			col, err := quoteIdent(f.Column)
			if err != nil {
				return "", nil, err
			}
			row[f.Column] = f.Value
			conflict = append(conflict, col)
		}
		keys := sortedKeys(row)
		cols := make([]string, 0, len(keys))
		marks := make([]string, 0, len(keys))
		args := make([]any, 0, len(keys))
		for _, k := range keys {
			col, err := quoteIdent(k)
			if err != nil {
				return "", nil, err
			}
			args = append(args, row[k])
			cols = append(cols, col)
			marks = append(marks, fmt.Sprintf("$%d", len(args)))
		}
		sets := make([]string, 0, len(payload))
		for _, k := range sortedKeys(payload) {
			col, _ := quoteIdent(k)
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
		return fmt.Sprintf("INSERT INTO %s AS t (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s%s",
			tbl, strings.Join(cols, ", "), strings.Join(marks, ", "),
			strings.Join(conflict, ", "), strings.Join(sets, ", "), returning), args, nil
	}
	return "", nil, fmt.Errorf("unsupported mutation %d", op)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
