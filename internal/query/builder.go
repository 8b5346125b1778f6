package query

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	ErrUnknownColumn = errors.New("unknown column")
	ErrInvalidValue  = errors.New("invalid filter value")
)

// Dialect selects the placeholder syntax of the target warehouse.
type Dialect int

const (
	// Question binds with ? (ClickHouse, SQLite).
	Question Dialect = iota
	// Dollar binds with $1, $2, ... (Postgres).
	Dollar
)

func (d Dialect) placeholder(n int) string {
	if d == Dollar {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Op is a comparison operator allowed in a bound predicate.
type Op string

const (
	Eq  Op = "="
	Ne  Op = "!="
	Gt  Op = ">"
	Gte Op = ">="
	Lt  Op = "<"
	Lte Op = "<="
)

func (o Op) valid() bool {
	switch o {
	case Eq, Ne, Gt, Gte, Lt, Lte:
		return true
	}
	return false
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidIdentifier reports whether s is a plain (optionally qualified) SQL identifier.
func ValidIdentifier(s string) bool {
	return identRe.MatchString(s)
}

// Filter is one named selection. An empty Values slice means "no restriction".
type Filter struct {
	Column string
	Values []string
}

func (f Filter) Active() bool {
	return len(f.Values) > 0
}

type predicate struct {
	column string
	op     Op
	value  any
	isNull bool
}

// Select composes a read-only statement over one fixed view. Column
// expressions, ORDER BY and GROUP BY are trusted text written in code;
// every user-supplied value is bound.
type Select struct {
	dialect    Dialect
	source     string
	columns    []string
	filterable map[string]bool
	filters    []Filter
	preds      []predicate
	anyOf      []Range
	groupBy    []string
	orderBy    []string
	limit      int
	distinct   bool
	err        error
}

func From(source string, d Dialect) *Select {
	return &Select{dialect: d, source: source}
}

func (s *Select) Columns(cols ...string) *Select {
	s.columns = append(s.columns, cols...)
	return s
}

func (s *Select) Distinct() *Select {
	s.distinct = true
	return s
}

// Filterable restricts the columns that In, Where and AnyOf may reference.
func (s *Select) Filterable(cols ...string) *Select {
	if s.filterable == nil {
		s.filterable = make(map[string]bool, len(cols))
	}
	for _, c := range cols {
		s.filterable[strings.ToLower(c)] = true
	}
	return s
}

// In adds "column IN (...)" for a non-empty selection. Empty selections add nothing.
func (s *Select) In(column string, values []string) *Select {
	if len(values) == 0 || !s.checkColumn(column) {
		return s
	}
	for _, v := range values {
		if err := checkValue(v); err != nil {
			s.fail(fmt.Errorf("%w for %s: %v", ErrInvalidValue, column, err))
			return s
		}
	}
	s.filters = append(s.filters, Filter{Column: column, Values: append([]string(nil), values...)})
	return s
}

// Apply adds every active filter with In.
func (s *Select) Apply(filters ...Filter) *Select {
	for _, f := range filters {
		s.In(f.Column, f.Values)
	}
	return s
}

func (s *Select) Where(column string, op Op, value any) *Select {
	if !s.checkColumn(column) {
		return s
	}
	if !op.valid() {
		s.fail(fmt.Errorf("unsupported operator %q", op))
		return s
	}
	if str, ok := value.(string); ok {
		if err := checkValue(str); err != nil {
			s.fail(fmt.Errorf("%w for %s: %v", ErrInvalidValue, column, err))
			return s
		}
	}
	s.preds = append(s.preds, predicate{column: column, op: op, value: value})
	return s
}

func (s *Select) WhereNotNull(column string) *Select {
	if s.checkColumn(column) {
		s.preds = append(s.preds, predicate{column: column, isNull: true})
	}
	return s
}

// AnyOf adds one parenthesized OR group of ranges. No ranges adds nothing.
func (s *Select) AnyOf(ranges ...Range) *Select {
	for _, r := range ranges {
		if !s.checkColumn(r.Column) {
			return s
		}
	}
	s.anyOf = append(s.anyOf, ranges...)
	return s
}

func (s *Select) GroupBy(exprs ...string) *Select {
	s.groupBy = append(s.groupBy, exprs...)
	return s
}

func (s *Select) OrderBy(exprs ...string) *Select {
	s.orderBy = append(s.orderBy, exprs...)
	return s
}

func (s *Select) Limit(n int) *Select {
	s.limit = n
	return s
}

// Build renders the statement and its bound arguments in placeholder order.
func (s *Select) Build() (string, []any, error) {
	if s.err != nil {
		return "", nil, s.err
	}
	if s.source == "" {
		return "", nil, errors.New("query has no source view")
	}

	var b strings.Builder
	var args []any
	bind := func(v any) string {
		args = append(args, v)
		return s.dialect.placeholder(len(args))
	}

	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.columns) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(s.columns, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(s.source)

	var where []string
	for _, f := range s.filters {
		marks := make([]string, len(f.Values))
		for i, v := range f.Values {
			marks[i] = bind(v)
		}
		where = append(where, fmt.Sprintf("%s IN (%s)", f.Column, strings.Join(marks, ", ")))
	}
	for _, p := range s.preds {
		if p.isNull {
			where = append(where, p.column+" IS NOT NULL")
			continue
		}
		where = append(where, fmt.Sprintf("%s %s %s", p.column, p.op, bind(p.value)))
	}
	if len(s.anyOf) > 0 {
		alts := make([]string, 0, len(s.anyOf))
		for _, r := range s.anyOf {
			alts = append(alts, "("+r.render(bind)+")")
		}
		where = append(where, "("+strings.Join(alts, " OR ")+")")
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if len(s.groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(s.groupBy, ", "))
	}
	if len(s.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(s.orderBy, ", "))
	}
	if s.limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(s.limit))
	}
	return b.String(), args, nil
}

func (s *Select) checkColumn(column string) bool {
	if !ValidIdentifier(column) {
		s.fail(fmt.Errorf("%w: %q", ErrUnknownColumn, column))
		return false
	}
	if s.filterable != nil && !s.filterable[strings.ToLower(column)] {
		s.fail(fmt.Errorf("%w: %s is not filterable on %s", ErrUnknownColumn, column, s.source))
		return false
	}
	return true
}

func (s *Select) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// checkValue rejects values that can never be legitimate selections. Quote
// characters are allowed since values are bound, not interpolated.
func checkValue(v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New("empty value")
	}
	for _, r := range v {
		if r == 0 || (unicode.IsControl(r) && r != '\t') {
			return fmt.Errorf("control character %U", r)
		}
	}
	return nil
}
