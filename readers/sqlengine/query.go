package sqlengine

import (
	"errors"
	"math"
	"slices"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/dynamic-readers-go/readers"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/qs"
)

const (
	linkAlias      = "__readers_link"
	rowNumberAlias = "__readers_row"
	boundedAlias   = "__readers_bounded"
	countAlias     = "__readers_count"
)

type selectedColumn struct {
	field  string
	column string
}

// link restricts a prefetch statement to the rows belonging to a set of parent keys
// and selects the matching column under linkAlias.
type link struct {
	column exp.IdentifierExpression
	keys   []any
	join   *readers.JoinTable
}

type statement struct {
	sql         string
	columns     []selectedColumn
	annotations []string
	linked      bool
}

func qualified(table, column string) exp.IdentifierExpression {
	return goqu.T(table).Col(column)
}

func (e Engine) selectedColumns(plan qs.QueryPlan) ([]selectedColumn, error) {
	model := plan.Model()

	names, restricted := plan.Fields()
	if !restricted {
		names = names[:0]
		for _, field := range model.Fields() {
			names = append(names, field.Name)
		}
	}

	names = append([]string{model.PrimaryKey()}, names...)

	columns := make([]selectedColumn, 0, len(names))
	seen := make(map[string]bool, len(names))

	for _, name := range names {
		field, ok := model.Field(name)
		if !ok {
			_, err := model.Column(name)
			return nil, err
		}

		if seen[field.Name] {
			continue
		}

		seen[field.Name] = true
		columns = append(columns, selectedColumn{field: field.Name, column: field.Column})
	}

	return columns, nil
}

func (e Engine) orderings(plan qs.QueryPlan) ([]exp.OrderedExpression, error) {
	model := plan.Model()
	orderings := plan.Orderings()

	if !slices.ContainsFunc(orderings, func(o qs.Ordering) bool { return model.ResolveFieldName(o.Field) == model.PrimaryKey() }) {
		orderings = append(orderings, qs.Ordering{Field: model.PrimaryKey()})
	}

	ordered := make([]exp.OrderedExpression, 0, len(orderings))
	for _, o := range orderings {
		column, err := model.Column(o.Field)
		if err != nil {
			return nil, err
		}

		if o.Desc {
			ordered = append(ordered, qualified(model.Table(), column).Desc())
		} else {
			ordered = append(ordered, qualified(model.Table(), column).Asc())
		}
	}

	return ordered, nil
}

func (e Engine) countSubquery(model *readers.Model, annotation qs.CountAnnotation) (*goqu.SelectDataset, error) {
	rel := annotation.Relationship
	related := rel.RelatedModel

	pkColumn, err := model.Column(model.PrimaryKey())
	if err != nil {
		return nil, err
	}

	outerPK := qualified(model.Table(), pkColumn)

	var (
		from    exp.Expression
		counted exp.IdentifierExpression
		where   exp.Expression
	)

	switch rel.Kind {
	case readers.ForwardSingle:
		fkColumn, err := model.Column(rel.Field)
		if err != nil {
			return nil, err
		}

		relatedPK, err := related.Column(related.PrimaryKey())
		if err != nil {
			return nil, err
		}

		from = goqu.T(related.Table()).As(countAlias)
		counted = goqu.T(countAlias).Col(relatedPK)
		where = counted.Eq(qualified(model.Table(), fkColumn))

	case readers.ReverseSingle, readers.ReverseMany:
		backColumn, err := related.Column(rel.RelatedField)
		if err != nil {
			return nil, err
		}

		relatedPK, err := related.Column(related.PrimaryKey())
		if err != nil {
			return nil, err
		}

		from = goqu.T(related.Table()).As(countAlias)
		counted = goqu.T(countAlias).Col(relatedPK)
		where = goqu.T(countAlias).Col(backColumn).Eq(outerPK)

	default:
		from = goqu.T(rel.Join.Table).As(countAlias)
		counted = goqu.T(countAlias).Col(rel.Join.TargetColumn)
		where = goqu.T(countAlias).Col(rel.Join.SourceColumn).Eq(outerPK)
	}

	var aggregate exp.SQLFunctionExpression
	if annotation.Distinct {
		aggregate = goqu.COUNT(goqu.DISTINCT(counted))
	} else {
		aggregate = goqu.COUNT(counted)
	}

	return e.dialect.From(from).Select(aggregate).Where(where), nil
}

// buildStatement renders the SELECT for plan. With a link the statement is restricted to the
// parent keys and, when the plan is bounded, windowed per parent with ROW_NUMBER.
func (e Engine) buildStatement(plan qs.QueryPlan, l *link) (statement, error) {
	model := plan.Model()
	table := model.Table()

	columns, err := e.selectedColumns(plan)
	if err != nil {
		return statement{}, errors.Join(readers.ErrBuildingQueryFailed, err)
	}

	selects := make([]any, 0, len(columns)+2)
	for _, c := range columns {
		selects = append(selects, qualified(table, c.column).As(c.field))
	}

	annotations := plan.Annotations()
	aliases := make([]string, 0, len(annotations))
	for _, annotation := range annotations {
		subquery, err := e.countSubquery(model, annotation)
		if err != nil {
			return statement{}, errors.Join(readers.ErrBuildingQueryFailed, err)
		}

		selects = append(selects, subquery.As(annotation.Alias))
		aliases = append(aliases, annotation.Alias)
	}

	if l != nil {
		selects = append(selects, l.column.As(linkAlias))
	}

	ds := e.dialect.From(goqu.T(table)).Select(selects...)

	if l != nil && l.join != nil {
		pkColumn, _ := model.Column(model.PrimaryKey())
		ds = ds.InnerJoin(
			goqu.T(l.join.Table),
			goqu.On(goqu.T(l.join.Table).Col(l.join.TargetColumn).Eq(qualified(table, pkColumn))),
		)
	}

	if filters := plan.Filters(); len(filters) > 0 {
		ds = ds.Where(filters...)
	}

	if l != nil {
		ds = ds.Where(l.column.In(l.keys))
	}

	if plan.IsDistinct() {
		ds = ds.Distinct()
	}

	ordered, err := e.orderings(plan)
	if err != nil {
		return statement{}, errors.Join(readers.ErrBuildingQueryFailed, err)
	}

	bounds, bounded := plan.Bounds()

	switch {
	case bounded && l != nil:
		ds = e.windowed(ds, columns, aliases, l, ordered, bounds)

	case bounded:
		ds = ds.Order(ordered...).Offset(bounds.Offset)
		switch {
		case bounds.Limit > 0:
			ds = ds.Limit(bounds.Limit)
		case bounds.Offset > 0 && e.dialectName == DialectSQLite:
			// SQLite only accepts OFFSET after a LIMIT
			ds = ds.Limit(math.MaxInt64)
		}

	default:
		ds = ds.Order(ordered...)
	}

	sqlQuery, _, err := ds.ToSQL()
	if err != nil {
		return statement{}, errors.Join(readers.ErrBuildingQueryFailed, err)
	}

	return statement{sql: sqlQuery, columns: columns, annotations: aliases, linked: l != nil}, nil
}

// windowed numbers the rows of each parent and keeps the rows inside bounds.
func (e Engine) windowed(
	inner *goqu.SelectDataset,
	columns []selectedColumn,
	aliases []string,
	l *link,
	ordered []exp.OrderedExpression,
	bounds qs.Bounds,
) *goqu.SelectDataset {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ordered)), ", ")
	args := make([]any, 0, len(ordered)+1)
	args = append(args, l.column)
	for _, o := range ordered {
		args = append(args, o)
	}

	rowNumber := goqu.L("ROW_NUMBER() OVER (PARTITION BY ? ORDER BY "+placeholders+")", args...).As(rowNumberAlias)
	inner = inner.SelectAppend(rowNumber)

	outerSelects := make([]any, 0, len(columns)+len(aliases)+1)
	for _, c := range columns {
		outerSelects = append(outerSelects, goqu.T(boundedAlias).Col(c.field))
	}

	for _, alias := range aliases {
		outerSelects = append(outerSelects, goqu.T(boundedAlias).Col(alias))
	}

	outerSelects = append(outerSelects, goqu.T(boundedAlias).Col(linkAlias))

	rowColumn := goqu.T(boundedAlias).Col(rowNumberAlias)
	window := []exp.Expression{rowColumn.Gt(bounds.Offset)}
	if bounds.Limit > 0 {
		window = append(window, rowColumn.Lte(bounds.Offset+bounds.Limit))
	}

	return e.dialect.From(inner.As(boundedAlias)).
		Select(outerSelects...).
		Where(window...).
		Order(goqu.T(boundedAlias).Col(linkAlias).Asc(), rowColumn.Asc())
}
