package sqlengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/dynamic-readers-go/readers"
	"github.com/AntonStoeckl/dynamic-readers-go/readers/qs"
)

// fetchRun carries the state of one Fetch call.
type fetchRun struct {
	engine  Engine
	fetchID string
	queries int
}

type scannedRow struct {
	instance *readers.Instance
	link     any
}

func (r *fetchRun) fetchRoot(ctx context.Context, plan qs.QueryPlan) ([]*readers.Instance, error) {
	if err := validatePlan(plan); err != nil {
		r.engine.logError(ctx, logMsgBuildSelectQueryFailed, err, logAttrFetchID, r.fetchID)
		return nil, err
	}

	stmt, err := r.engine.buildStatement(plan, nil)
	if err != nil {
		r.engine.logError(ctx, logMsgBuildSelectQueryFailed, err, logAttrFetchID, r.fetchID, logAttrModel, plan.Model().Name())
		return nil, err
	}

	rows, err := r.execute(ctx, stmt, plan.Model(), plan.Model().Name())
	if err != nil {
		return nil, err
	}

	instances := make([]*readers.Instance, 0, len(rows))
	for _, row := range rows {
		instances = append(instances, row.instance)
	}

	if err = r.prefetchAll(ctx, plan, instances, plan.Model().Name()); err != nil {
		return nil, err
	}

	return instances, nil
}

func (r *fetchRun) prefetchAll(ctx context.Context, plan qs.QueryPlan, parents []*readers.Instance, path string) error {
	for _, prefetch := range plan.Prefetches() {
		if err := r.prefetch(ctx, prefetch, parents, path+"."+prefetch.ToAttr); err != nil {
			return err
		}
	}

	return nil
}

// prefetch loads the related rows of all parents with one statement per key batch,
// attaches them under the prefetch's attribute and descends into the related plan.
func (r *fetchRun) prefetch(ctx context.Context, prefetch qs.Prefetch, parents []*readers.Instance, path string) error {
	rel := prefetch.Relationship

	parentKeys := make([]any, len(parents))
	keys := make([]any, 0, len(parents))
	seen := make(map[string]bool, len(parents))

	for i, parent := range parents {
		key, err := parentKey(rel, parent)
		if err != nil {
			r.engine.logError(ctx, logMsgStitchingFailed, err, logAttrFetchID, r.fetchID, logAttrPath, path)
			return errors.Join(readers.ErrStitchingFailed, err)
		}

		parentKeys[i] = key
		if key == nil {
			continue
		}

		if k := keyString(key); !seen[k] {
			seen[k] = true
			keys = append(keys, key)
		}
	}

	grouped := make(map[string][]*readers.Instance)
	var children []*readers.Instance

	for _, batch := range r.engine.batches(keys) {
		stmt, err := r.engine.buildStatement(prefetch.Plan, linkFor(rel, batch))
		if err != nil {
			r.engine.logError(ctx, logMsgBuildSelectQueryFailed, err, logAttrFetchID, r.fetchID, logAttrPath, path)
			return err
		}

		rows, err := r.execute(ctx, stmt, rel.RelatedModel, path)
		if err != nil {
			return err
		}

		for _, row := range rows {
			k := keyString(row.link)
			grouped[k] = append(grouped[k], row.instance)
			children = append(children, row.instance)
		}
	}

	for i, parent := range parents {
		var group []*readers.Instance
		if parentKeys[i] != nil {
			group = grouped[keyString(parentKeys[i])]
		}

		switch {
		case rel.ToMany():
			parent.SetRelated(prefetch.ToAttr, readers.CollectionRelated(group))
		case len(group) == 0:
			parent.SetRelated(prefetch.ToAttr, readers.AbsentRelated())
		default:
			parent.SetRelated(prefetch.ToAttr, readers.SingleRelated(group[0]))
		}
	}

	return r.prefetchAll(ctx, prefetch.Plan, children, path)
}

// execute runs one statement and turns its rows into instances of model.
func (r *fetchRun) execute(ctx context.Context, stmt statement, model *readers.Model, label string) ([]scannedRow, error) {
	start := time.Now()
	r.queries++

	rows, err := r.engine.db.Query(ctx, stmt.sql)
	if err != nil {
		r.engine.logError(ctx, logMsgDBQueryFailed, err, logAttrFetchID, r.fetchID, logAttrQuery, stmt.sql)
		r.engine.recordQueryError(ctx, errorTypeDatabaseQuery)
		return nil, errors.Join(readers.ErrQueryingFailed, err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.engine.logWarn(ctx, logMsgCloseRowsFailed, closeErr, logAttrFetchID, r.fetchID)
		}
	}()

	width := len(stmt.columns) + len(stmt.annotations)
	if stmt.linked {
		width++
	}

	var scanned []scannedRow

	for rows.Next() {
		holders := make([]any, width)
		dest := make([]any, width)
		for i := range holders {
			dest[i] = &holders[i]
		}

		if err = rows.Scan(dest...); err != nil {
			r.engine.logError(ctx, logMsgScanRowFailed, err, logAttrFetchID, r.fetchID, logAttrModel, model.Name())
			r.engine.recordQueryError(ctx, errorTypeRowScan)
			return nil, errors.Join(readers.ErrScanningDBRowFailed, err)
		}

		instance := readers.NewInstance(model)
		for i, column := range stmt.columns {
			instance.SetValue(column.field, normalize(holders[i]))
		}

		for i, alias := range stmt.annotations {
			instance.SetValue(alias, normalize(holders[len(stmt.columns)+i]))
		}

		row := scannedRow{instance: instance}
		if stmt.linked {
			row.link = normalize(holders[width-1])
		}

		scanned = append(scanned, row)
	}

	if err = rows.Err(); err != nil {
		r.engine.logError(ctx, logMsgDBQueryFailed, err, logAttrFetchID, r.fetchID, logAttrQuery, stmt.sql)
		r.engine.recordQueryError(ctx, errorTypeDatabaseQuery)
		return nil, errors.Join(readers.ErrQueryingFailed, err)
	}

	duration := time.Since(start)
	r.engine.logQueryWithDuration(ctx, stmt.sql, label, r.fetchID, duration)
	r.engine.recordQueryDuration(ctx, duration)

	return scanned, nil
}

// batches splits keys into IN lists of at most maxInClause keys. An empty key list yields no batch.
func (e Engine) batches(keys []any) [][]any {
	if len(keys) == 0 {
		return nil
	}

	if e.maxInClause <= 0 || len(keys) <= e.maxInClause {
		return [][]any{keys}
	}

	batches := make([][]any, 0, len(keys)/e.maxInClause+1)
	for start := 0; start < len(keys); start += e.maxInClause {
		end := min(start+e.maxInClause, len(keys))
		batches = append(batches, keys[start:end])
	}

	return batches
}

func linkFor(rel readers.RelationshipDescriptor, keys []any) *link {
	related := rel.RelatedModel

	switch rel.Kind {
	case readers.ForwardSingle:
		pkColumn, _ := related.Column(related.PrimaryKey())
		return &link{column: qualified(related.Table(), pkColumn), keys: keys}

	case readers.ReverseSingle, readers.ReverseMany:
		backColumn, _ := related.Column(rel.RelatedField)
		return &link{column: qualified(related.Table(), backColumn), keys: keys}

	default:
		join := rel.Join
		return &link{column: goqu.T(join.Table).Col(join.SourceColumn), keys: keys, join: &join}
	}
}

// parentKey returns the value the related rows of parent are linked by.
func parentKey(rel readers.RelationshipDescriptor, parent *readers.Instance) (any, error) {
	if rel.Kind == readers.ForwardSingle {
		return parent.Value(rel.Field)
	}

	return parent.PK()
}

// keyString makes keys of different driver types comparable, e.g. int64 from the parent row
// and int32 from the link column.
func keyString(key any) string {
	return fmt.Sprint(key)
}

func normalize(value any) any {
	if b, ok := value.([]byte); ok {
		return string(b)
	}

	return value
}
