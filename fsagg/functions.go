package fsagg

import (
	"github.com/dataloom-dev/fsadmin/fserrors"
	"github.com/dataloom-dev/fsadmin/fspath"
	"github.com/dataloom-dev/fsadmin/fsquery"
)

// New wraps a base query for aggregation.
func New(base fsquery.Query) AggregationQuery {
	return AggregationQuery{Base: base}
}

func (a AggregationQuery) add(agg Aggregation) AggregationQuery {
	if a.buildErr != nil {
		return a
	}
	if len(a.Aggregations) >= maxAggregations {
		a.buildErr = fserrors.New(fserrors.CodeInvalidArgument, "at most %d aggregations are allowed per request", maxAggregations)
		return a
	}
	na := a
	na.Aggregations = append(append([]Aggregation(nil), a.Aggregations...), agg)
	return na
}

// WithCount adds a count() aggregation.
func (a AggregationQuery) WithCount() AggregationQuery {
	return a.add(Aggregation{Kind: Count, Alias: countAlias()})
}

// WithSum adds a sum(field) aggregation.
func (a AggregationQuery) WithSum(field fspath.Field) AggregationQuery {
	return a.add(Aggregation{Kind: Sum, Field: field, Alias: sumAlias(field)})
}

// WithAverage adds an avg(field) aggregation.
func (a AggregationQuery) WithAverage(field fspath.Field) AggregationQuery {
	return a.add(Aggregation{Kind: Average, Field: field, Alias: avgAlias(field)})
}

// Err returns the first build-time validation error, if any.
func (a AggregationQuery) Err() error { return a.buildErr }
