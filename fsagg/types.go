// Package fsagg implements the aggregation query model and streamed reader
//: count/sum/avg aliasing and consumption of RunAggregationQuery
// responses, reusing the same transaction-context trio as fsquery.
package fsagg

import (
	"github.com/dataloom-dev/fsadmin/fspath"
	"github.com/dataloom-dev/fsadmin/fsquery"
)

// Kind is one of the three supported aggregation functions.
type Kind int

const (
	Count Kind = iota
	Sum
	Average
)

const maxAggregations = 3

// Aggregation is one count()/sum(f)/avg(f) clause with its wire alias.
type Aggregation struct {
	Kind  Kind
	Field fspath.Field
	Alias string
}

func countAlias() string { return "count" }

func sumAlias(f fspath.Field) string  { return "sum_" + f.String() }
func avgAlias(f fspath.Field) string  { return "avg_" + f.String() }

// AggregationQuery pairs a base query with up to three aggregations, the
// wire API's per-request limit.
type AggregationQuery struct {
	Base         fsquery.Query
	Aggregations []Aggregation
	buildErr     error
}
