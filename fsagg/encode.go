package fsagg

import (
	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
)

func encodeAggregation(agg Aggregation) *pb.StructuredAggregationQuery_Aggregation {
	out := &pb.StructuredAggregationQuery_Aggregation{Alias: agg.Alias}
	switch agg.Kind {
	case Count:
		out.Operator = &pb.StructuredAggregationQuery_Aggregation_Count_{
			Count: &pb.StructuredAggregationQuery_Aggregation_Count{},
		}
	case Sum:
		out.Operator = &pb.StructuredAggregationQuery_Aggregation_Sum_{
			Sum: &pb.StructuredAggregationQuery_Aggregation_Sum{
				Field: &pb.StructuredQuery_FieldReference{FieldPath: agg.Field.String()},
			},
		}
	case Average:
		out.Operator = &pb.StructuredAggregationQuery_Aggregation_Avg_{
			Avg: &pb.StructuredAggregationQuery_Aggregation_Avg{
				Field: &pb.StructuredQuery_FieldReference{FieldPath: agg.Field.String()},
			},
		}
	}
	return out
}

// ToStructuredAggregationQuery renders the wire form.
func (a AggregationQuery) ToStructuredAggregationQuery() (*pb.StructuredAggregationQuery, error) {
	if a.buildErr != nil {
		return nil, a.buildErr
	}
	sq, err := a.Base.ToStructuredQuery()
	if err != nil {
		return nil, err
	}
	aggs := make([]*pb.StructuredAggregationQuery_Aggregation, len(a.Aggregations))
	for i, agg := range a.Aggregations {
		aggs[i] = encodeAggregation(agg)
	}
	return &pb.StructuredAggregationQuery{
		QueryType: &pb.StructuredAggregationQuery_StructuredQuery{StructuredQuery: sq},
		Aggregations: aggs,
	}, nil
}
