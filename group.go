package mongo

import (
	"context"

	"github.com/burdmongo/wiredriver/bson"
)

// GroupInfo describes a group command. Key selects the grouping fields
// and is mutually exclusive with KeyFunc, a $keyf JavaScript key
// function. Reduce and Initial define the aggregation; Cond restricts
// which documents participate; Finalize optionally post-processes each
// group after Reduce has run.
type GroupInfo struct {
	Key      bson.D
	KeyFunc  bson.Code
	Initial  interface{}
	Reduce   bson.Code
	Cond     interface{}
	Finalize bson.Code
}

// Group runs a group command over collection and returns its groups.
func (s *Session) Group(ctx context.Context, collection string, info GroupInfo) ([]bson.M, error) {
	group := bson.D{}
	if info.Finalize != "" {
		group = group.Append("finalize", info.Finalize)
	}
	group = group.Append("ns", collection)
	if info.KeyFunc != "" {
		group = group.Append("$keyf", info.KeyFunc)
	} else {
		group = group.Append("key", info.Key)
	}
	group = group.Append("$reduce", info.Reduce)
	group = group.Append("initial", info.Initial)
	if info.Cond != nil {
		group = group.Append("cond", info.Cond)
	}

	var resp struct {
		Retval []bson.M `bson:"retval"`
	}
	if err := s.Run(ctx, bson.D{{"group", group}}, &resp); err != nil {
		return nil, err
	}
	return resp.Retval, nil
}
