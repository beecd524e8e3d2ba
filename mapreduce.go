package mongo

import (
	"context"
	"fmt"

	"github.com/burdmongo/wiredriver/bson"
)

// MapReduceInfo describes a mapreduce command. Out controls where results
// land: nil requests inline output; otherwise it is sent as-is, e.g.
// bson.M{"replace": "results"} or bson.M{"merge": "results", "db":
// "other"}.
type MapReduceInfo struct {
	Map      bson.Code
	Reduce   bson.Code
	Finalize bson.Code
	Out      interface{}
	Query    interface{}
	Sort     bson.D
	Limit    int32
	KeepTemp bool
	Scope    interface{}
	Verbose  bool
}

// MapReduceOutput is either a set of inline results or a pointer to the
// collection the server wrote results to.
type MapReduceOutput struct {
	Inline     []bson.M
	DB         string
	Collection string
}

// MapReduce runs a map-reduce job over collection. Cleaning up a
// non-inline job's output collection, once the caller is done with it, is
// the caller's responsibility: nothing here does it automatically.
func (s *Session) MapReduce(ctx context.Context, collection string, info MapReduceInfo) (*MapReduceOutput, error) {
	cmd := bson.D{{"mapreduce", collection}}
	cmd = cmd.Append("map", info.Map)
	cmd = cmd.Append("reduce", info.Reduce)
	if info.Out != nil {
		cmd = cmd.Append("out", info.Out)
	} else {
		cmd = cmd.Append("out", bson.M{"inline": 1})
	}
	if info.Query != nil {
		cmd = cmd.Append("query", info.Query)
	}
	if info.Sort != nil {
		cmd = cmd.Append("sort", info.Sort)
	}
	if info.Limit != 0 {
		cmd = cmd.Append("limit", info.Limit)
	}
	if info.Finalize != "" {
		cmd = cmd.Append("finalize", info.Finalize)
	}
	if info.Scope != nil {
		cmd = cmd.Append("scope", info.Scope)
	}
	if info.KeepTemp {
		cmd = cmd.Append("keeptemp", true)
	}
	if info.Verbose {
		cmd = cmd.Append("verbose", true)
	}

	reply, err := s.runCommand(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := checkCommandReply(reply); err != nil {
		return nil, err
	}

	var resp struct {
		Results []bson.M    `bson:"results"`
		Result  interface{} `bson:"result"`
	}
	if err := bson.Unmarshal(reply.Documents[0], &resp); err != nil {
		return nil, err
	}

	if resp.Results != nil {
		return &MapReduceOutput{Inline: resp.Results}, nil
	}
	switch r := resp.Result.(type) {
	case string:
		return &MapReduceOutput{DB: s.db, Collection: r}, nil
	case bson.M:
		db, _ := r["db"].(string)
		coll, _ := r["collection"].(string)
		if db == "" {
			db = s.db
		}
		return &MapReduceOutput{DB: db, Collection: coll}, nil
	default:
		// A mapreduce reply always carries either "results" (inline) or
		// "result" (a pointer to the output collection); arriving at
		// neither means client and server disagree about the protocol
		// itself, not a condition the caller can recover from.
		panic("mongo: mapreduce reply missing results/result")
	}
}

// Cursor opens a cursor over a non-inline map-reduce's output collection.
// Map-reduce is itself a command rather than a query, but its output
// usually needs to be read back as one, so this bridges the two the same
// way the rest of the command facade sits above the query builder.
func (r *MapReduceOutput) Cursor(ctx context.Context, s *Session, selector interface{}) (*Cursor, error) {
	if r.Collection == "" {
		return nil, fmt.Errorf("mongo: map-reduce output was inline; there is no collection to open a cursor on")
	}
	return s.UseDB(r.DB).Find(r.Collection, selector).Cursor(ctx)
}
