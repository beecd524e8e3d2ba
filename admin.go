package mongo

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/burdmongo/wiredriver/bson"
)

// AllDatabases lists every database on the server.
func (s *Session) AllDatabases(ctx context.Context) ([]string, error) {
	var resp struct {
		Databases []struct {
			Name string `bson:"name"`
		} `bson:"databases"`
	}
	if err := s.UseDB("admin").Run1(ctx, "listDatabases", &resp); err != nil {
		return nil, err
	}
	names := make([]string, len(resp.Databases))
	for i, d := range resp.Databases {
		names[i] = d.Name
	}
	return names, nil
}

// AllCollections lists the collection names in the session's current
// database. Index namespaces and other system entries whose name
// contains "$" are excluded, with one exception: "local.oplog.$main" is a
// real collection, the replication oplog, and is always reported for the
// local database rather than silently dropped by the general "$" rule.
func (s *Session) AllCollections(ctx context.Context) ([]string, error) {
	c, err := s.Find("system.namespaces", nil).Sort(bson.D{{"name", 1}}).Cursor(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close(ctx)

	prefix := s.db + "."
	var names []string
	for {
		var doc struct {
			Name string `bson:"name"`
		}
		ok, err := c.Next(ctx, &doc)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if strings.Contains(doc.Name, "$") && doc.Name != "local.oplog.$main" {
			continue
		}
		names = append(names, strings.TrimPrefix(doc.Name, prefix))
	}
	return names, nil
}

// AllDatabasesCollections concurrently enumerates the collections of
// every database the server reports, fanning the per-database queries
// out so that one slow or unreachable database does not stall the rest.
func (s *Session) AllDatabasesCollections(ctx context.Context) (map[string][]string, error) {
	dbs, err := s.AllDatabases(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	result := make(map[string][]string, len(dbs))
	g, gctx := errgroup.WithContext(ctx)
	for _, db := range dbs {
		db := db
		g.Go(func() error {
			names, err := s.UseDB(db).AllCollections(gctx)
			if err != nil {
				return err
			}
			mu.Lock()
			result[db] = names
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
