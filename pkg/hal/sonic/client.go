package sonic

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/portmgr/pkg/util"
)

// SONiC Redis database numbers.
const (
	CountersDB = 2
	ConfigDB   = 4
	StateDB    = 6
)

// dbClient wraps one Redis database. Keys are "TABLE|key" except in
// COUNTERS_DB, which uses "TABLE:key".
type dbClient struct {
	client *redis.Client
	sep    string
	db     int
}

func newDBClient(addr string, db int, sep string) *dbClient {
	return &dbClient{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		}),
		sep: sep,
		db:  db,
	}
}

// Connect tests the connection
func (c *dbClient) Connect(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis db %d: %v", util.ErrNotConnected, c.db, err)
	}
	return nil
}

// Close closes the connection
func (c *dbClient) Close() error {
	return c.client.Close()
}

func (c *dbClient) key(table, key string) string {
	return table + c.sep + key
}

// Get reads a table entry. A missing entry is an empty map.
func (c *dbClient) Get(ctx context.Context, table, key string) (map[string]string, error) {
	return c.client.HGetAll(ctx, c.key(table, key)).Result()
}

// Set writes fields into an entry with a single HSET.
func (c *dbClient) Set(ctx context.Context, table, key string, fields map[string]string) error {
	redisKey := c.key(table, key)
	if len(fields) == 0 {
		return c.client.HSet(ctx, redisKey, "NULL", "NULL").Err()
	}
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return c.client.HSet(ctx, redisKey, args...).Err()
}

// Delete removes an entry.
func (c *dbClient) Delete(ctx context.Context, table, key string) error {
	return c.client.Del(ctx, c.key(table, key)).Err()
}

// Exists checks if an entry exists.
func (c *dbClient) Exists(ctx context.Context, table, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(table, key)).Result()
	return n > 0, err
}

// TableKeys returns the entry keys of table, without the table prefix.
func (c *dbClient) TableKeys(ctx context.Context, table string) ([]string, error) {
	prefix := table + c.sep
	keys, err := scanKeys(ctx, c.client, prefix+"*", 100)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k[len(prefix):])
	}
	return out, nil
}

// DeleteAll removes the given entries of table in one MULTI/EXEC.
func (c *dbClient) DeleteAll(ctx context.Context, table string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := c.client.TxPipeline()
	for _, k := range keys {
		pipe.Del(ctx, c.key(table, k))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return fmt.Errorf("pipeline exec: %w", err)
	}
	return nil
}

// scanKeys iterates Redis keys matching the given pattern using cursor-based
// SCAN instead of the blocking O(N) KEYS command. The count hint controls
// how many keys Redis returns per iteration (not an exact limit).
func scanKeys(ctx context.Context, client *redis.Client, pattern string, countHint int64) ([]string, error) {
	var cursor uint64
	var keys []string
	for {
		batch, nextCursor, err := client.Scan(ctx, cursor, pattern, countHint).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}
