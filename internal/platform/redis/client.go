// Package redis provides the Redis-backed implementation of the session
// store. Layout on the wire, per session identifier:
//
//	session:<id>  hash with the session record and the latest-progress
//	              projection fields
//	progress:<id> list of JSON-encoded progress events, in append order
//	answers:<id>  list of JSON-encoded answer previews, in append order
//	result:<id>   JSON-encoded terminal result
//
// All four keys share one TTL that every write refreshes, so an abandoned
// session and its satellite data expire together.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// NewClient parses a Redis connection URL, opens a client, and verifies the
// connection with a ping. The caller owns the returned client and is
// responsible for closing it.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := goredis.NewClient(opts)

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}
