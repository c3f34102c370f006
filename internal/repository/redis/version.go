package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const projectVersionPrefix = "project:version:"

// VersionStore keeps a monotonically increasing version per project.
// Every emitted event bumps it; clients compare it on rejoin to detect
// events they missed while disconnected.
type VersionStore struct {
	client *Client
}

// NewVersionStore creates a new version store
func NewVersionStore(client *Client) *VersionStore {
	return &VersionStore{client: client}
}

func versionKey(projectID string) string {
	return fmt.Sprintf("%s%s", projectVersionPrefix, projectID)
}

// Bump increments and returns the project's version
func (s *VersionStore) Bump(ctx context.Context, projectID string) (int64, error) {
	version, err := s.client.rdb.Incr(ctx, versionKey(projectID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to bump project version: %w", err)
	}
	return version, nil
}

// Current returns the project's version, 0 if it was never bumped
func (s *VersionStore) Current(ctx context.Context, projectID string) (int64, error) {
	version, err := s.client.rdb.Get(ctx, versionKey(projectID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get project version: %w", err)
	}
	return version, nil
}

// Forget removes the version of a deleted project
func (s *VersionStore) Forget(ctx context.Context, projectID string) error {
	return s.client.rdb.Del(ctx, versionKey(projectID)).Err()
}
