package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client provides project-scoped Redis operations for the run ledger.
// All keys and channels are namespaced with the project name.
// The client is safe for concurrent use.
type Client struct {
	rdb     *redis.Client
	project string
}

// NewClient creates a ledger client for the given project.
// Returns an error if project is empty.
func NewClient(redisOpts *redis.Options, project string) (*Client, error) {
	if project == "" {
		return nil, fmt.Errorf("project name cannot be empty")
	}

	return &Client{
		rdb:     redis.NewClient(redisOpts),
		project: project,
	}, nil
}

// Project returns the namespace this client writes to.
func (c *Client) Project() string {
	return c.project
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// RecordArtefact validates and stores a stage artefact, indexes it by time and
// by run, and publishes it on the artefact events channel.
// CreatedAtMs is stamped with the current time when zero.
func (c *Client) RecordArtefact(ctx context.Context, a *StageArtefact) error {
	if a.CreatedAtMs == 0 {
		a.CreatedAtMs = time.Now().UnixMilli()
	}

	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid artefact: %w", err)
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, ArtefactKey(c.project, a.ID), ArtefactToHash(a))
		pipe.ZAdd(ctx, TimelineKey(c.project), redis.Z{Score: float64(a.CreatedAtMs), Member: a.ID})
		pipe.RPush(ctx, RunArtefactsKey(c.project, a.RunID), a.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write artefact to Redis: %w", err)
	}

	artefactJSON, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal artefact for event: %w", err)
	}

	if err := c.rdb.Publish(ctx, ArtefactEventsChannel(c.project), artefactJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish artefact event: %w", err)
	}

	return nil
}

// GetArtefact retrieves an artefact by ID.
// Returns (nil, redis.Nil) if the artefact doesn't exist; use IsNotFound.
func (c *Client) GetArtefact(ctx context.Context, artefactID string) (*StageArtefact, error) {
	hashData, err := c.rdb.HGetAll(ctx, ArtefactKey(c.project, artefactID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read artefact from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	artefact, err := HashToArtefact(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize artefact: %w", err)
	}

	return artefact, nil
}

// ListArtefacts returns artefacts ordered by creation time.
// sinceMs and untilMs are inclusive bounds in Unix milliseconds; zero means unbounded.
func (c *Client) ListArtefacts(ctx context.Context, sinceMs, untilMs int64) ([]*StageArtefact, error) {
	minScore, maxScore := "-inf", "+inf"
	if sinceMs > 0 {
		minScore = strconv.FormatInt(sinceMs, 10)
	}
	if untilMs > 0 {
		maxScore = strconv.FormatInt(untilMs, 10)
	}

	ids, err := c.rdb.ZRangeByScore(ctx, TimelineKey(c.project), &redis.ZRangeBy{
		Min: minScore,
		Max: maxScore,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list artefacts: %w", err)
	}

	return c.fetchArtefacts(ctx, ids)
}

// RunArtefacts returns a run's artefacts in the order the stages recorded them.
func (c *Client) RunArtefacts(ctx context.Context, runID string) ([]*StageArtefact, error) {
	ids, err := c.rdb.LRange(ctx, RunArtefactsKey(c.project, runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list run artefacts: %w", err)
	}

	return c.fetchArtefacts(ctx, ids)
}

// fetchArtefacts loads each ID, skipping entries whose hash has disappeared.
func (c *Client) fetchArtefacts(ctx context.Context, ids []string) ([]*StageArtefact, error) {
	artefacts := make([]*StageArtefact, 0, len(ids))
	for _, id := range ids {
		a, err := c.GetArtefact(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		artefacts = append(artefacts, a)
	}
	return artefacts, nil
}

// ScanArtefacts returns the IDs of artefacts whose ID starts with prefix.
func (c *Client) ScanArtefacts(ctx context.Context, prefix string) ([]string, error) {
	keyPrefix := ArtefactKey(c.project, "")
	pattern := keyPrefix + prefix + "*"

	var ids []string
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan artefacts: %w", err)
	}

	sort.Strings(ids)
	return ids, nil
}

// PutModel stores (full replacement) the record for a remote model name.
// UpdatedAtMs is stamped with the current time when zero.
func (c *Client) PutModel(ctx context.Context, m *ModelRecord) error {
	if m.UpdatedAtMs == 0 {
		m.UpdatedAtMs = time.Now().UnixMilli()
	}

	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid model record: %w", err)
	}

	if err := c.rdb.HSet(ctx, ModelKey(c.project, m.Name), ModelToHash(m)).Err(); err != nil {
		return fmt.Errorf("failed to write model record to Redis: %w", err)
	}

	return nil
}

// GetModel retrieves the record for a model name.
// Returns (nil, redis.Nil) if no record exists.
func (c *Client) GetModel(ctx context.Context, name string) (*ModelRecord, error) {
	hashData, err := c.rdb.HGetAll(ctx, ModelKey(c.project, name)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read model record from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	m, err := HashToModel(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize model record: %w", err)
	}

	return m, nil
}

// Subscription is an active Pub/Sub subscription to artefact events.
// Caller must call Close() when done.
type Subscription struct {
	events <-chan *StageArtefact
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of artefact events.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *StageArtefact {
	return s.events
}

// Errors returns the channel of non-fatal subscription errors.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeArtefactEvents subscribes to artefact events for this project.
// Delivery is at-most-once; slow subscribers may miss events.
func (c *Client) SubscribeArtefactEvents(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, ArtefactEventsChannel(c.project))

	// Wait for the subscription to be confirmed so no event published
	// after this call returns is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to artefact events: %w", err)
	}

	eventsChan := make(chan *StageArtefact, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var artefact StageArtefact
				if err := json.Unmarshal([]byte(msg.Payload), &artefact); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal artefact event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &artefact:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound reports whether err is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
