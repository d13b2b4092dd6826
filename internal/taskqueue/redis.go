package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"reel/internal/logging"
	"reel/internal/services"
)

const (
	defaultRedisBlock = 5 * time.Second
	// reclaimIdle is how long another consumer's pending message must sit
	// before this consumer claims it.
	reclaimIdle  = 10 * time.Minute
	reclaimBatch = 100
)

// RedisOptions configures the Redis Streams queue.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Group    string
	Consumer string
	Block    time.Duration
}

// Redis stores each named queue in its own stream, read through one
// consumer group. Dead-lettered tasks go to "<stream>:dead".
type Redis struct {
	client   *redis.Client
	prefix   string
	group    string
	consumer string
	block    time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	ready   map[string]bool
	backlog map[string][]redis.XMessage
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions, logger *slog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, services.Wrap(services.ErrTransient, "taskqueue", "connect",
			fmt.Sprintf("redis at %s", opts.Addr), err)
	}
	return newRedisWithClient(client, opts, logger), nil
}

func newRedisWithClient(client *redis.Client, opts RedisOptions, logger *slog.Logger) *Redis {
	block := opts.Block
	if block <= 0 {
		block = defaultRedisBlock
	}
	return &Redis{
		client:   client,
		prefix:   strings.TrimRight(opts.Prefix, ":"),
		group:    opts.Group,
		consumer: opts.Consumer,
		block:    block,
		logger:   logging.NewComponentLogger(logger, "taskqueue"),
		ready:    make(map[string]bool),
		backlog:  make(map[string][]redis.XMessage),
	}
}

func (r *Redis) stream(queue string) string {
	return r.prefix + ":" + queue
}

func (r *Redis) deadStream(queue string) string {
	return r.stream(queue) + ":dead"
}

// prepare creates the consumer group and loads pending messages left by
// this consumer or abandoned by others. It runs once per queue.
func (r *Redis) prepare(ctx context.Context, queue string) error {
	r.mu.Lock()
	done := r.ready[queue]
	r.mu.Unlock()
	if done {
		return nil
	}

	stream := r.stream(queue)
	if err := r.client.XGroupCreateMkStream(ctx, stream, r.group, "0").Err(); err != nil && !isBusyGroup(err) {
		return fmt.Errorf("create consumer group %s on %s: %w", r.group, stream, err)
	}

	pending, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  r.group,
		Start:  "-",
		End:    "+",
		Count:  reclaimBatch,
	}).Result()
	if err != nil {
		return fmt.Errorf("list pending on %s: %w", stream, err)
	}
	var ids []string
	for _, p := range pending {
		if p.Consumer == r.consumer || p.Idle >= reclaimIdle {
			ids = append(ids, p.ID)
		}
	}
	var claimed []redis.XMessage
	if len(ids) > 0 {
		claimed, err = r.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   stream,
			Group:    r.group,
			Consumer: r.consumer,
			MinIdle:  0,
			Messages: ids,
		}).Result()
		if err != nil {
			return fmt.Errorf("claim pending on %s: %w", stream, err)
		}
		r.logger.Info("reclaimed pending tasks",
			logging.String("queue", queue),
			logging.Int("count", len(claimed)),
		)
	}

	r.mu.Lock()
	r.ready[queue] = true
	r.backlog[queue] = append(r.backlog[queue], claimed...)
	r.mu.Unlock()
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func (r *Redis) Enqueue(ctx context.Context, task *Task) error {
	if task == nil || task.Queue == "" {
		return fmt.Errorf("enqueue: task without queue")
	}
	values, err := encodeValues(task)
	if err != nil {
		return err
	}
	if err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream(task.Queue),
		Values: values,
	}).Err(); err != nil {
		return services.Wrap(services.ErrTransient, "taskqueue", "enqueue",
			fmt.Sprintf("task %s on %s", task.Name, task.Queue), err)
	}
	return nil
}

func encodeValues(task *Task) (map[string]any, error) {
	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}
	return map[string]any{
		"id":          task.ID,
		"task":        task.Name,
		"attempt":     task.Attempt,
		"data":        string(data),
		"enqueued_at": task.EnqueuedAt.Unix(),
	}, nil
}

func decodeMessage(msg redis.XMessage) (*Task, error) {
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "taskqueue", "decode message",
			fmt.Sprintf("message %s has no data field", msg.ID), nil)
	}
	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return nil, services.Wrap(services.ErrValidation, "taskqueue", "decode message",
			fmt.Sprintf("message %s", msg.ID), err)
	}
	return &task, nil
}

func (r *Redis) Receive(ctx context.Context, queue string) (*Delivery, error) {
	if err := r.prepare(ctx, queue); err != nil {
		return nil, err
	}
	for {
		msg, ok, err := r.next(ctx, queue)
		if err != nil || !ok {
			return nil, err
		}
		task, err := decodeMessage(msg)
		if err != nil {
			// Unparseable messages can never succeed; park them.
			r.logger.Warn("dropping malformed task message",
				logging.String("queue", queue),
				logging.String("message_id", msg.ID),
				logging.Error(err),
			)
			if dlErr := r.deadLetterRaw(ctx, queue, msg.ID, msg.Values, err); dlErr != nil {
				return nil, dlErr
			}
			continue
		}
		return &Delivery{Task: task, ref: msg.ID}, nil
	}
}

func (r *Redis) next(ctx context.Context, queue string) (redis.XMessage, bool, error) {
	r.mu.Lock()
	if backlog := r.backlog[queue]; len(backlog) > 0 {
		msg := backlog[0]
		r.backlog[queue] = backlog[1:]
		r.mu.Unlock()
		return msg, true, nil
	}
	r.mu.Unlock()

	streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream(queue), ">"},
		Count:    1,
		Block:    r.block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return redis.XMessage{}, false, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return redis.XMessage{}, false, ctxErr
		}
		return redis.XMessage{}, false, services.Wrap(services.ErrTransient, "taskqueue", "receive",
			fmt.Sprintf("queue %s", queue), err)
	}
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			return msg, true, nil
		}
	}
	return redis.XMessage{}, false, nil
}

// Ack acknowledges and deletes the delivered entry so stream length tracks
// outstanding work.
func (r *Redis) Ack(ctx context.Context, d *Delivery) error {
	stream := r.stream(d.Task.Queue)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAck(ctx, stream, r.group, d.ref)
		pipe.XDel(ctx, stream, d.ref)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ack %s: %w", d.ref, err)
	}
	return nil
}

// Retry enqueues the next attempt and acknowledges the current delivery in
// one transaction.
func (r *Redis) Retry(ctx context.Context, d *Delivery, cause error) error {
	next := d.Task.retryCopy(cause)
	values, err := encodeValues(next)
	if err != nil {
		return err
	}
	stream := r.stream(d.Task.Queue)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values})
		pipe.XAck(ctx, stream, r.group, d.ref)
		pipe.XDel(ctx, stream, d.ref)
		return nil
	})
	if err != nil {
		return fmt.Errorf("retry %s: %w", d.ref, err)
	}
	return nil
}

func (r *Redis) DeadLetter(ctx context.Context, d *Delivery, cause error) error {
	values, err := encodeValues(d.Task)
	if err != nil {
		return err
	}
	return r.deadLetterRaw(ctx, d.Task.Queue, d.ref, values, cause)
}

func (r *Redis) deadLetterRaw(ctx context.Context, queue, ref string, values map[string]any, cause error) error {
	entry := make(map[string]any, len(values)+2)
	for k, v := range values {
		entry[k] = v
	}
	entry["source_id"] = ref
	if cause != nil {
		entry["error"] = cause.Error()
	}
	stream := r.stream(queue)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: r.deadStream(queue), Values: entry})
		pipe.XAck(ctx, stream, r.group, ref)
		pipe.XDel(ctx, stream, ref)
		return nil
	})
	if err != nil {
		return fmt.Errorf("dead-letter %s: %w", ref, err)
	}
	return nil
}

// Len returns the number of entries in the queue's stream: waiting tasks
// plus delivered but unacknowledged ones.
func (r *Redis) Len(ctx context.Context, queue string) (int64, error) {
	n, err := r.client.XLen(ctx, r.stream(queue)).Result()
	if err != nil {
		return 0, fmt.Errorf("length of %s: %w", r.stream(queue), err)
	}
	return n, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
