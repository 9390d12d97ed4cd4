// Package tgredis provides a Redis-backed document engine for typegoose models.
//
// Documents are stored bson-encoded under one key each; a sorted set keeps
// storage order and unique indexes are claimed with SETNX.
package tgredis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/lemmego/typegoose"
	"go.uber.org/zap"
)

// DefaultPrefix prefixes every key the engine writes
const DefaultPrefix = "typegoose"

// =====================================
// Engine Implementation
// =====================================

// Engine implements typegoose.Engine using Redis
type Engine struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithPrefix sets the key prefix of the engine
func WithPrefix(prefix string) Option {
	return func(e *Engine) {
		e.prefix = prefix
	}
}

// WithLogger sets the logger of the engine
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New connects to Redis and pings it
func New(config typegoose.Config, opts ...Option) (*Engine, error) {
	redisOpts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", hostOrDefault(config.Host), portOrDefault(config.Port)),
		Username: config.Username,
		Password: config.Password,
		DB:       0,
	}
	if config.ConnectionURL != "" {
		parsed, err := redis.ParseURL(config.ConnectionURL)
		if err != nil {
			return nil, typegoose.NewErrorWithCause(typegoose.ErrorTypeInvalidArgument, "invalid Redis URL", err)
		}
		redisOpts = parsed
	}

	if config.Database != "" {
		if db, err := strconv.Atoi(config.Database); err == nil {
			redisOpts.DB = db
		}
	}
	if config.MaxOpenConns > 0 {
		redisOpts.PoolSize = config.MaxOpenConns
	}
	if config.MaxIdleConns > 0 {
		redisOpts.MinIdleConns = config.MaxIdleConns
	}
	if config.ConnMaxIdleTime > 0 {
		redisOpts.IdleTimeout = config.ConnMaxIdleTime
	}
	if config.ConnectTimeout > 0 {
		redisOpts.DialTimeout = config.ConnectTimeout
	}
	if options, ok := config.Options["redis"].(map[string]interface{}); ok {
		if readTimeout, ok := options["read_timeout"].(time.Duration); ok {
			redisOpts.ReadTimeout = readTimeout
		}
		if writeTimeout, ok := options["write_timeout"].(time.Duration); ok {
			redisOpts.WriteTimeout = writeTimeout
		}
		if prefix, ok := options["prefix"].(string); ok {
			opts = append([]Option{WithPrefix(prefix)}, opts...)
		}
	}

	e := NewWithClient(redis.NewClient(redisOpts), opts...)
	if err := e.Health(); err != nil {
		_ = e.client.Close()
		return nil, typegoose.NewErrorWithCause(typegoose.ErrorTypeConnection, "failed to connect to Redis", err)
	}
	return e, nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, opts ...Option) *Engine {
	e := &Engine{
		client: client,
		prefix: DefaultPrefix,
		logger: typegoose.Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func hostOrDefault(host string) string {
	if host == "" {
		return "localhost"
	}
	return host
}

func portOrDefault(port int) int {
	if port == 0 {
		return 6379
	}
	return port
}

// Name returns the engine kind
func (e *Engine) Name() string { return "redis" }

// Client returns the underlying Redis client
func (e *Engine) Client() *redis.Client { return e.client }

// Collection returns the collection of a model
func (e *Engine) Collection(name string, h *typegoose.Handle) (typegoose.Collection, error) {
	if name == "" {
		return nil, typegoose.NewError(typegoose.ErrorTypeInvalidArgument, "collection name is required")
	}
	e.logger.Debug("redis collection bound", zap.String("collection", name), zap.String("class", h.Name()))
	return &Collection{
		client: e.client,
		name:   name,
		prefix: e.prefix + ":" + name,
		logger: e.logger,
	}, nil
}

// Health checks the connection to Redis
func (e *Engine) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (e *Engine) Close() error {
	return e.client.Close()
}
