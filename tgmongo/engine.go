// Package tgmongo provides a MongoDB engine for typegoose models
package tgmongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lemmego/typegoose"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Driver names accepted in typegoose.Config.Driver
var Drivers = []string{"mongodb", "mongo"}

// =====================================
// Engine Implementation
// =====================================

// Engine implements typegoose.Engine using MongoDB
type Engine struct {
	client   *mongo.Client
	database *mongo.Database
	logger   *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger of the engine
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New connects to MongoDB and pings the primary
func New(ctx context.Context, config typegoose.Config, opts ...Option) (*Engine, error) {
	clientOpts := options.Client().ApplyURI(BuildConnectionURI(config))
	if config.MaxOpenConns > 0 {
		clientOpts.SetMaxPoolSize(uint64(config.MaxOpenConns))
	}
	if config.MaxIdleConns > 0 {
		clientOpts.SetMinPoolSize(uint64(config.MaxIdleConns))
	}
	if config.ConnMaxIdleTime > 0 {
		clientOpts.SetMaxConnIdleTime(config.ConnMaxIdleTime)
	}
	if mongoOpts, ok := config.Options["mongo"].(map[string]interface{}); ok {
		applyClientOptions(clientOpts, mongoOpts)
	}

	timeout := config.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, typegoose.NewErrorWithCause(typegoose.ErrorTypeConnection, "failed to connect to MongoDB", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, typegoose.NewErrorWithCause(typegoose.ErrorTypeConnection, "failed to ping MongoDB", err)
	}

	database := config.Database
	if database == "" {
		database = "typegoose"
	}
	return NewWithClient(client, database, opts...), nil
}

// NewWithClient wraps an already connected client
func NewWithClient(client *mongo.Client, database string, opts ...Option) *Engine {
	e := &Engine{
		client:   client,
		database: client.Database(database),
		logger:   typegoose.Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BuildConnectionURI builds the MongoDB connection URI of config
func BuildConnectionURI(config typegoose.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	uri := "mongodb://"
	if config.Username != "" {
		uri += config.Username
		if config.Password != "" {
			uri += ":" + config.Password
		}
		uri += "@"
	}

	host := config.Host
	if host == "" {
		host = "localhost"
	}
	port := config.Port
	if port == 0 {
		port = 27017
	}
	uri += fmt.Sprintf("%s:%d", host, port)

	if config.Database != "" {
		uri += "/" + config.Database
	}
	return uri
}

// applyClientOptions applies MongoDB-specific client options
func applyClientOptions(clientOpts *options.ClientOptions, mongoOpts map[string]interface{}) {
	if maxPoolSize, ok := mongoOpts["max_pool_size"].(int); ok {
		clientOpts.SetMaxPoolSize(uint64(maxPoolSize))
	}
	if minPoolSize, ok := mongoOpts["min_pool_size"].(int); ok {
		clientOpts.SetMinPoolSize(uint64(minPoolSize))
	}
	if maxIdleTime, ok := mongoOpts["max_idle_time"].(time.Duration); ok {
		clientOpts.SetMaxConnIdleTime(maxIdleTime)
	}
	if appName, ok := mongoOpts["app_name"].(string); ok {
		clientOpts.SetAppName(appName)
	}
}

// Name returns the engine kind
func (e *Engine) Name() string { return "mongodb" }

// Database returns the database models are stored in
func (e *Engine) Database() *mongo.Database { return e.database }

// Collection returns the MongoDB collection of a model
func (e *Engine) Collection(name string, h *typegoose.Handle) (typegoose.Collection, error) {
	if name == "" {
		return nil, typegoose.NewError(typegoose.ErrorTypeInvalidArgument, "collection name is required")
	}
	e.logger.Debug("mongo collection bound", zap.String("collection", name), zap.String("class", h.Name()))
	return &Collection{coll: e.database.Collection(name)}, nil
}

// Health checks the database connection health
func (e *Engine) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.client.Ping(ctx, readpref.Primary())
}

// Close closes the database connection
func (e *Engine) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.client.Disconnect(ctx)
}

// =====================================
// Collection Implementation
// =====================================

// Collection implements typegoose.Collection over a *mongo.Collection.
// Driver errors are returned unchanged.
type Collection struct {
	coll *mongo.Collection
}

// Mongo returns the underlying driver collection
func (c *Collection) Mongo() *mongo.Collection { return c.coll }

// InsertOne inserts doc
func (c *Collection) InsertOne(ctx context.Context, doc map[string]any) (any, error) {
	result, err := c.coll.InsertOne(ctx, bson.M(doc))
	if err != nil {
		return nil, err
	}
	return result.InsertedID, nil
}

// FindOne returns the first matching document, or nil
func (c *Collection) FindOne(ctx context.Context, filter map[string]any) (map[string]any, error) {
	var doc bson.M
	err := c.coll.FindOne(ctx, filterDoc(filter)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return typegoose.NormalizeMap(doc), nil
}

// Find returns the documents matching query
func (c *Collection) Find(ctx context.Context, query *typegoose.FindQuery) ([]map[string]any, error) {
	findOpts := options.Find()
	if len(query.Orders) > 0 {
		sort := bson.D{}
		for _, o := range query.Orders {
			direction := 1
			if o.Direction == typegoose.OrderDesc {
				direction = -1
			}
			sort = append(sort, bson.E{Key: o.Field, Value: direction})
		}
		findOpts.SetSort(sort)
	}
	if query.Limit != nil {
		findOpts.SetLimit(int64(*query.Limit))
	}
	if query.Skip != nil {
		findOpts.SetSkip(int64(*query.Skip))
	}

	cursor, err := c.coll.Find(ctx, filterDoc(query.Filter), findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}
	docs := make([]map[string]any, len(raw))
	for i, doc := range raw {
		docs[i] = typegoose.NormalizeMap(doc)
	}
	return docs, nil
}

// ReplaceOne replaces the document with the given _id
func (c *Collection) ReplaceOne(ctx context.Context, id any, doc map[string]any, upsert bool) error {
	_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": id}, bson.M(doc), options.Replace().SetUpsert(upsert))
	return err
}

// DeleteOne removes the document with the given _id
func (c *Collection) DeleteOne(ctx context.Context, id any) (int64, error) {
	result, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// Count returns the number of documents matching filter
func (c *Collection) Count(ctx context.Context, filter map[string]any) (int64, error) {
	return c.coll.CountDocuments(ctx, filterDoc(filter))
}

// CreateIndex creates an ascending index over idx.Keys
func (c *Collection) CreateIndex(ctx context.Context, idx typegoose.Index) error {
	keys := bson.D{}
	for _, k := range idx.Keys {
		keys = append(keys, bson.E{Key: k, Value: 1})
	}
	indexModel := mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetName(idx.Name),
	}
	if idx.Unique {
		indexModel.Options.SetUnique(true)
	}
	_, err := c.coll.Indexes().CreateOne(ctx, indexModel)
	return err
}

// filterDoc converts a filter map; a nil filter matches everything
func filterDoc(filter map[string]any) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return bson.M(filter)
}
