package tgredis

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/lemmego/typegoose"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// =====================================
// Collection Implementation
// =====================================

// Collection implements typegoose.Collection on Redis.
//
// Keys, relative to {prefix}:{collection}:
//
//	ids              sorted set of encoded ids, scored by insertion sequence
//	seq              insertion sequence counter
//	doc:{id}         bson-encoded document
//	indexes          hash of index name to bson-encoded index definition
//	uniq:{index}:{v} encoded id owning a unique value
type Collection struct {
	client *redis.Client
	name   string
	prefix string
	logger *zap.Logger
}

func (c *Collection) key(parts ...string) string {
	return c.prefix + ":" + strings.Join(parts, ":")
}

func (c *Collection) docKey(id string) string { return c.key("doc", id) }

// encodeKey renders a document value as a stable key segment. Numbers of
// any Go type with the same value share a segment.
func encodeKey(v any) string {
	v = typegoose.NormalizeValue(v)
	switch t := v.(type) {
	case nil:
		return "z"
	case string:
		return "s:" + t
	case primitive.ObjectID:
		return "o:" + t.Hex()
	case []byte:
		return "b:" + hex.EncodeToString(t)
	case bool:
		return "t:" + strconv.FormatBool(t)
	case time.Time:
		return "d:" + strconv.FormatInt(t.UnixMilli(), 10)
	}
	if f, ok := typegoose.NumberValue(v); ok {
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	raw, err := bson.Marshal(bson.M{"v": v})
	if err != nil {
		return "x:" + fmt.Sprint(v)
	}
	return "x:" + hex.EncodeToString(raw)
}

func encodeDoc(doc map[string]any) ([]byte, error) {
	return bson.Marshal(doc)
}

func decodeDoc(raw []byte) (map[string]any, error) {
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return typegoose.NormalizeMap(doc), nil
}

// InsertOne stores doc. A document with the same _id or a value claimed by
// a unique index fails with a DuplicateKeyError.
func (c *Collection) InsertOne(ctx context.Context, doc map[string]any) (any, error) {
	id, ok := doc["_id"]
	if !ok || id == nil {
		return nil, typegoose.NewError(typegoose.ErrorTypeInvalidArgument, "document has no _id")
	}
	raw, err := encodeDoc(doc)
	if err != nil {
		return nil, err
	}
	idKey := encodeKey(id)

	created, err := c.client.SetNX(ctx, c.docKey(idKey), raw, 0).Result()
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, &DuplicateKeyError{Collection: c.name, Index: "_id_", Key: map[string]any{"_id": id}}
	}

	indexes, err := c.uniqueIndexes(ctx)
	if err == nil {
		err = c.claim(ctx, idKey, indexes, doc, nil)
	}
	if err != nil {
		c.client.Del(ctx, c.docKey(idKey))
		return nil, err
	}

	seq, err := c.client.Incr(ctx, c.key("seq")).Result()
	if err != nil {
		return nil, err
	}
	if err := c.client.ZAdd(ctx, c.key("ids"), &redis.Z{Score: float64(seq), Member: idKey}).Err(); err != nil {
		return nil, err
	}
	c.logger.Debug("redis document inserted", zap.String("collection", c.name), zap.String("id", idKey))
	return id, nil
}

// claim takes the unique values of doc that old (nil for a new document)
// does not already hold. On conflict every claim made here is released.
func (c *Collection) claim(ctx context.Context, idKey string, indexes []typegoose.Index, doc, old map[string]any) error {
	var taken []string
	for _, idx := range indexes {
		value, ok := uniqueValue(idx, doc)
		if !ok {
			continue
		}
		if prev, held := uniqueValue(idx, old); held && prev == value {
			continue
		}
		key := c.key("uniq", idx.Name, value)
		ok, err := c.client.SetNX(ctx, key, idKey, 0).Result()
		if err == nil && !ok {
			err = &DuplicateKeyError{Collection: c.name, Index: idx.Name, Key: indexKey(idx, doc)}
		}
		if err != nil {
			if len(taken) > 0 {
				c.client.Del(ctx, taken...)
			}
			return err
		}
		taken = append(taken, key)
	}
	return nil
}

// release frees the unique values doc holds, except those kept also holds
func (c *Collection) release(ctx context.Context, indexes []typegoose.Index, doc, kept map[string]any) error {
	var keys []string
	for _, idx := range indexes {
		value, ok := uniqueValue(idx, doc)
		if !ok {
			continue
		}
		if other, held := uniqueValue(idx, kept); held && other == value {
			continue
		}
		keys = append(keys, c.key("uniq", idx.Name, value))
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// uniqueValue returns the key segment doc holds for idx. Documents missing
// every indexed path hold none.
func uniqueValue(idx typegoose.Index, doc map[string]any) (string, bool) {
	if doc == nil {
		return "", false
	}
	parts := make([]string, len(idx.Keys))
	present := false
	for i, k := range idx.Keys {
		v, _ := typegoose.LookupPath(doc, k)
		if v != nil {
			present = true
		}
		parts[i] = encodeKey(v)
	}
	return hex.EncodeToString([]byte(strings.Join(parts, "|"))), present
}

func indexKey(idx typegoose.Index, doc map[string]any) map[string]any {
	key := make(map[string]any, len(idx.Keys))
	for _, k := range idx.Keys {
		key[k], _ = typegoose.LookupPath(doc, k)
	}
	return key
}

func (c *Collection) get(ctx context.Context, idKey string) (map[string]any, error) {
	raw, err := c.client.Get(ctx, c.docKey(idKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeDoc(raw)
}

// all loads every document in storage order
func (c *Collection) all(ctx context.Context) ([]map[string]any, error) {
	ids, err := c.client.ZRange(ctx, c.key("ids"), 0, -1).Result()
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.docKey(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	docs := make([]map[string]any, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		doc, err := decodeDoc([]byte(s))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// candidates returns the documents that may match filter, using the _id
// shortcut when the filter pins a single _id.
func (c *Collection) candidates(ctx context.Context, filter map[string]any) ([]map[string]any, error) {
	if id, ok := filter["_id"]; ok {
		if _, isOp := typegoose.NormalizeValue(id).(map[string]any); !isOp {
			doc, err := c.get(ctx, encodeKey(id))
			if err != nil || doc == nil {
				return nil, err
			}
			return []map[string]any{doc}, nil
		}
	}
	return c.all(ctx)
}

func (c *Collection) match(ctx context.Context, filter map[string]any) ([]map[string]any, error) {
	docs, err := c.candidates(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := docs[:0]
	for _, doc := range docs {
		if typegoose.MatchFilter(doc, filter) {
			out = append(out, doc)
		}
	}
	return out, nil
}

// FindOne returns the first matching document in storage order, or nil
func (c *Collection) FindOne(ctx context.Context, filter map[string]any) (map[string]any, error) {
	docs, err := c.match(ctx, filter)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// Find returns the documents matching query
func (c *Collection) Find(ctx context.Context, query *typegoose.FindQuery) ([]map[string]any, error) {
	docs, err := c.match(ctx, query.Filter)
	if err != nil {
		return nil, err
	}
	typegoose.SortDocuments(docs, query.Orders)
	return typegoose.PageDocuments(docs, query), nil
}

// ReplaceOne replaces the document with the given _id
func (c *Collection) ReplaceOne(ctx context.Context, id any, doc map[string]any, upsert bool) error {
	idKey := encodeKey(id)
	old, err := c.get(ctx, idKey)
	if err != nil {
		return err
	}
	if old == nil {
		if !upsert {
			return nil
		}
		_, err := c.InsertOne(ctx, withID(doc, id))
		return err
	}

	doc = withID(doc, id)
	raw, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	indexes, err := c.uniqueIndexes(ctx)
	if err != nil {
		return err
	}
	if err := c.claim(ctx, idKey, indexes, doc, old); err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.docKey(idKey), raw, 0).Err(); err != nil {
		return err
	}
	return c.release(ctx, indexes, old, doc)
}

func withID(doc map[string]any, id any) map[string]any {
	if _, ok := doc["_id"]; ok {
		return doc
	}
	out := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out["_id"] = id
	return out
}

// DeleteOne removes the document with the given _id
func (c *Collection) DeleteOne(ctx context.Context, id any) (int64, error) {
	idKey := encodeKey(id)
	old, err := c.get(ctx, idKey)
	if err != nil || old == nil {
		return 0, err
	}
	indexes, err := c.uniqueIndexes(ctx)
	if err != nil {
		return 0, err
	}
	if err := c.release(ctx, indexes, old, nil); err != nil {
		return 0, err
	}
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, c.docKey(idKey))
	pipe.ZRem(ctx, c.key("ids"), idKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return 1, nil
}

// Count returns the number of documents matching filter
func (c *Collection) Count(ctx context.Context, filter map[string]any) (int64, error) {
	if len(filter) == 0 {
		return c.client.ZCard(ctx, c.key("ids")).Result()
	}
	docs, err := c.match(ctx, filter)
	return int64(len(docs)), err
}

// CreateIndex records idx. A unique index claims the values of the stored
// documents and fails with a DuplicateKeyError if two of them share one.
func (c *Collection) CreateIndex(ctx context.Context, idx typegoose.Index) error {
	exists, err := c.client.HExists(ctx, c.key("indexes"), idx.Name).Result()
	if err != nil || exists {
		return err
	}
	if idx.Unique {
		docs, err := c.all(ctx)
		if err != nil {
			return err
		}
		var claimed []map[string]any
		for _, doc := range docs {
			idKey := encodeKey(doc["_id"])
			if err := c.claim(ctx, idKey, []typegoose.Index{idx}, doc, nil); err != nil {
				for _, prev := range claimed {
					_ = c.release(ctx, []typegoose.Index{idx}, prev, nil)
				}
				return err
			}
			claimed = append(claimed, doc)
		}
	}
	raw, err := bson.Marshal(idx)
	if err != nil {
		return err
	}
	return c.client.HSet(ctx, c.key("indexes"), idx.Name, raw).Err()
}

func (c *Collection) uniqueIndexes(ctx context.Context) ([]typegoose.Index, error) {
	all, err := c.client.HGetAll(ctx, c.key("indexes")).Result()
	if err != nil {
		return nil, err
	}
	var indexes []typegoose.Index
	for _, raw := range all {
		var idx typegoose.Index
		if err := bson.Unmarshal([]byte(raw), &idx); err != nil {
			return nil, err
		}
		if idx.Unique {
			indexes = append(indexes, idx)
		}
	}
	return indexes, nil
}
