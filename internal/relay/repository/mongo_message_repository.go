package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"room_relay_service/internal/relay/domain"
	errprocess "room_relay_service/pkg/err"
)

// mongoMessage stored document. ObjectIDs embed a timestamp + counter, so
// they keep the monotonic-id tiebreak the read order relies on.
type mongoMessage struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	RoomCode  string             `bson:"room_code"`
	Kind      string             `bson:"kind"`
	Content   string             `bson:"content"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (d *mongoMessage) toDomain() domain.Message {
	return domain.Message{
		ID:        d.ID.Hex(),
		RoomCode:  d.RoomCode,
		Kind:      domain.Kind(d.Kind),
		Content:   d.Content,
		CreatedAt: d.CreatedAt,
	}
}

type mongoMessageStore struct {
	coll *mongo.Collection
}

// NewMongoMessageStore create a mongo backed MessageStore.
func NewMongoMessageStore(db *mongo.Database) MessageStore {
	return &mongoMessageStore{
		coll: db.Collection("messages"),
	}
}

func (r *mongoMessageStore) Append(ctx context.Context, roomCode string, kind domain.Kind, content string) (*domain.Message, error) {
	doc := mongoMessage{
		ID:        primitive.NewObjectID(),
		RoomCode:  roomCode,
		Kind:      string(kind),
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, errprocess.Set(fmt.Sprintf("insert message failed: %v", err))
	}
	msg := doc.toDomain()
	return &msg, nil
}

func (r *mongoMessageStore) ListActive(ctx context.Context, roomCode string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}
	cutoff := time.Now().Add(-domain.RetentionWindow)
	filter := bson.M{
		"room_code":  roomCode,
		"created_at": bson.M{"$gt": cutoff},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errprocess.Set(fmt.Sprintf("query messages failed: %v", err))
	}
	var docs []mongoMessage
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(docs))
	for i := range docs {
		msgs = append(msgs, docs[i].toDomain())
	}
	return msgs, nil
}

func (r *mongoMessageStore) DeleteExpired(ctx context.Context, roomCode string, cutoff time.Time) error {
	_, err := r.coll.DeleteMany(ctx, bson.M{
		"room_code":  roomCode,
		"created_at": bson.M{"$lt": cutoff},
	})
	return err
}

func (r *mongoMessageStore) DeleteAll(ctx context.Context, roomCode string) error {
	_, err := r.coll.DeleteMany(ctx, bson.M{"room_code": roomCode})
	return err
}
