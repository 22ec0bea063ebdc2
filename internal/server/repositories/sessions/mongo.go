package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrijs2005/sessionguard/internal/common"
	"github.com/dmitrijs2005/sessionguard/internal/server/models"
)

// CollectionName is the MongoDB collection holding session documents.
const CollectionName = "sessions"

type mongoSession struct {
	Token      string     `bson:"_id"`
	UserID     string     `bson:"user_id"`
	CSRFSecret string     `bson:"csrf_secret"`
	Status     string     `bson:"status"`
	CreatedAt  time.Time  `bson:"created_at"`
	ExpiresAt  *time.Time `bson:"expires_at,omitempty"`
	ExpiredAt  *time.Time `bson:"expired_at,omitempty"`
}

func (d *mongoSession) model() *models.Session {
	s := &models.Session{
		Token:      d.Token,
		UserID:     d.UserID,
		CSRFSecret: d.CSRFSecret,
		Status:     models.SessionStatus(d.Status),
		CreatedAt:  d.CreatedAt,
	}
	if d.ExpiresAt != nil {
		s.ExpiresAt = *d.ExpiresAt
	}
	return s
}

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(CollectionName)}
}

// EnsureIndexes creates the per-user lookup index. It is idempotent.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}},
		Options: options.Index().SetName("sessions_user_status"),
	})
	if err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}

func (r *MongoRepository) Create(ctx context.Context, session *models.Session) error {
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	doc := mongoSession{
		Token:      session.Token,
		UserID:     session.UserID,
		CSRFSecret: session.CSRFSecret,
		Status:     string(models.SessionValid),
		CreatedAt:  createdAt,
	}
	if !session.ExpiresAt.IsZero() {
		t := session.ExpiresAt
		doc.ExpiresAt = &t
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("mongo error: %w", err)
	}

	session.Status = models.SessionValid
	session.CreatedAt = createdAt
	return nil
}

func (r *MongoRepository) FindByToken(ctx context.Context, token string, status models.SessionStatus) (*models.Session, error) {
	filter := bson.D{{Key: "_id", Value: token}, {Key: "status", Value: string(status)}}

	var doc mongoSession
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	return doc.model(), nil
}

func expireUpdate() bson.D {
	return bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: string(models.SessionExpired)},
		{Key: "expired_at", Value: time.Now().UTC()},
	}}}
}

func (r *MongoRepository) Expire(ctx context.Context, token string) error {
	filter := bson.D{{Key: "_id", Value: token}, {Key: "status", Value: string(models.SessionValid)}}
	if _, err := r.coll.UpdateOne(ctx, filter, expireUpdate()); err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}

func (r *MongoRepository) ExpireAllForUser(ctx context.Context, userID string, keepToken string) (int64, error) {
	filter := bson.D{
		{Key: "user_id", Value: userID},
		{Key: "status", Value: string(models.SessionValid)},
		{Key: "_id", Value: bson.D{{Key: "$ne", Value: keepToken}}},
	}
	res, err := r.coll.UpdateMany(ctx, filter, expireUpdate())
	if err != nil {
		return 0, fmt.Errorf("mongo error: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *MongoRepository) ListByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.D{{Key: "user_id", Value: userID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoSession
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo error: %w", err)
	}

	out := make([]*models.Session, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].model())
	}
	return out, nil
}
