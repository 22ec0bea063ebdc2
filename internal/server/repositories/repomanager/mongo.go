package repomanager

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/dmitrijs2005/sessionguard/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/sessionguard/internal/server/repositories/users"
)

// MongoRepositoryManager stores users and sessions in one MongoDB database.
// Units of work run sequentially without a multi-document transaction, so a
// standalone server is enough.
type MongoRepositoryManager struct {
	client   *mongo.Client
	users    *users.MongoRepository
	sessions *sessions.MongoRepository
}

func NewMongoRepositoryManager(ctx context.Context, uri string, database string) (*MongoRepositoryManager, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(database)
	m := &MongoRepositoryManager{
		client:   client,
		users:    users.NewMongoRepository(db),
		sessions: sessions.NewMongoRepository(db),
	}

	if err := m.users.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	if err := m.sessions.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

func (m *MongoRepositoryManager) Users() users.Repository       { return m.users }
func (m *MongoRepositoryManager) Sessions() sessions.Repository { return m.sessions }

func (m *MongoRepositoryManager) InTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	return fn(ctx, Repositories{Users: m.users, Sessions: m.sessions})
}

func (m *MongoRepositoryManager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *MongoRepositoryManager) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
