// Package mongotest points integration tests at a MongoDB server named by
// the SESSIONGUARD_TEST_MONGO_URI environment variable. Tests that need it
// are skipped when the variable is unset.
package mongotest

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const URIEnv = "SESSIONGUARD_TEST_MONGO_URI"

const timeout = 10 * time.Second

// URI returns the server URI, skipping t when none is configured.
func URI(t testing.TB) string {
	t.Helper()
	uri := strings.TrimSpace(os.Getenv(URIEnv))
	if uri == "" {
		t.Skipf("%s is not set", URIEnv)
	}
	return uri
}

// Database returns a database with a fresh name. It is dropped when t ends.
func Database(t testing.TB) *mongo.Database {
	t.Helper()
	uri := URI(t)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, readpref.Primary()))

	db := client.Database("sg_test_" + strings.ReplaceAll(uuid.NewString(), "-", ""))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}
