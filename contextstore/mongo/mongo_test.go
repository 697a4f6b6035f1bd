package mongo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/opencode-ai/orchestrator/contextstore"
)

var (
	testClient    *mongo.Client
	testContainer testcontainers.Container
	skipTests     bool
)

func setupMongo() {
	ctx := context.Background()

	var containerErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				containerErr = fmt.Errorf("docker not available: %v", r)
			}
		}()
		req := testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections"),
			Tmpfs:        map[string]string{"/data/db": "rw"},
		}
		testContainer, containerErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()
	if containerErr != nil {
		skipTests = true
		return
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		skipTests = true
		return
	}
	port, err := testContainer.MappedPort(ctx, "27017")
	if err != nil {
		skipTests = true
		return
	}

	uri := fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	testClient, err = mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		skipTests = true
	}
}

func TestMain(m *testing.M) {
	setupMongo()
	if testContainer != nil {
		defer func() { _ = testContainer.Terminate(context.Background()) }()
	}
	m.Run()
}

func newTestDurable(t *testing.T) *Durable {
	t.Helper()
	if skipTests {
		t.Skip("docker not available, skipping mongo-backed context store tests")
	}
	coll := testClient.Database("orchestrator_test").Collection(fmt.Sprintf("contexts_%d", time.Now().UnixNano()))
	d, err := New(context.Background(), coll)
	require.NoError(t, err)
	return d
}

func TestPutGetRoundTrips(t *testing.T) {
	d := newTestDurable(t)
	ctx := context.Background()

	require.NoError(t, d.Put(ctx, "sess:1", []byte(`{"foo":"bar"}`), time.Hour))

	got, err := d.Get(ctx, "sess:1")
	require.NoError(t, err)
	require.Equal(t, `{"foo":"bar"}`, string(got))
}

func TestGetMissingKeyReturnsErrNotFound(t *testing.T) {
	d := newTestDurable(t)

	_, err := d.Get(context.Background(), "sess:missing")
	require.ErrorIs(t, err, contextstore.ErrNotFound)
}

func TestDeleteRemovesKey(t *testing.T) {
	d := newTestDurable(t)
	ctx := context.Background()

	require.NoError(t, d.Put(ctx, "sess:2", []byte("payload"), time.Hour))
	require.NoError(t, d.Delete(ctx, "sess:2"))

	_, err := d.Get(ctx, "sess:2")
	require.ErrorIs(t, err, contextstore.ErrNotFound)
}

func TestExtendTTLUpdatesExpiry(t *testing.T) {
	d := newTestDurable(t)
	ctx := context.Background()

	require.NoError(t, d.Put(ctx, "sess:3", []byte("payload"), time.Minute))
	require.NoError(t, d.ExtendTTL(ctx, "sess:3", time.Hour))

	got, err := d.Get(ctx, "sess:3")
	require.NoError(t, err)
	require.Equal(t, "payload", string(got))
}

func TestKeysMatchesGlobPattern(t *testing.T) {
	d := newTestDurable(t)
	ctx := context.Background()

	require.NoError(t, d.Put(ctx, "sess:a", []byte("1"), time.Hour))
	require.NoError(t, d.Put(ctx, "sess:b", []byte("2"), time.Hour))
	require.NoError(t, d.Put(ctx, "other:c", []byte("3"), time.Hour))

	keys, err := d.Keys(ctx, "sess:*")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"sess:a", "sess:b"}, keys)
}
