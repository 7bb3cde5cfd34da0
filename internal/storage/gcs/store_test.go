package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestStore(t *testing.T, handler http.Handler, cfg Config) *Store {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, cfg)
	require.NoError(t, err)
	return store
}

func TestPutObjectUploadsSnapshot(t *testing.T) {
	const csv = "Title,Aura,Category,Description,Latitude,Longitude,Price,Images,Link\n"
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/sites-bucket/o")
		assert.Equal(t, "exports/sites.csv", r.URL.Query().Get("name"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), csv)
		assert.Contains(t, string(body), "text/csv")
		_, _ = fmt.Fprintln(w, `{"name": "exports/sites.csv", "bucket": "sites-bucket"}`)
	})
	store := newTestStore(t, handler, Config{Bucket: "sites-bucket", Prefix: "/exports/"})

	uri, err := store.PutObject(context.Background(), "sites.csv", "text/csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, "gs://sites-bucket/exports/sites.csv", uri)
}

func TestPutObjectServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	store := newTestStore(t, handler, Config{Bucket: "sites-bucket"})

	_, err := store.PutObject(context.Background(), "sites.csv", "text/csv", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Config{Bucket: "b"})
	assert.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	_, err = New(client, Config{})
	assert.Error(t, err)
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "sites.csv", (&Store{}).ObjectName("/sites.csv"))
	assert.Equal(t, "a/b/sites.csv", (&Store{prefix: "a/b"}).ObjectName("sites.csv"))
}
