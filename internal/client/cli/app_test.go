package cli

import (
	"bufio"
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/filestore/internal/client/config"
	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/server/filestore"
	"github.com/dmitrijs2005/filestore/internal/server/httpapi"
	"github.com/dmitrijs2005/filestore/internal/server/metastore"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("cli-secret")

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	registry, err := filestore.NewRegistry(context.Background(), filestore.RegistryConfig{
		HostLocal: true,
		Buckets: []filestore.BucketSpec{
			{Name: "incoming", Enabled: true, Policy: models.BucketPolicy{StorageURI: "mem://incoming", AcceptExt: []string{".txt"}}},
			{Name: "cdn", Enabled: true, Policy: models.BucketPolicy{StorageURI: "mem://cdn", ExposeURI: "/internal/cdn"}},
		},
	}, metastore.NewMemoryStore(nil, true), nil, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(httpapi.NewServer(registry, secret, nil, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, srv *httptest.Server, input string, c *config.Config) (*App, *bytes.Buffer) {
	t.Helper()
	if c == nil {
		c = &config.Config{ClientID: "alice", ClientSecret: string(secret)}
	}
	c.ServerURI = srv.URL
	c.TokenValidity = time.Minute
	out := &bytes.Buffer{}
	return newApp(c, bufio.NewReader(strings.NewReader(input)), out, srv.Client()), out
}

func localFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestApp_RequiresLoginAndBucket(t *testing.T) {
	srv := newServer(t)
	a, _ := newTestApp(t, srv, "", nil)
	ctx := context.Background()

	assert.ErrorIs(t, a.List(ctx, nil), errNotLoggedIn)
	assert.ErrorIs(t, a.Buckets(ctx), errNotLoggedIn)

	require.NoError(t, a.Login(ctx))
	assert.ErrorIs(t, a.List(ctx, nil), errNoBucket)
	assert.ErrorIs(t, a.Use(ctx, []string{"nope"}), common.ErrorNotFound)
	assert.Error(t, a.Use(ctx, nil))
}

func TestApp_LoginPromptsForMissingCredentials(t *testing.T) {
	old := readPassword
	t.Cleanup(func() { readPassword = old })
	readPassword = func(int) ([]byte, error) { return secret, nil }

	srv := newServer(t)
	a, out := newTestApp(t, srv, "bob\n", &config.Config{Bucket: "cdn"})

	require.NoError(t, a.Login(context.Background()))
	assert.Equal(t, "bob", a.user)
	assert.Equal(t, "cdn", a.bucket)
	assert.Equal(t, []string{"cdn", "incoming"}, a.buckets)
	assert.Contains(t, out.String(), "Logged in as bob, 2 bucket(s) available")
}

func TestApp_LoginWrongSecret(t *testing.T) {
	srv := newServer(t)
	a, _ := newTestApp(t, srv, "", &config.Config{ClientID: "alice", ClientSecret: "wrong"})

	err := a.Login(context.Background())
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.False(t, a.isLoggedIn())
}

func TestApp_FileLifecycle(t *testing.T) {
	srv := newServer(t)
	a, out := newTestApp(t, srv, "", nil)
	ctx := context.Background()

	require.NoError(t, a.Login(ctx))
	require.NoError(t, a.Use(ctx, []string{"incoming"}))

	path := localFile(t, "a.txt", "hello")
	require.NoError(t, a.Upload(ctx, []string{path}))
	assert.Contains(t, out.String(), "Uploaded a.txt (5 B)")
	assert.ErrorIs(t, a.Upload(ctx, []string{path}), common.ErrorAlreadyExists)
	require.NoError(t, a.Upload(ctx, []string{path, "overwrite"}))
	assert.Error(t, a.Upload(ctx, []string{path, "force"}))

	out.Reset()
	require.NoError(t, a.List(ctx, nil))
	assert.Equal(t, "a.txt\n", out.String())

	out.Reset()
	require.NoError(t, a.Info(ctx, nil))
	assert.Contains(t, out.String(), "alice")
	assert.Contains(t, out.String(), "1 file(s)")

	require.NoError(t, a.Move(ctx, []string{"a.txt", "cdn"}))
	require.NoError(t, a.Use(ctx, []string{"cdn"}))

	out.Reset()
	require.NoError(t, a.Expose(ctx, []string{"a.txt"}))
	assert.Equal(t, "/internal/cdn/a.txt\n", out.String())

	require.NoError(t, a.Delete(ctx, []string{"a.txt"}))
	assert.ErrorIs(t, a.Delete(ctx, []string{"a.txt"}), common.ErrorNotFound)

	require.NoError(t, a.Logout(ctx))
	assert.False(t, a.isLoggedIn())
	assert.Empty(t, a.status())
}

func TestApp_RunScriptedSession(t *testing.T) {
	capturePrints(t)
	srv := newServer(t)
	a, out := newTestApp(t, srv, "use incoming\nbuckets\nexit\n", nil)

	a.Run(context.Background())

	assert.Contains(t, out.String(), "Welcome to filestore CLI")
	assert.Contains(t, out.String(), "* incoming")
	assert.Contains(t, out.String(), "  cdn")
}
