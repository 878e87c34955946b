package filestore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/netx"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

// fakePeer records the last request it saw and answers with canned bodies.
type fakePeer struct {
	t       *testing.T
	lastReq *http.Request
	body    []byte
}

func (p *fakePeer) handler() http.Handler {
	mux := http.NewServeMux()
	record := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(common.AuthorizationHeaderName) != "Bearer peer-token" {
				netx.WriteError(w, common.ErrorUnauthorized)
				return
			}
			p.lastReq = r
			next(w, r)
		}
	}

	mux.HandleFunc("GET /v1/filestore/buckets", record(func(w http.ResponseWriter, r *http.Request) {
		netx.WriteJSON(w, http.StatusOK, BucketsResponse{AvailableBuckets: []string{"incoming", "cdn"}})
	}))
	mux.HandleFunc("POST /v1/filestore/{bucket}/upload", record(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		require.NoError(p.t, err)
		p.body, _ = io.ReadAll(f)
		name := r.URL.Query().Get("filename")
		if name == "" {
			name = hdr.Filename
		}
		netx.WriteJSON(w, http.StatusOK, models.StoredFile{ID: "sf-1", Filename: name, BucketID: r.PathValue("bucket")})
	}))
	mux.HandleFunc("POST /v1/filestore/{bucket}/move", record(func(w http.ResponseWriter, r *http.Request) {
		var req MoveRequest
		require.NoError(p.t, json.NewDecoder(r.Body).Decode(&req))
		if req.Filename == "taken.txt" {
			netx.WriteError(w, common.ErrorAlreadyExists)
			return
		}
		netx.WriteJSON(w, http.StatusOK, models.StoredFile{ID: "sf-1", Filename: req.Filename, BucketID: req.ToBucket})
	}))
	mux.HandleFunc("POST /v1/filestore/{bucket}/delete", record(func(w http.ResponseWriter, r *http.Request) {
		var req DeleteRequest
		require.NoError(p.t, json.NewDecoder(r.Body).Decode(&req))
		if req.Filename == "missing.txt" {
			netx.WriteError(w, common.ErrorNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("GET /v1/filestore/{bucket}/ls_fs", record(func(w http.ResponseWriter, r *http.Request) {
		netx.WriteJSON(w, http.StatusOK, []string{"a.txt", "b.txt"})
	}))
	mux.HandleFunc("GET /v1/filestore/{bucket}/ls", record(func(w http.ResponseWriter, r *http.Request) {
		netx.WriteJSON(w, http.StatusOK, models.Page{
			Items: []models.StoredFileView{{Filename: "a.txt", Owner: "alice"}},
			Total: 1,
		})
	}))
	mux.HandleFunc("GET /v1/filestore/{bucket}/expose", record(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("actual_user") != "alice" {
			netx.WriteError(w, common.ErrorPermissionDenied)
			return
		}
		netx.WriteJSON(w, http.StatusOK, ExposeResponse{URI: "/internal/cdn/" + r.URL.Query().Get("filename")})
	}))
	return mux
}

func newRemote(t *testing.T, name string) (*Remote, *fakePeer) {
	t.Helper()
	p := &fakePeer{t: t}
	srv := httptest.NewServer(p.handler())
	t.Cleanup(srv.Close)
	peer := NewPeer(srv.URL, srv.Client(), staticToken("peer-token"))
	return NewRemote(name, []string{".txt"}, peer, nil), p
}

func TestRemote_Upload(t *testing.T) {
	b, p := newRemote(t, "incoming")

	sf, err := b.Upload(context.Background(), strings.NewReader("payload"), "a.txt", "svc",
		UploadOptions{ActAs: "alice", Interest: "in-1", Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, "a.txt", sf.Filename)
	assert.Equal(t, "incoming", sf.BucketID)
	assert.Equal(t, "payload", string(p.body))

	q := p.lastReq.URL.Query()
	assert.Equal(t, "alice", q.Get("actual_user"))
	assert.Equal(t, "in-1", q.Get("interest"))
	assert.Equal(t, "true", q.Get("overwrite"))
}

func TestRemote_UploadKeepsDirectories(t *testing.T) {
	b, p := newRemote(t, "incoming")

	sf, err := b.Upload(context.Background(), strings.NewReader("payload"), "2024/05/a.txt", "alice", UploadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "2024/05/a.txt", sf.Filename)
	assert.Equal(t, "2024/05/a.txt", p.lastReq.URL.Query().Get("filename"))
}

func TestRemote_Move(t *testing.T) {
	b, p := newRemote(t, "incoming")
	target, _ := newRemote(t, "cdn")

	sf, err := b.Move(context.Background(), "a.txt", target, "alice", MoveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "cdn", sf.BucketID)
	assert.Equal(t, "/v1/filestore/incoming/move", p.lastReq.URL.Path)

	_, err = b.Move(context.Background(), "taken.txt", target, "alice", MoveOptions{})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestRemote_Delete(t *testing.T) {
	b, _ := newRemote(t, "incoming")

	require.NoError(t, b.Delete(context.Background(), "a.txt", "alice"))
	assert.ErrorIs(t, b.Delete(context.Background(), "missing.txt", "alice"), common.ErrorNotFound)
}

func TestRemote_Listings(t *testing.T) {
	b, p := newRemote(t, "incoming")

	names, err := b.List(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)

	page, err := b.ListInfo(context.Background(), ListInfoQuery{
		IncludeOwner: true,
		Filenames:    []string{"a.txt", "b.txt"},
		Pagination:   &models.Pagination{Offset: 0, Limit: 10},
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "alice", page.Items[0].Owner)

	q := p.lastReq.URL.Query()
	assert.Equal(t, "true", q.Get("include_owner"))
	assert.Equal(t, []string{"a.txt", "b.txt"}, q["filename"])
	assert.Equal(t, "10", q.Get("limit"))
}

func TestRemote_Expose(t *testing.T) {
	b, _ := newRemote(t, "cdn")

	uri, err := b.Expose(context.Background(), "a.txt", "alice")
	require.NoError(t, err)
	assert.Equal(t, "/internal/cdn/a.txt", uri)

	_, err = b.Expose(context.Background(), "a.txt", "bob")
	assert.ErrorIs(t, err, common.ErrorPermissionDenied)
}

func TestRemote_AdministrativeOpsNotImplemented(t *testing.T) {
	b, _ := newRemote(t, "incoming")
	ctx := context.Background()

	assert.ErrorIs(t, b.Purge(ctx, "alice"), common.ErrorNotImplemented)
	_, err := b.Find(ctx, "*")
	assert.ErrorIs(t, err, common.ErrorNotImplemented)
	_, err = b.Prune(ctx, "alice")
	assert.ErrorIs(t, err, common.ErrorNotImplemented)
}

func TestRemote_CheckAcceptsUsesLocalConfig(t *testing.T) {
	b, _ := newRemote(t, "incoming")
	assert.True(t, b.CheckAccepts("a.txt"))
	assert.False(t, b.CheckAccepts("a.pdf"))
}

func TestPeer_Unauthorized(t *testing.T) {
	p := &fakePeer{t: t}
	srv := httptest.NewServer(p.handler())
	defer srv.Close()

	_, err := NewPeer(srv.URL, srv.Client(), staticToken("wrong")).Buckets(context.Background())
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}
