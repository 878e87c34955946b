// Package httpapi exposes the bucket registry over HTTP. The same routes
// serve API callers and peer components proxying through a remote bucket.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/logging"
	"github.com/dmitrijs2005/filestore/internal/netx"
	"github.com/dmitrijs2005/filestore/internal/server/filestore"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxMemory bounds the in-memory part of a multipart upload; the rest
// spills to temporary files.
const maxMemory = 32 << 20

const shutdownTimeout = 10 * time.Second

type Server struct {
	registry *filestore.Registry
	secret   []byte
	logger   logging.Logger
	gatherer prometheus.Gatherer
}

// NewServer serves registry. A nil gatherer disables /metrics.
func NewServer(registry *filestore.Registry, secret []byte, logger logging.Logger, gatherer prometheus.Gatherer) *Server {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Server{registry: registry, secret: secret, logger: logger.With("module", "http_server"), gatherer: gatherer}
}

// Run serves on address until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Run(ctx context.Context, address string) error {
	listen, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: shutdownTimeout}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	user, admin := common.ScopeCommon, common.ScopeAdmin

	mux.HandleFunc("GET "+filestore.APIPrefix+"/buckets", s.authenticate(user, s.handleBuckets))
	mux.HandleFunc("POST "+filestore.APIPrefix+"/{bucket}/upload", s.authenticate(user, s.handleUpload))
	mux.HandleFunc("POST "+filestore.APIPrefix+"/{bucket}/move", s.authenticate(user, s.handleMove))
	mux.HandleFunc("POST "+filestore.APIPrefix+"/{bucket}/delete", s.authenticate(user, s.handleDelete))
	mux.HandleFunc("GET "+filestore.APIPrefix+"/{bucket}/ls_fs", s.authenticate(user, s.handleListFS))
	mux.HandleFunc("GET "+filestore.APIPrefix+"/{bucket}/ls", s.authenticate(user, s.handleList))
	mux.HandleFunc("GET "+filestore.APIPrefix+"/{bucket}/expose", s.authenticate(user, s.handleExpose))
	mux.HandleFunc("GET "+filestore.APIPrefix+"/{bucket}/find", s.authenticate(user, s.handleFind))
	mux.HandleFunc("POST "+filestore.APIPrefix+"/{bucket}/purge", s.authenticate(admin, s.handlePurge))
	mux.HandleFunc("POST "+filestore.APIPrefix+"/{bucket}/prune", s.authenticate(admin, s.handlePrune))

	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return s.logRequests(mux)
}

func (s *Server) bucket(w http.ResponseWriter, r *http.Request) (filestore.Bucket, bool) {
	b, err := s.registry.Get(r.PathValue("bucket"))
	if err != nil {
		netx.WriteError(w, err)
		return nil, false
	}
	return b, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if netx.StatusFor(err) == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	netx.WriteError(w, err)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode body: %s: %w", err, common.ErrorValidation)
	}
	return nil
}

// operator is the user an operation is attributed to.
func operator(user, actAs string) string {
	if actAs != "" {
		return actAs
	}
	return user
}

// handleBuckets advertises only the buckets hosted here, so peers never
// proxy through a proxy.
func (s *Server) handleBuckets(w http.ResponseWriter, _ *http.Request) {
	netx.WriteJSON(w, http.StatusOK, filestore.BucketsResponse{AvailableBuckets: s.registry.LocalNames()})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bucket(w, r)
	if !ok {
		return
	}
	user, actAs, err := actingUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		s.fail(w, r, fmt.Errorf("multipart form: %s: %w", err, common.ErrorValidation))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, fmt.Errorf("file field: %s: %w", err, common.ErrorValidation))
		return
	}
	defer file.Close()

	// multipart strips directories from the part name, so nested names
	// travel in the query
	q := r.URL.Query()
	filename := q.Get("filename")
	if filename == "" {
		filename = hdr.Filename
	}

	if !claimsFrom(r.Context()).HasScope(common.ScopeAdmin) && !b.CheckAccepts(filename) {
		s.fail(w, r, fmt.Errorf("bucket %s does not accept %s: %w", b.Name(), filename, common.ErrorValidation))
		return
	}

	overwrite, _ := strconv.ParseBool(q.Get("overwrite"))
	sf, err := b.Upload(r.Context(), file, filename, user, filestore.UploadOptions{
		Interest:  q.Get("interest"),
		Overwrite: overwrite,
		ActAs:     actAs,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, sf)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bucket(w, r)
	if !ok {
		return
	}
	user, actAs, err := actingUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req filestore.MoveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	target, err := s.registry.Get(req.ToBucket)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	sf, err := b.Move(r.Context(), req.Filename, target, user, filestore.MoveOptions{Overwrite: req.Overwrite, ActAs: actAs})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, sf)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bucket(w, r)
	if !ok {
		return
	}
	user, actAs, err := actingUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req filestore.DeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := b.Delete(r.Context(), req.Filename, operator(user, actAs)); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListFS(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bucket(w, r)
	if !ok {
		return
	}
	names, err := b.List(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, names)
}

func parsePagination(r *http.Request) (*models.Pagination, error) {
	q := r.URL.Query()
	if !q.Has("offset") && !q.Has("limit") {
		return nil, nil
	}
	p := &models.Pagination{}
	for name, dst := range map[string]*int{"offset": &p.Offset, "limit": &p.Limit} {
		if !q.Has(name) {
			continue
		}
		n, err := strconv.Atoi(q.Get(name))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer: %w", name, common.ErrorValidation)
		}
		*dst = n
	}
	return p, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bucket(w, r)
	if !ok {
		return
	}
	p, err := parsePagination(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	includeOwner, _ := strconv.ParseBool(q.Get("include_owner"))

	page, err := b.ListInfo(r.Context(), filestore.ListInfoQuery{
		IncludeOwner: includeOwner,
		Filenames:    q["filename"],
		Pagination:   p,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, page)
}

func (s *Server) handleExpose(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bucket(w, r)
	if !ok {
		return
	}
	user, actAs, err := actingUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	uri, err := b.Expose(r.Context(), r.URL.Query().Get("filename"), operator(user, actAs))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, filestore.ExposeResponse{URI: uri})
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bucket(w, r)
	if !ok {
		return
	}
	found, err := b.Find(r.Context(), r.URL.Query().Get("pattern"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, found)
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bucket(w, r)
	if !ok {
		return
	}
	user, actAs, err := actingUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := b.Purge(r.Context(), operator(user, actAs)); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bucket(w, r)
	if !ok {
		return
	}
	user, actAs, err := actingUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	report, err := b.Prune(r.Context(), operator(user, actAs))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, report)
}
