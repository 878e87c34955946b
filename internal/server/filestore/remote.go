package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/logging"
	"github.com/dmitrijs2005/filestore/internal/netx"
	"github.com/dmitrijs2005/filestore/internal/server/models"
)

// TokenSource supplies bearer tokens for calls to a peer component.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Wire shapes of the peer API.
type (
	BucketsResponse struct {
		AvailableBuckets []string `json:"available_buckets"`
	}
	MoveRequest struct {
		ToBucket  string `json:"to_bucket"`
		Filename  string `json:"filename"`
		Overwrite bool   `json:"overwrite"`
	}
	DeleteRequest struct {
		Filename string `json:"filename"`
	}
	ExposeResponse struct {
		URI string `json:"uri"`
	}
)

// APIPrefix roots every peer route.
const APIPrefix = "/v1/filestore"

// Peer is an authenticated client of a peer filestore API.
type Peer struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
}

func NewPeer(baseURL string, client *http.Client, tokens TokenSource) *Peer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Peer{baseURL: baseURL, client: client, tokens: tokens}
}

func (p *Peer) do(ctx context.Context, method, route string, query url.Values, contentType string, body io.Reader, out any) error {
	u, err := url.JoinPath(p.baseURL, APIPrefix, route)
	if err != nil {
		return fmt.Errorf("remote url: %w", common.ErrorMisconfigured)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if p.tokens != nil {
		tok, err := p.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("remote token: %w", err)
		}
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+tok)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, route, err)
	}
	defer resp.Body.Close()
	return netx.DecodeResponse(resp, out)
}

func (p *Peer) postJSON(ctx context.Context, route string, query url.Values, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return p.do(ctx, http.MethodPost, route, query, "application/json", bytes.NewReader(b), out)
}

// Buckets asks the peer which buckets it hosts.
func (p *Peer) Buckets(ctx context.Context) ([]string, error) {
	var resp BucketsResponse
	if err := p.do(ctx, http.MethodGet, "buckets", nil, "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.AvailableBuckets, nil
}

// Remote proxies a bucket hosted by a peer component.
type Remote struct {
	name      string
	acceptExt []string
	peer      *Peer
	logger    logging.Logger
}

func NewRemote(name string, acceptExt []string, peer *Peer, logger logging.Logger) *Remote {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Remote{name: name, acceptExt: acceptExt, peer: peer, logger: logger.With("bucket", name, "remote", peer.baseURL)}
}

func (b *Remote) Name() string { return b.name }

func (b *Remote) CheckAccepts(filename string) bool {
	return checkAccepts(b.acceptExt, filename)
}

func (b *Remote) route(op string) string {
	return path.Join(url.PathEscape(b.name), op)
}

func actualUser(user, actAs string) url.Values {
	q := url.Values{}
	if u := actor(user, actAs); u != "" {
		q.Set("actual_user", u)
	}
	return q
}

func (b *Remote) Upload(ctx context.Context, r io.Reader, filename, user string, opts UploadOptions) (*models.StoredFile, error) {
	q := actualUser(user, opts.ActAs)
	q.Set("filename", filename)
	if opts.Interest != "" {
		q.Set("interest", opts.Interest)
	}
	if opts.Overwrite {
		q.Set("overwrite", "true")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	b.logger.Debug(ctx, "forwarding upload", "filename", filename)
	var sf models.StoredFile
	if err := b.peer.do(ctx, http.MethodPost, b.route("upload"), q, mw.FormDataContentType(), pr, &sf); err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	return &sf, nil
}

func (b *Remote) Move(ctx context.Context, filename string, target Bucket, user string, opts MoveOptions) (*models.StoredFile, error) {
	var sf models.StoredFile
	req := MoveRequest{ToBucket: target.Name(), Filename: filename, Overwrite: opts.Overwrite}
	if err := b.peer.postJSON(ctx, b.route("move"), actualUser(user, opts.ActAs), req, &sf); err != nil {
		return nil, err
	}
	return &sf, nil
}

func (b *Remote) Delete(ctx context.Context, filename, user string) error {
	return b.peer.postJSON(ctx, b.route("delete"), actualUser(user, ""), DeleteRequest{Filename: filename}, nil)
}

func (b *Remote) List(ctx context.Context, dir string) ([]string, error) {
	q := url.Values{}
	if dir != "" && dir != "/" {
		q.Set("path", dir)
	}
	names := []string{}
	if err := b.peer.do(ctx, http.MethodGet, b.route("ls_fs"), q, "", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (b *Remote) ListInfo(ctx context.Context, lq ListInfoQuery) (*models.Page, error) {
	q := url.Values{}
	q.Set("include_owner", strconv.FormatBool(lq.IncludeOwner))
	for _, f := range lq.Filenames {
		q.Add("filename", f)
	}
	if p := lq.Pagination; p != nil {
		q.Set("offset", strconv.Itoa(p.Offset))
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	var page models.Page
	if err := b.peer.do(ctx, http.MethodGet, b.route("ls"), q, "", nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (b *Remote) Expose(ctx context.Context, filename, user string) (string, error) {
	q := actualUser(user, "")
	q.Set("filename", filename)
	var resp ExposeResponse
	if err := b.peer.do(ctx, http.MethodGet, b.route("expose"), q, "", nil, &resp); err != nil {
		return "", err
	}
	return resp.URI, nil
}

func (b *Remote) Purge(context.Context, string) error {
	return fmt.Errorf("purge of remote bucket %s: %w", b.name, common.ErrorNotImplemented)
}

func (b *Remote) Find(context.Context, string) ([]models.StoredFileView, error) {
	return nil, fmt.Errorf("find in remote bucket %s: %w", b.name, common.ErrorNotImplemented)
}

func (b *Remote) Prune(context.Context, string) (*PruneReport, error) {
	return nil, fmt.Errorf("prune of remote bucket %s: %w", b.name, common.ErrorNotImplemented)
}
