package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/filestore/internal/client/config"
	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/server/auth"
	"github.com/dmitrijs2005/filestore/internal/server/filestore"
	"github.com/dustin/go-humanize"
)

var (
	errNotLoggedIn = errors.New("not logged in, use 'login'")
	errNoBucket    = errors.New("no bucket selected, use 'use <bucket>'")
)

type App struct {
	config  *config.Config
	reader  *bufio.Reader
	out     io.Writer
	client  *http.Client
	peer    *filestore.Peer
	user    string
	buckets []string
	bucket  string
}

func NewApp(c *config.Config) *App {
	return newApp(c, bufio.NewReader(os.Stdin), os.Stdout, &http.Client{})
}

func newApp(c *config.Config, reader *bufio.Reader, out io.Writer, client *http.Client) *App {
	return &App{config: c, reader: reader, out: out, client: client}
}

// Run logs in and serves the REPL until the user exits.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to filestore CLI (type 'help' for commands)")
	if err := a.Login(ctx); err != nil {
		fmt.Fprintln(a.out, "Error:", err)
	}
	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) status() string {
	s := a.user
	if a.bucket != "" {
		s += "@" + a.bucket
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) isLoggedIn() bool {
	return a.peer != nil
}

// Login mints tokens from the client credentials, prompting for any that
// are not configured, and discovers the buckets the server offers.
func (a *App) Login(ctx context.Context) error {
	id := a.config.ClientID
	if id == "" {
		var err error
		if id, err = GetSimpleText(a.reader, "Client id", a.out); err != nil {
			return err
		}
	}
	secret := []byte(a.config.ClientSecret)
	if len(secret) == 0 {
		var err error
		if secret, err = GetPassword("Client secret", a.out); err != nil {
			return err
		}
	}

	tokens := auth.NewServiceTokenSource(id, secret, []string{common.ScopeCommon}, a.config.TokenValidity)
	peer := filestore.NewPeer(a.config.ServerURI, a.client, tokens)
	names, err := peer.Buckets(ctx)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	a.peer, a.user, a.buckets = peer, id, names
	a.bucket = ""
	if slices.Contains(names, a.config.Bucket) {
		a.bucket = a.config.Bucket
	}
	fmt.Fprintf(a.out, "Logged in as %s, %d bucket(s) available\n", id, len(names))
	return nil
}

func (a *App) Logout(_ context.Context) error {
	a.peer, a.user, a.buckets, a.bucket = nil, "", nil, ""
	return nil
}

func (a *App) Buckets(_ context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	for _, name := range a.buckets {
		mark := " "
		if name == a.bucket {
			mark = "*"
		}
		fmt.Fprintf(a.out, "%s %s\n", mark, name)
	}
	return nil
}

func (a *App) Use(_ context.Context, args []string) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	if len(args) != 1 {
		return errors.New("usage: use <bucket>")
	}
	if !slices.Contains(a.buckets, args[0]) {
		return fmt.Errorf("bucket %s: %w", args[0], common.ErrorNotFound)
	}
	a.bucket = args[0]
	return nil
}

func (a *App) remote(name string) *filestore.Remote {
	return filestore.NewRemote(name, nil, a.peer, nil)
}

// current returns the selected bucket.
func (a *App) current() (*filestore.Remote, error) {
	if !a.isLoggedIn() {
		return nil, errNotLoggedIn
	}
	if a.bucket == "" {
		return nil, errNoBucket
	}
	return a.remote(a.bucket), nil
}

func (a *App) List(ctx context.Context, args []string) error {
	b, err := a.current()
	if err != nil {
		return err
	}
	dir := "/"
	if len(args) > 0 {
		dir = args[0]
	}
	names, err := b.List(ctx, dir)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(a.out, n)
	}
	return nil
}

func (a *App) Info(ctx context.Context, args []string) error {
	b, err := a.current()
	if err != nil {
		return err
	}
	page, err := b.ListInfo(ctx, filestore.ListInfoQuery{IncludeOwner: true, Filenames: args})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILENAME\tSIZE\tOWNER\tSHA256")
	for _, it := range page.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			it.Filename, humanize.Bytes(uint64(it.FileInfo.Props.Size)), it.Owner, it.FileInfo.Hash.SHA256)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d file(s)\n", page.Total)
	return nil
}

func overwriteFlag(args []string, n int) (bool, error) {
	switch {
	case len(args) == n:
		return false, nil
	case len(args) == n+1 && args[n] == "overwrite":
		return true, nil
	default:
		return false, errors.New("unexpected arguments: " + strings.Join(args, " "))
	}
}

func (a *App) Upload(ctx context.Context, args []string) error {
	b, err := a.current()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return errors.New("usage: upload <path> [overwrite]")
	}
	overwrite, err := overwriteFlag(args, 1)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	sf, err := b.Upload(ctx, f, filepath.Base(args[0]), a.user, filestore.UploadOptions{Overwrite: overwrite})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Uploaded %s (%s)\n", sf.Filename, humanize.Bytes(uint64(sf.FileInfo.Props.Size)))
	return nil
}

func (a *App) Move(ctx context.Context, args []string) error {
	b, err := a.current()
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return errors.New("usage: move <file> <bucket> [overwrite]")
	}
	overwrite, err := overwriteFlag(args, 2)
	if err != nil {
		return err
	}
	if _, err := b.Move(ctx, args[0], a.remote(args[1]), a.user, filestore.MoveOptions{Overwrite: overwrite}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Moved %s to %s\n", args[0], args[1])
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	b, err := a.current()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("usage: delete <file>")
	}
	if err := b.Delete(ctx, args[0], a.user); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s\n", args[0])
	return nil
}

func (a *App) Expose(ctx context.Context, args []string) error {
	b, err := a.current()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("usage: expose <file>")
	}
	uri, err := b.Expose(ctx, args[0], a.user)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, uri)
	return nil
}
