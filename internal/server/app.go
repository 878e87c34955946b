// Package server initializes and runs the filestore server. It opens the
// metadata store, builds the bucket registry and serves the HTTP API until
// the process is signalled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/logging"
	"github.com/dmitrijs2005/filestore/internal/server/access"
	"github.com/dmitrijs2005/filestore/internal/server/auth"
	"github.com/dmitrijs2005/filestore/internal/server/bytestore"
	"github.com/dmitrijs2005/filestore/internal/server/config"
	"github.com/dmitrijs2005/filestore/internal/server/filestore"
	"github.com/dmitrijs2005/filestore/internal/server/httpapi"
	"github.com/dmitrijs2005/filestore/internal/server/metastore"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/dmitrijs2005/filestore/internal/server/repositories/repomanager"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	meta, err := app.openMetastore(ctx)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry, err := filestore.NewRegistry(ctx, registryConfig(c), meta, logger, filestore.NewMetrics(reg))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("bucket registry init error: %w", err)
	}

	app.server = httpapi.NewServer(registry, []byte(c.SecretKey), logger, reg)
	return app, nil
}

// openMetastore connects to Postgres and migrates it when a DSN is set;
// otherwise metadata lives in memory for the life of the process.
func (app *App) openMetastore(ctx context.Context) (metastore.Store, error) {
	if app.config.DatabaseDSN == "" {
		app.logger.Warn(ctx, "no database configured, keeping metadata in memory")
		return metastore.NewMemoryStore(access.DefaultTypes(), app.config.FilestoreEnabled), nil
	}

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}
	return metastore.NewSQLStore(db, repos, access.DefaultTypes(), app.config.FilestoreEnabled), nil
}

func registryConfig(c *config.Config) filestore.RegistryConfig {
	rc := filestore.RegistryConfig{
		HostLocal:     c.FilestoreEnabled,
		ExcludedNames: c.ExcludedNames,
		ExcludedDirs:  c.ExcludedDirs,
		S3: bytestore.S3Options{
			Region:    c.S3Region,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Endpoint:  c.S3BaseEndpoint,
		},
	}

	for _, b := range c.Buckets {
		rc.Buckets = append(rc.Buckets, filestore.BucketSpec{
			Name:    b.Name,
			Enabled: b.IsEnabled(),
			Policy: models.BucketPolicy{
				StorageURI:     b.ActualURI(c.FilestoreActual),
				ExposeURI:      b.ExposeURI,
				AcceptExt:      b.AcceptExt,
				AllowDelete:    b.AllowDelete,
				AllowOverwrite: b.AllowOverwrite,
			},
		})
	}

	if c.RemoteURI != "" {
		tokens := auth.NewServiceTokenSource(c.RemoteClientID, []byte(c.RemoteClientSecret),
			[]string{common.ScopeCommon, common.ScopeAdmin}, c.TokenValidityDuration)
		rc.Peer = filestore.NewPeer(c.RemoteURI, &http.Client{}, tokens)
	}
	return rc
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx, app.config.EndpointAddrHTTP); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or the process is signalled.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.Close()
}

// Close releases the database connection, if any.
func (app *App) Close() {
	if app.db == nil {
		return
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "closing database", "error", err)
	}
	app.db = nil
}
