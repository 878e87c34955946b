package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/filestore/internal/dbx"
	"github.com/dmitrijs2005/filestore/internal/server/repositories/buckets"
	"github.com/dmitrijs2005/filestore/internal/server/repositories/interests"
	"github.com/dmitrijs2005/filestore/internal/server/repositories/storedfiles"
	"github.com/dmitrijs2005/filestore/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Buckets(db dbx.DBTX) buckets.Repository
	StoredFiles(db dbx.DBTX) storedfiles.Repository
	Interests(db dbx.DBTX) interests.Repository
}
