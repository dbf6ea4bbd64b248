package postgres

import (
	"context"

	"github.com/upb/tenant-platform/config"
	"github.com/upb/tenant-platform/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory creates and manages all PostgreSQL repositories
type RepositoryFactory struct {
	db     *DB
	logger *zap.Logger
}

// NewRepositoryFactory opens the connection pool and creates a factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return &RepositoryFactory{db: db, logger: logger}, nil
}

// NewRepositoryFactoryFromDB creates a factory over an existing pool
func NewRepositoryFactoryFromDB(db *DB, logger *zap.Logger) *RepositoryFactory {
	return &RepositoryFactory{db: db, logger: logger}
}

// Migrate brings the schema up to date
func (f *RepositoryFactory) Migrate(ctx context.Context) error {
	return f.db.Migrate(ctx)
}

// NewRepositories creates all repository instances.
// Sessions live in PostgreSQL unless the caller swaps in another store.
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		Companies:    NewCompanyRepository(f.db, f.logger),
		Users:        NewUserRepository(f.db, f.logger),
		AuditLogs:    NewAuditRepository(f.db, f.logger),
		Sessions:     NewSessionRepository(f.db, f.logger),
		ActionTokens: NewActionTokenRepository(f.db, f.logger),
	}
}

// GetTransactionManager returns a transaction manager bound to the pool
func (f *RepositoryFactory) GetTransactionManager() repositories.TransactionManager {
	return NewTxManager(f.db, f.logger)
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
