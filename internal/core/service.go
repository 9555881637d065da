package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultImportTimeout bounds one import from slot acquisition to commit.
const DefaultImportTimeout = 10 * time.Minute

// DefaultPolicies is the transaction policy of each import type when none
// is configured. The generic imports are atomic; the legacy import keeps
// the rows that succeed.
func DefaultPolicies() map[ImportType]TxPolicy {
	return map[ImportType]TxPolicy{
		ImportAdesoes:     AllOrNothing,
		ImportNovaLigacao: AllOrNothing,
		ImportLegacy:      BestEffort,
	}
}

// Options configures a Service. Zero fields select defaults.
type Options struct {
	Registry      *Registry
	Prefixes      *PrefixTable
	Policies      map[ImportType]TxPolicy
	Limiter       *ImportLimiter
	ImportTimeout time.Duration

	// Audit records imports and edits. Nil disables auditing.
	Audit *AuditLog
}

// Service provides the business operations of the adhesion service.
type Service struct {
	db DBTX
	tx Transactor

	registry      *Registry
	prefixes      *PrefixTable
	matriculas    *MatriculaGenerator
	policies      map[ImportType]TxPolicy
	limiter       *ImportLimiter
	importTimeout time.Duration
	audit         *AuditLog
}

// NewService creates a Service that reads through db and runs imports and
// other multi-statement work through tx.
func NewService(db DBTX, tx Transactor, opts Options) *Service {
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.Prefixes == nil {
		opts.Prefixes = NewPrefixTable(DefaultPrefixes())
	}
	if opts.Limiter == nil {
		opts.Limiter = NewImportLimiter(DefaultMaxConcurrentImports, DefaultImportWait)
	}
	if opts.ImportTimeout <= 0 {
		opts.ImportTimeout = DefaultImportTimeout
	}

	policies := DefaultPolicies()
	for t, p := range opts.Policies {
		if p != "" {
			policies[t] = p
		}
	}

	return &Service{
		db:            db,
		tx:            tx,
		registry:      opts.Registry,
		prefixes:      opts.Prefixes,
		matriculas:    NewMatriculaGenerator(opts.Prefixes),
		policies:      policies,
		limiter:       opts.Limiter,
		importTimeout: opts.ImportTimeout,
		audit:         opts.Audit,
	}
}

// NewPoolService wires a Service to a connection pool. Auditing is on
// unless opts carries its own AuditLog.
func NewPoolService(pool *pgxpool.Pool, opts Options) *Service {
	if opts.Audit == nil {
		opts.Audit = NewAuditLog(pool)
	}
	return NewService(pool, NewPoolTransactor(pool), opts)
}

// Registry returns the table schemas known to the service.
func (s *Service) Registry() *Registry { return s.registry }

// Prefixes returns the community prefix table.
func (s *Service) Prefixes() *PrefixTable { return s.prefixes }

// Policy returns the transaction policy applied to an import type.
func (s *Service) Policy(t ImportType) TxPolicy {
	if p, ok := s.policies[t]; ok {
		return p
	}
	return AllOrNothing
}

// Limiter returns the import limiter, used to drain imports on shutdown.
func (s *Service) Limiter() *ImportLimiter { return s.limiter }

// Ping checks database connectivity when the underlying handle supports it.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.db.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// PoolTransactor runs transactions on a pgx pool.
type PoolTransactor struct {
	pool *pgxpool.Pool
}

// NewPoolTransactor returns a Transactor backed by pool.
func NewPoolTransactor(pool *pgxpool.Pool) *PoolTransactor {
	return &PoolTransactor{pool: pool}
}

// InTx implements Transactor.
func (t *PoolTransactor) InTx(ctx context.Context, fn func(q DBTX) error) error {
	return pgx.BeginFunc(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(tx)
	})
}
