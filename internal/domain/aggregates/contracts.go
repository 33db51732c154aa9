package aggregates

// WriteTxOwnership says who opens the transaction around a write.
type WriteTxOwnership string

const (
	// WriteTxOwnedByAggregate: callers never pass a transaction in; the
	// aggregate opens, commits and rolls back its own.
	WriteTxOwnedByAggregate WriteTxOwnership = "aggregate_owned"
)

// ReadPolicy limits which reads an aggregate may perform.
type ReadPolicy string

const (
	// ReadPolicyInvariantScoped: only reads needed to decide a write.
	ReadPolicyInvariantScoped ReadPolicy = "invariant_scoped_reads"
	// ReadPolicyTableRepoQueries: listing and hydration reads stay on table repos.
	ReadPolicyTableRepoQueries ReadPolicy = "table_repo_queries"
)

// LockingPolicy names how concurrent writers to the same row are resolved.
type LockingPolicy string

const (
	// LockingRowVersionCAS: every touched row is updated with
	// WHERE row_version = expected and the loser gets an OptimisticLockError.
	LockingRowVersionCAS LockingPolicy = "row_version_cas"
)

// Contract describes an aggregate's transaction, read and locking rules.
type Contract struct {
	Name             string
	WriteTxOwnership WriteTxOwnership
	ReadPolicy       ReadPolicy
	Locking          LockingPolicy
	// Tables lists every table the aggregate writes.
	Tables []string
	Notes  string
}

type Aggregate interface {
	Contract() Contract
}

func (c Contract) RequiresAggregateOwnedTx() bool {
	return c.WriteTxOwnership == WriteTxOwnedByAggregate
}

// Writes reports whether table is owned by this aggregate.
func (c Contract) Writes(table string) bool {
	for _, t := range c.Tables {
		if t == table {
			return true
		}
	}
	return false
}
