package domain

// Store is the unit-of-work surface the transaction processor runs against.
// WithTransaction executes fn atomically: every repository call made through
// the store passed to fn either commits as a whole or leaves no trace.
type Store interface {
	Account() AccountRepository
	Transaction() TransactionRepository
	WithTransaction(fn func(Store) error) error
}
