package domain

import "context"

// Driver identifies a concrete persistent storage implementation.
type Driver string

const (
	DriverCSV      Driver = "csv"      // flat file (default)
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
	DriverBlob     Driver = "blob"     // csv object in a blob store
)

// Backend is the durable home of the patient collection. Every implementation
// reads and rewrites the collection as a whole.
type Backend interface {
	// Load returns the full collection. A missing resource yields an empty
	// collection and nil error. An unreadable resource yields an empty
	// collection together with a *DecodeError.
	Load(ctx context.Context) ([]PatientRecord, error)
	// Persist replaces the stored collection with records.
	Persist(ctx context.Context, records []PatientRecord) error
	Driver() Driver
}

// Transaction exposes the mutations a store supports within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreatePatient(Fields) (PatientRecord, error)
	UpdatePatient(idNumber string, mutator func(*PatientRecord) error) (PatientRecord, error)
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	RuleView
	Len() int
}
