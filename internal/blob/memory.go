package blob

import memorystore "medicopro/internal/infra/blob/memory"

// NewMemory returns a process-local Store.
func NewMemory() Store { return memorystore.New() }
