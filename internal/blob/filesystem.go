package blob

import "medicopro/internal/infra/blob/fs"

// NewFilesystem returns a Store rooted at root.
func NewFilesystem(root string) (Store, error) {
	return fs.New(root)
}
