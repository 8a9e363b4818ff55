package repository

import "errors"

// ErrNotFound reports that the requested record does not exist. Repositories
// return it for missing rows and for guarded updates that matched nothing,
// such as consuming an already-used reset token.
var ErrNotFound = errors.New("repository: not found")
