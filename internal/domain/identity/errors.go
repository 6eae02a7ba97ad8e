package identity

import "github.com/go-faster/errors"

// ErrUserNotFound is returned by UserStore.Find for unknown user ids.
var ErrUserNotFound = errors.New("user not found")
