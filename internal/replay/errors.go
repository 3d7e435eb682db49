package replay

import "errors"

// ErrSkipTick tells the runner to drop the current tick and continue.
var ErrSkipTick = errors.New("skip tick")
