package dump

import (
	"github.com/pkg/errors"
)

var (
	ErrMalformedDump = errors.New("unexpected dump output")
	ErrNoDebugLog    = errors.New("no unwinding debug records found: the profile was not recorded with debug logging")
)
