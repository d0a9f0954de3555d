package builder

import "errors"

var (
	ErrUnknownApp        = errors.New("unknown application")
	ErrDuplicateApp      = errors.New("application registered twice")
	ErrInvalidStackSize  = errors.New("invalid stack size")
	ErrInvalidArguments  = errors.New("invalid application arguments")
	ErrNoStdio           = errors.New("stdio backend unavailable")
	ErrUnsupportedOption = errors.New("option not supported by the board")
)
