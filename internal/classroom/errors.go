package classroom

import (
	"errors"
	"fmt"
)

// Categories. Every error returned by a Session operation wraps exactly one of these.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidState     = errors.New("invalid state")
	ErrUnknownTarget    = errors.New("unknown target")
	ErrInvalidInput     = errors.New("invalid input")
)

var (
	ErrNoActivePoll       = fmt.Errorf("%w: no active poll", ErrInvalidState)
	ErrAlreadyVoted       = fmt.Errorf("%w: participant already voted", ErrInvalidState)
	ErrOptionOutOfRange   = fmt.Errorf("%w: option index out of range", ErrInvalidState)
	ErrUnknownParticipant = fmt.Errorf("%w: participant not found", ErrUnknownTarget)
	ErrChatDisabled       = fmt.Errorf("%w: chat is disabled", ErrPermissionDenied)
	ErrInvalidName        = fmt.Errorf("%w: display name is required", ErrInvalidInput)
	ErrInvalidPoll        = fmt.Errorf("%w: invalid poll", ErrInvalidInput)
)
