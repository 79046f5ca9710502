package moderr

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every moderation component.
var (
	ErrUnauthorized              = errors.New("unauthorized")
	ErrForbidden                 = errors.New("forbidden")
	ErrInsufficientBotPermission = errors.New("insufficient bot permission")
	ErrInvalidFormat             = errors.New("invalid format")
	ErrOutOfRange                = errors.New("out of range")
	ErrNotFound                  = errors.New("not found")
	ErrTransientIO               = errors.New("transient io failure")
	ErrUnsupported               = errors.New("unsupported on this platform")
)

// Kind names an error class of the taxonomy.
type Kind string

const (
	KindNone                      Kind = ""
	KindUnauthorized              Kind = "unauthorized"
	KindForbidden                 Kind = "forbidden"
	KindInsufficientBotPermission Kind = "insufficient_bot_permission"
	KindInvalidFormat             Kind = "invalid_format"
	KindOutOfRange                Kind = "out_of_range"
	KindNotFound                  Kind = "not_found"
	KindTransientIO               Kind = "transient_io"
	KindUnsupported               Kind = "unsupported"
	KindUnknown                   Kind = "unknown"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrUnauthorized, KindUnauthorized},
	{ErrForbidden, KindForbidden},
	{ErrInsufficientBotPermission, KindInsufficientBotPermission},
	{ErrInvalidFormat, KindInvalidFormat},
	{ErrOutOfRange, KindOutOfRange},
	{ErrNotFound, KindNotFound},
	{ErrTransientIO, KindTransientIO},
	{ErrUnsupported, KindUnsupported},
}

// KindOf classifies err against the taxonomy.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// IsTerminal reports whether err must be reported to the invoking actor
// without attempting the action.
func IsTerminal(err error) bool {
	switch KindOf(err) {
	case KindUnauthorized, KindForbidden, KindInsufficientBotPermission, KindInvalidFormat, KindOutOfRange,
		KindUnsupported:
		return true
	}
	return false
}

// Transient wraps a collaborator failure as ErrTransientIO.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransientIO, err)
}

// Explain returns the sentence shown to the actor for err.
func Explain(err error) string {
	switch KindOf(err) {
	case KindNone:
		return ""
	case KindUnauthorized:
		return "You do not have permission to use this command."
	case KindForbidden:
		return "You cannot moderate this member. They may have higher roles or be the server owner."
	case KindInsufficientBotPermission:
		return "I cannot act on this member. They may have higher roles than me."
	case KindInvalidFormat:
		return "Invalid duration. Examples: 10m, 1h, 2d"
	case KindOutOfRange:
		return "Invalid duration. Must be between 1 second and 28 days."
	case KindNotFound:
		return "The requested record was not found."
	case KindTransientIO:
		return "The platform or database did not respond, please try again."
	case KindUnsupported:
		return "This command is not available on this platform."
	default:
		return "An error occurred while executing the command."
	}
}

// ErrDuplicate is returned by stores when a unique key already exists.
var ErrDuplicate = errors.New("duplicate key")
