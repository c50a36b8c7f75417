// Package validation holds the static input limits applied before any
// store call. Authorization and validation failures are decided before any
// mutating write, so a rejected request never leaves partial state behind.
package validation

import (
	"fmt"
	"strings"

	"channeld/pkg/errs"
)

const (
	MaxChannelName = 128
	MaxDescription = 1024
	MaxMessageBody = 8192
	MaxReaction    = 32
)

// ChannelName rejects empty or oversized channel names.
func ChannelName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: channel name is required", errs.ErrInvalidArgument)
	}
	if len(name) > MaxChannelName {
		return fmt.Errorf("%w: channel name exceeds %d bytes", errs.ErrInvalidArgument, MaxChannelName)
	}
	return nil
}

// Description rejects oversized descriptions; empty is allowed and later
// replaced by the default placeholder.
func Description(desc string) error {
	if len(desc) > MaxDescription {
		return fmt.Errorf("%w: description exceeds %d bytes", errs.ErrInvalidArgument, MaxDescription)
	}
	return nil
}

// MessageBody rejects empty or oversized message bodies.
func MessageBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: message body is required", errs.ErrInvalidArgument)
	}
	if len(body) > MaxMessageBody {
		return fmt.Errorf("%w: message body exceeds %d bytes", errs.ErrInvalidArgument, MaxMessageBody)
	}
	return nil
}

// ReactionToken rejects empty or oversized reaction tokens.
func ReactionToken(tok string) error {
	if strings.TrimSpace(tok) == "" {
		return fmt.Errorf("%w: reaction is required", errs.ErrInvalidArgument)
	}
	if len(tok) > MaxReaction {
		return fmt.Errorf("%w: reaction exceeds %d bytes", errs.ErrInvalidArgument, MaxReaction)
	}
	return nil
}
