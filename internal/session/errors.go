package session

import (
	"errors"
	"fmt"

	"github.com/lox/rockpapercrane/internal/rules"
)

// Code identifies an error category on the wire.
type Code string

const (
	CodeSelfChallenge         Code = "self_challenge"
	CodeBotOpponent           Code = "bot_opponent"
	CodeDuplicateSession      Code = "duplicate_session"
	CodeSessionNotFound       Code = "session_not_found"
	CodeNotParticipant        Code = "not_participant"
	CodeUnauthorizedResponder Code = "unauthorized_responder"
	CodeWrongPhase            Code = "wrong_phase"
	CodeAlreadyChose          Code = "already_chose"
	CodeNotYourTurn           Code = "not_your_turn"
	CodeInvalidUpgradeItem    Code = "invalid_upgrade_item"
	CodeInvalidItem           Code = "invalid_item"
	CodeInternal              Code = "internal"
)

// Error is a user-attributable engine error. Two errors match under
// errors.Is when their codes are equal, so wrapped errors with extra
// context still compare equal to the sentinels below.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

var (
	ErrSelfChallenge         = &Error{Code: CodeSelfChallenge, Message: "you cannot challenge yourself"}
	ErrBotOpponent           = &Error{Code: CodeBotOpponent, Message: "you cannot challenge a bot"}
	ErrDuplicateSession      = &Error{Code: CodeDuplicateSession, Message: "you already have an active game with this player"}
	ErrSessionNotFound       = &Error{Code: CodeSessionNotFound, Message: "this game is no longer active"}
	ErrNotParticipant        = &Error{Code: CodeNotParticipant, Message: "you are not part of this game"}
	ErrUnauthorizedResponder = &Error{Code: CodeUnauthorizedResponder, Message: "only the challenged player can respond to this challenge"}
	ErrWrongPhase            = &Error{Code: CodeWrongPhase, Message: "that action is not allowed right now"}
	ErrAlreadyChose          = &Error{Code: CodeAlreadyChose, Message: "you have already made your choice"}
	ErrNotYourTurn           = &Error{Code: CodeNotYourTurn, Message: "it's not your turn to upgrade"}
	ErrInvalidUpgradeItem    = &Error{Code: CodeInvalidUpgradeItem, Message: "that item is already upgraded"}
	ErrInvalidItem           = &Error{Code: CodeInvalidItem, Message: "that item is not available in this game"}

	// ErrSessionClosed is the WrongPhase error of a finished session.
	ErrSessionClosed = &Error{Code: CodeWrongPhase, Message: "this game is already over"}
)

// errorf returns an error of the same code as base with a detailed message.
func errorf(base *Error, format string, args ...any) error {
	return &Error{Code: base.Code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the wire code from err. Errors that did not originate in
// the engine report CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// ParseItem resolves a user supplied item name, reporting unknown names as
// ErrInvalidItem.
func ParseItem(name string) (rules.Item, error) {
	item, err := rules.ParseItem(name)
	if err != nil {
		return rules.NoItem, errorf(ErrInvalidItem, "%q is not an item", name)
	}
	return item, nil
}
