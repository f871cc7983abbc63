package errors

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind classifies failures so callers can pick a recovery strategy
type Kind string

const (
	KindNetwork   Kind = "network"
	KindFloodWait Kind = "flood_wait"
	KindAuth      Kind = "auth"
	KindNotFound  Kind = "not_found"
	KindFatal     Kind = "fatal"
	KindUnknown   Kind = "unknown"
)

// Error carries a failure classification alongside the underlying cause
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap classifies an existing error
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the classification of err, or KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether an error kind should be retried.
// Flood-wait is deliberately not retryable here: it is recovered by a
// dedicated long sleep at the orchestration level, not by generic backoff.
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindNetwork, KindUnknown:
		return true
	default:
		return false
	}
}

// FloodWaitError signals that the remote service demanded a cooldown.
// The transport layer constructs it from the structured RPC error when
// one is available.
type FloodWaitError struct {
	Wait time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("FLOOD_WAIT_%d", int(e.Wait.Seconds()))
}

// DefaultFloodWait is used when a flood signal carries no parsable duration.
const DefaultFloodWait = 300 * time.Second

var floodWaitPattern = regexp.MustCompile(`FLOOD_WAIT[ _](\d+)`)

// FloodWait reports whether err is a flood-control signal and the wait it
// requests. It prefers the structured FloodWaitError; when only a textual
// marker is present, the wait-seconds value is parsed from the message and
// DefaultFloodWait is returned if the value is missing or unparsable.
func FloodWait(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}

	var fw *FloodWaitError
	if errors.As(err, &fw) {
		if fw.Wait > 0 {
			return fw.Wait, true
		}
		return DefaultFloodWait, true
	}

	msg := err.Error()
	if m := floodWaitPattern.FindStringSubmatch(msg); m != nil {
		if secs, perr := strconv.Atoi(m[1]); perr == nil && secs > 0 {
			return time.Duration(secs) * time.Second, true
		}
		return DefaultFloodWait, true
	}
	if strings.Contains(msg, "FLOOD_WAIT") {
		return DefaultFloodWait, true
	}

	return 0, false
}
