package telegram

import (
	"fmt"

	"github.com/gotd/td/tgerr"

	apperrors "github.com/harhitroot/tgexport/pkg/errors"
)

// wrapErr maps RPC failures onto the exporter's error taxonomy. Flood-wait
// signals become structured FloodWaitError values so the pipeline can read
// the requested wait without string parsing.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}

	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &apperrors.FloodWaitError{Wait: wait}
	}

	if tgerr.Is(err, "AUTH_KEY_UNREGISTERED", "SESSION_REVOKED", "USER_DEACTIVATED") {
		return apperrors.Wrap(apperrors.KindAuth, op, err)
	}
	if tgerr.Is(err, "CHANNEL_INVALID", "CHANNEL_PRIVATE", "USERNAME_NOT_OCCUPIED", "PEER_ID_INVALID") {
		return apperrors.Wrap(apperrors.KindNotFound, op, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
