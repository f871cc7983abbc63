package telegram

import (
	"errors"
	"testing"
	"time"

	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/harhitroot/tgexport/pkg/errors"
)

func TestWrapErrFloodWait(t *testing.T) {
	err := wrapErr("get history", tgerr.New(420, "FLOOD_WAIT_45"))

	var fw *apperrors.FloodWaitError
	require.ErrorAs(t, err, &fw)
	assert.Equal(t, 45*time.Second, fw.Wait)

	wait, ok := apperrors.FloodWait(err)
	assert.True(t, ok)
	assert.Equal(t, 45*time.Second, wait)
}

func TestWrapErrAuth(t *testing.T) {
	err := wrapErr("get history", tgerr.New(401, "AUTH_KEY_UNREGISTERED"))
	assert.Equal(t, apperrors.KindAuth, apperrors.KindOf(err))
}

func TestWrapErrNotFound(t *testing.T) {
	err := wrapErr("resolve username", tgerr.New(400, "USERNAME_NOT_OCCUPIED"))
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestWrapErrPassthrough(t *testing.T) {
	cause := errors.New("connection reset")
	err := wrapErr("get history", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, apperrors.KindUnknown, apperrors.KindOf(err))

	assert.NoError(t, wrapErr("noop", nil))
}
