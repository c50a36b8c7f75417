package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"channeld/pkg/errs"
)

func TestChannelName(t *testing.T) {
	require.NoError(t, ChannelName("general"))
	require.ErrorIs(t, ChannelName(""), errs.ErrInvalidArgument)
	require.ErrorIs(t, ChannelName("   "), errs.ErrInvalidArgument)
	require.ErrorIs(t, ChannelName(strings.Repeat("x", MaxChannelName+1)), errs.ErrInvalidArgument)
}

func TestDescription(t *testing.T) {
	require.NoError(t, Description(""))
	require.NoError(t, Description("a place for things"))
	require.ErrorIs(t, Description(strings.Repeat("x", MaxDescription+1)), errs.ErrInvalidArgument)
}

func TestMessageBody(t *testing.T) {
	require.NoError(t, MessageBody("hi"))
	require.ErrorIs(t, MessageBody(""), errs.ErrInvalidArgument)
	require.ErrorIs(t, MessageBody("\t\n "), errs.ErrInvalidArgument)
	require.ErrorIs(t, MessageBody(strings.Repeat("x", MaxMessageBody+1)), errs.ErrInvalidArgument)
}

func TestReactionToken(t *testing.T) {
	require.NoError(t, ReactionToken("+1"))
	require.ErrorIs(t, ReactionToken(""), errs.ErrInvalidArgument)
	require.ErrorIs(t, ReactionToken(strings.Repeat("x", MaxReaction+1)), errs.ErrInvalidArgument)
}
