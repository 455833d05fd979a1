package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/admin-session/broadcast"
	"github.com/jrsteele09/admin-session/session"
	"github.com/jrsteele09/admin-session/sessionapi"
)

func TestListen_RemoteLogout(t *testing.T) {
	hub := broadcast.NewHub()
	f := newTestFixture(t)
	f.api.loginToken = signedToken(t, session.DefaultAdminScope)
	require.NoError(t, f.session.Login(context.Background(), sessionapi.Credentials{}))
	require.Equal(t, session.True, f.session.State().LoggedIn)
	calls := f.api.networkCalls()

	stop, err := f.session.Listen(context.Background(), hub.Open("auth-channel"))
	require.NoError(t, err)
	defer stop()

	require.NoError(t, hub.Open("auth-channel").Post(context.Background(), broadcast.LogoutMessage))

	require.Eventually(t, func() bool {
		return f.session.State().LoggedIn == session.False
	}, waitTimeout, time.Millisecond)
	require.Eventually(t, func() bool {
		return f.navigator.Last() == session.DefaultPublicPath
	}, waitTimeout, time.Millisecond)

	require.Empty(t, f.store.Get())
	require.True(t, f.session.State().IsLoggingOut)
	require.Equal(t, calls, f.api.networkCalls())
}

func TestListen_IgnoresOtherMessagesAndStops(t *testing.T) {
	hub := broadcast.NewHub()
	f := newTestFixture(t)
	f.store.Set("keep")

	stop, err := f.session.Listen(context.Background(), hub.Open("auth-channel"))
	require.NoError(t, err)

	sender := hub.Open("auth-channel")
	require.NoError(t, sender.Post(context.Background(), "hello"))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, "keep", f.store.Get())

	stop()
	stop()
	require.NoError(t, sender.Post(context.Background(), broadcast.LogoutMessage))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, "keep", f.store.Get())
	require.Empty(t, f.navigator.Paths())
}

func TestListen_SubscribeError(t *testing.T) {
	hub := broadcast.NewHub()
	ch := hub.Open("auth-channel")
	require.NoError(t, ch.Close())

	f := newTestFixture(t)
	_, err := f.session.Listen(context.Background(), ch)
	require.ErrorIs(t, err, broadcast.ErrClosed)
}
