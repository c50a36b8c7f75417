package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"channeld/pkg/config"
	"channeld/pkg/notify"
	"channeld/pkg/store"
)

func openStore(t *testing.T) {
	t.Helper()
	require.NoError(t, store.Open(t.TempDir(), 0))
	t.Cleanup(func() { _ = store.Close() })
}

func TestStartValidation(t *testing.T) {
	cancel, err := Start(context.Background(), config.OutboxConfig{Enabled: false})
	require.NoError(t, err)
	cancel()

	_, err = Start(context.Background(), config.OutboxConfig{Enabled: true, Cron: "not a cron"})
	require.Error(t, err)
}

func TestRunOnceKeepsEntriesWhileBrokerDown(t *testing.T) {
	openStore(t)
	notify.SetGlobal(nil)

	require.NoError(t, store.AppendOutbox([]byte(`{"type":"channel-new"}`)))

	cfg := config.OutboxConfig{Enabled: true, MaxAge: config.Duration(time.Hour)}
	require.NoError(t, RunOnce(cfg))

	entries, err := store.ListOutbox()
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRunOncePurgesExpiredEntries(t *testing.T) {
	openStore(t)
	notify.SetGlobal(nil)

	require.NoError(t, store.AppendOutbox([]byte(`{"type":"channel-new"}`)))
	require.NoError(t, store.AppendOutbox([]byte(`{"type":"message-new"}`)))
	time.Sleep(5 * time.Millisecond)

	cfg := config.OutboxConfig{Enabled: true, MaxAge: config.Duration(time.Millisecond)}
	require.NoError(t, RunOnce(cfg))

	entries, err := store.ListOutbox()
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRunOnceEmptyOutboxIsNoop(t *testing.T) {
	openStore(t)
	notify.SetGlobal(nil)
	require.NoError(t, RunOnce(config.OutboxConfig{Enabled: true}))
}
