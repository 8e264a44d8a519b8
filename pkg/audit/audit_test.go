package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainRecorderLinksEntries(t *testing.T) {
	rec := NewChainRecorder()

	require.NoError(t, rec.Record(context.Background(), Entry{
		Action: "create", Module: "funds", Detail: "account created", EntityID: "acc-1", EntityType: "account", ActorID: "user-1",
	}))
	require.NoError(t, rec.Record(context.Background(), Entry{
		Action: "post", Module: "funds", Detail: "movement posted", EntityID: "mov-1", EntityType: "fund_movement", ActorID: "user-1",
	}))

	entries := rec.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, entries[0].Hash, entries[1].PreviousHash)
	assert.True(t, VerifyChain(entries))
}

func TestChainRecorderNormalizesMissingActor(t *testing.T) {
	rec := NewChainRecorder()

	require.NoError(t, rec.Record(context.Background(), Entry{
		Action: "delete", Module: "pettycash", EntityID: "box-1", EntityType: "cash_box",
	}))

	entries := rec.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, Unattributed, entries[0].ActorID)
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	rec := NewChainRecorder()
	for i := 0; i < 3; i++ {
		require.NoError(t, rec.Record(context.Background(), Entry{
			Action: "post", Module: "funds", EntityID: "mov", EntityType: "fund_movement",
		}))
	}

	entries := rec.Entries()
	entries[1].Detail = "rewritten history"
	assert.False(t, VerifyChain(entries))
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, Entry) error {
	return errors.New("sink unavailable")
}

func TestEmitSwallowsRecorderFailures(t *testing.T) {
	// Must not panic or propagate: audit failures never fail the operation.
	Emit(context.Background(), failingRecorder{}, slog.Default(), Entry{Action: "post", Module: "funds"})
	Emit(context.Background(), nil, nil, Entry{Action: "post", Module: "funds"})
}

func TestSQLiteRecorderResumesChain(t *testing.T) {
	path := t.TempDir() + "/audit.db"

	rec, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, rec.Record(context.Background(), Entry{
		Action: "create", Module: "deposits", EntityID: "dep-1", EntityType: "deposit", ActorID: "user-2",
		Metadata: map[string]string{"currency": "ARS"},
	}))
	require.NoError(t, rec.Close())

	rec, err = OpenSQLite(path)
	require.NoError(t, err)
	defer rec.Close()

	require.NoError(t, rec.Record(context.Background(), Entry{
		Action: "cancel", Module: "deposits", EntityID: "dep-1", EntityType: "deposit", ActorID: "user-2",
	}))

	entries, err := rec.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entries[0].Hash, entries[1].PreviousHash)
	assert.Equal(t, map[string]string{"currency": "ARS"}, entries[0].Metadata)
	assert.True(t, VerifyChain(entries))
}
