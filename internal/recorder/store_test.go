package recorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) (*Store, *TapeStore) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	tape, err := NewTapeStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		tape.Close()
	})
	return store, tape
}

func TestRunLifecycle(t *testing.T) {
	store, _ := openStores(t)

	cfg := map[string]any{"session": map[string]any{"seed": 7}}
	require.NoError(t, store.BeginRun("r1", "exp", 7, cfg))

	info, err := store.GetRun("r1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, info.Status)
	assert.Equal(t, int64(7), info.Seed)
	assert.NotEmpty(t, info.Config)

	summary := map[string]any{"trades": 3}
	require.NoError(t, store.FinalizeRun("r1", 3, "0.91", "zip", summary))

	info, err = store.GetRun("r1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusDone, info.Status)
	assert.Equal(t, int64(3), info.Trades)
	assert.Equal(t, "0.91", info.Efficiency)
	assert.Equal(t, "zip", info.BestStrategy)
	assert.NotNil(t, info.FinishedAt)

	runs, err := store.ListRuns()
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestGetRunUnknown(t *testing.T) {
	store, _ := openStores(t)
	_, err := store.GetRun("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	err = store.FinalizeRun("nope", 0, "", "", nil)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSinkBuffersTrades(t *testing.T) {
	store, tape := openStores(t)
	require.NoError(t, store.BeginRun("r1", "exp", 1, nil))

	sink := NewSink(store, tape)
	for tick := int64(1); tick <= 5; tick++ {
		require.NoError(t, sink.RecordTrade(TradeRecord{
			RunID: "r1", Tick: tick, Price: 100 + tick, Qty: 1,
			BuyTraderID: "B00", SellTraderID: "S00",
		}))
	}

	// nothing lands until flush
	trades, err := tape.Trades("r1")
	require.NoError(t, err)
	assert.Empty(t, trades)

	require.NoError(t, sink.Flush())
	trades, err = tape.Trades("r1")
	require.NoError(t, err)
	require.Len(t, trades, 5)
	assert.Equal(t, int64(101), trades[0].Price)
	assert.Equal(t, int64(105), trades[4].Price)
}

func TestSnapshotsRoundTrip(t *testing.T) {
	store, tape := openStores(t)
	sink := NewSink(store, tape)

	for tick := int64(100); tick <= 300; tick += 100 {
		require.NoError(t, sink.RecordSnapshot(SnapshotRecord{
			RunID: "r1", Tick: tick,
			BestBid: 95, HasBid: true, BestAsk: 105, HasAsk: true,
			BidDepth: 4, AskDepth: 6, Fundamental: 99,
		}))
	}
	snaps, err := store.Snapshots("r1")
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, int64(100), snaps[0].Tick)
	assert.Equal(t, int64(99), snaps[0].Fundamental)
}
