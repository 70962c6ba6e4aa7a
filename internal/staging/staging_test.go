package staging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/stockscan/stockscan/internal/kvstore"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type countingRecorder struct {
	mu      sync.Mutex
	removed map[string]int
}

func (r *countingRecorder) ObserveStagingRemoved(reason string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.removed == nil {
		r.removed = map[string]int{}
	}
	r.removed[reason] += count
}

func newTestJanitor(t *testing.T, store kvstore.Store, cfg Config) (*Janitor, *kvstore.Adapter, *countingRecorder) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	kv := kvstore.NewAdapter(store, kvstore.WithLogger(logger))
	rec := &countingRecorder{}
	j := NewJanitor(kv, logger, cfg, rec)
	j.now = func() time.Time { return testNow }
	return j, kv, rec
}

func scanIDAt(ts time.Time) string {
	return fmt.Sprintf("scan-%d-abcd1234", ts.UnixMilli())
}

func TestNewScanIDCarriesTimestamp(t *testing.T) {
	id := NewScanID(testNow)
	require.Regexp(t, `^scan-\d{13}-[0-9a-f]{8}$`, id)

	created, ok := TimestampFromKey(BaseKey(KindScanResult, id) + "_user-1")
	require.True(t, ok)
	require.True(t, created.Equal(testNow))
}

func TestTimestampFromKey(t *testing.T) {
	cases := []struct {
		key string
		ok  bool
	}{
		{key: "staging:scan_result:scan-1715342400000-abcd1234_u1", ok: true},
		{key: "staging:original_image:scan-1715342400000", ok: true},
		{key: "staging:scan_result:temp-7f3a", ok: false},
		{key: "staging:scan_result:scan-17153424000001", ok: false},
		{key: "inventory_items_u1", ok: false},
	}
	for _, tc := range cases {
		_, ok := TimestampFromKey(tc.key)
		require.Equal(t, tc.ok, ok, tc.key)
	}
}

func TestSweepRemovesOnlyExpiredEntries(t *testing.T) {
	ctx := context.Background()
	j, kv, rec := newTestJanitor(t, kvstore.NewMemoryStore(0), Config{})

	old := scanIDAt(testNow.Add(-25 * time.Hour))
	fresh := scanIDAt(testNow.Add(-time.Hour))
	require.NoError(t, j.StageScanResult(ctx, "u1", old, json.RawMessage(`{"lines":[]}`)))
	require.NoError(t, j.StageScanResult(ctx, "u1", fresh, json.RawMessage(`{"lines":[]}`)))
	require.NoError(t, kvstore.Write(ctx, kv, "staging:scan_result:legacy", "u1", "x"))
	require.NoError(t, kvstore.Write(ctx, kv, "inventory_items", "u1", []string{}))

	report, err := j.Sweep(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 3, report.Scanned)
	require.Equal(t, 1, report.Expired)
	require.Equal(t, 1, report.Removed())
	require.Equal(t, 2, report.Kept)

	keys, err := kv.Store().Keys(ctx, "")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		kvstore.Key(BaseKey(KindScanResult, fresh), "u1"),
		kvstore.Key("staging:scan_result:legacy", "u1"),
		kvstore.Key("inventory_items", "u1"),
	}, keys)
	require.Equal(t, 1, rec.removed["expired"])
}

func TestAggressiveSweepRemovesUnparseableKeys(t *testing.T) {
	ctx := context.Background()
	j, kv, rec := newTestJanitor(t, kvstore.NewMemoryStore(0), Config{})

	fresh := scanIDAt(testNow.Add(-time.Hour))
	require.NoError(t, j.StageScanResult(ctx, "u1", fresh, json.RawMessage(`{}`)))
	require.NoError(t, kvstore.Write(ctx, kv, "staging:scan_result:legacy", "u1", "x"))

	report, err := j.Sweep(ctx, true)
	require.NoError(t, err)
	require.Equal(t, 1, report.Unparseable)
	require.Equal(t, 1, report.Removed())

	keys, err := kv.Store().Keys(ctx, Prefix)
	require.NoError(t, err)
	require.Equal(t, []string{kvstore.Key(BaseKey(KindScanResult, fresh), "u1")}, keys)
	require.Equal(t, 1, rec.removed["unparseable"])
}

func TestClearSessionRemovesAllArtefacts(t *testing.T) {
	ctx := context.Background()
	j, kv, _ := newTestJanitor(t, kvstore.NewMemoryStore(0), Config{})
	scanID := scanIDAt(testNow)
	other := scanIDAt(testNow.Add(time.Second))

	require.NoError(t, j.StageScanResult(ctx, "u1", scanID, json.RawMessage(`{"a":1}`)))
	stored, err := j.StageImage(ctx, "u1", scanID, KindOriginalImage, "data:image/png;base64,AAAA")
	require.NoError(t, err)
	require.True(t, stored)
	stored, err = j.StageImage(ctx, "u1", scanID, KindCompressedImage, "data:image/jpeg;base64,BBBB")
	require.NoError(t, err)
	require.True(t, stored)
	require.NoError(t, j.StageScanResult(ctx, "u1", other, json.RawMessage(`{"b":2}`)))

	require.NoError(t, j.ClearSession(ctx, "u1", scanID))

	_, err = j.LoadScanResult(ctx, "u1", scanID)
	require.ErrorIs(t, err, ErrScanResultNotFound)
	keys, err := kv.Store().Keys(ctx, Prefix)
	require.NoError(t, err)
	require.Equal(t, []string{kvstore.Key(BaseKey(KindScanResult, other), "u1")}, keys)
}

func TestClearSessionWithoutScanIDIsNoop(t *testing.T) {
	ctx := context.Background()
	j, kv, _ := newTestJanitor(t, kvstore.NewMemoryStore(0), Config{})
	require.NoError(t, j.StageScanResult(ctx, "u1", scanIDAt(testNow), json.RawMessage(`{}`)))

	require.NoError(t, j.ClearSession(ctx, "u1", "  "))

	keys, err := kv.Store().Keys(ctx, Prefix)
	require.NoError(t, err)
	require.Len(t, keys, 1)
}

func TestStageImageSkipsOversizePreview(t *testing.T) {
	j, _, _ := newTestJanitor(t, kvstore.NewMemoryStore(0), Config{ImageMaxBytes: 16})

	stored, err := j.StageImage(context.Background(), "u1", scanIDAt(testNow), KindOriginalImage, strings.Repeat("A", 64))
	require.NoError(t, err)
	require.False(t, stored)

	_, err = j.StageImage(context.Background(), "u1", scanIDAt(testNow), KindScanResult, "x")
	require.Error(t, err)
}

func TestStagingRejectsUnsafeScanIDs(t *testing.T) {
	j, _, _ := newTestJanitor(t, kvstore.NewMemoryStore(0), Config{})
	err := j.StageScanResult(context.Background(), "u1", "a:b", json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrInvalidScanID)
	err = j.StageScanResult(context.Background(), "u1", "", json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrScanIDRequired)
}

func TestScanIDsCannotReachAnotherUsersKeys(t *testing.T) {
	ctx := context.Background()
	j, kv, _ := newTestJanitor(t, kvstore.NewMemoryStore(0), Config{})

	require.NoError(t, j.StageScanResult(ctx, "v_a", "s", json.RawMessage(`{"secret":"victim invoice"}`)))

	_, err := j.LoadScanResult(ctx, "a", "s_v")
	require.ErrorIs(t, err, ErrInvalidScanID)
	err = j.StageScanResult(ctx, "a", "s_v", json.RawMessage(`{"secret":"overwritten"}`))
	require.ErrorIs(t, err, ErrInvalidScanID)
	_, err = j.StageImage(ctx, "a", "s_v", KindOriginalImage, "data:image/png;base64,AAAA")
	require.ErrorIs(t, err, ErrInvalidScanID)
	require.ErrorIs(t, j.ClearSession(ctx, "a", "s_v"), ErrInvalidScanID)

	got, err := j.LoadScanResult(ctx, "v_a", "s")
	require.NoError(t, err)
	require.JSONEq(t, `{"secret":"victim invoice"}`, string(got))
	keys, err := kv.Store().Keys(ctx, Prefix)
	require.NoError(t, err)
	require.Len(t, keys, 1)
}

func TestCapacityRecoveryFreesStaleStaging(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(256)
	j, kv, _ := newTestJanitor(t, store, Config{})
	kv.SetCapacityRecovery(j.RecoverCapacity)

	require.NoError(t, store.Set(ctx, "staging:scan_result:legacy_u1", []byte(strings.Repeat("x", 150))))

	payload := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		payload = append(payload, strings.Repeat("y", 20))
	}
	require.NoError(t, kvstore.Write(ctx, kv, "inventory_items", "u1", payload))

	keys, err := store.Keys(ctx, Prefix)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestCapacityRecoveryGivesUpAfterOneRetry(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(64)
	j, kv, _ := newTestJanitor(t, store, Config{})
	kv.SetCapacityRecovery(j.RecoverCapacity)

	err := kvstore.Write(ctx, kv, "inventory_items", "u1", strings.Repeat("z", 128))
	require.ErrorIs(t, err, kvstore.ErrCapacityExceeded)
}

func TestSweepAgainstRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	j, _, _ := newTestJanitor(t, kvstore.NewRedisStore(client), Config{})

	old := scanIDAt(testNow.Add(-48 * time.Hour))
	require.NoError(t, j.StageScanResult(ctx, "u1", old, json.RawMessage(`{}`)))
	require.NoError(t, j.StageScanResult(ctx, "u2", scanIDAt(testNow), json.RawMessage(`{}`)))

	report, err := j.Sweep(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, report.Expired)
	require.False(t, mr.Exists(kvstore.Key(BaseKey(KindScanResult, old), "u1")))
	require.True(t, mr.Exists(kvstore.Key(BaseKey(KindScanResult, scanIDAt(testNow)), "u2")))
}
