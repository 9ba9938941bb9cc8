package alarming

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/weather-monitor/internal/weather"
)

// fakeRedis keeps values in a map. Keys in expired are returned by SCAN but
// have no value, as when a key expires between SCAN and GET.
type fakeRedis struct {
	values  map[string]string
	ttls    map[string]time.Duration
	expired []string
	execErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Pipelined(_ context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error) {
	if err := fn(fakePipe{f: f}); err != nil {
		return nil, err
	}
	return nil, f.execErr
}

func (f *fakeRedis) Scan(_ context.Context, _ uint64, match string, _ int64) *redis.ScanCmd {
	prefix := strings.TrimSuffix(match, "*")
	var keys []string
	for k := range f.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	keys = append(keys, f.expired...)
	sort.Strings(keys)
	return redis.NewScanCmdResult(keys, 0, nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

// fakePipe applies writes straight to the fake. Only Set and Del are used.
type fakePipe struct {
	redis.Pipeliner
	f *fakeRedis
}

func (p fakePipe) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	p.f.values[key] = string(value.([]byte))
	p.f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (p fakePipe) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(p.f.values, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestStateManager_SaveAndLoad(t *testing.T) {
	rdb := newFakeRedis()
	now := time.Date(2024, 5, 21, 10, 0, 0, 0, time.UTC)
	sm := NewStateManager(rdb, time.Hour, clockwork.NewFakeClockAt(now))

	states := []State{
		{City: "Delhi", Kind: weather.AlertHighTemperature, Count: 2},
		{City: "Mumbai", Kind: weather.AlertHighTemperature, Count: 1},
	}
	require.NoError(t, sm.SaveStates(context.Background(), states))

	key := StateKey("Delhi", weather.AlertHighTemperature)
	assert.Equal(t, time.Hour, rdb.ttls[key])
	var stored storedState
	require.NoError(t, json.Unmarshal([]byte(rdb.values[key]), &stored))
	assert.True(t, now.Equal(stored.UpdatedAt))

	loaded, err := sm.LoadStates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, states, loaded)
}

func TestStateManager_ZeroCountDeletesKey(t *testing.T) {
	rdb := newFakeRedis()
	sm := NewStateManager(rdb, time.Hour, clockwork.NewFakeClock())
	ctx := context.Background()

	require.NoError(t, sm.SaveStates(ctx, []State{{City: "Delhi", Kind: weather.AlertHighTemperature, Count: 3}}))
	require.Len(t, rdb.values, 1)

	require.NoError(t, sm.SaveStates(ctx, []State{{City: "Delhi", Kind: weather.AlertHighTemperature, Count: 0}}))
	assert.Empty(t, rdb.values)

	loaded, err := sm.LoadStates(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestStateManager_LoadSkipsExpiredKeys(t *testing.T) {
	rdb := newFakeRedis()
	sm := NewStateManager(rdb, time.Hour, clockwork.NewFakeClock())
	ctx := context.Background()

	require.NoError(t, sm.SaveStates(ctx, []State{{City: "Chennai", Kind: weather.AlertHighTemperature, Count: 1}}))
	rdb.expired = []string{StateKey("Agra", weather.AlertHighTemperature)}

	loaded, err := sm.LoadStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []State{{City: "Chennai", Kind: weather.AlertHighTemperature, Count: 1}}, loaded)
}

func TestStateManager_LoadCorruptValue(t *testing.T) {
	rdb := newFakeRedis()
	rdb.values[StateKey("Delhi", weather.AlertHighTemperature)] = "{not json"
	sm := NewStateManager(rdb, time.Hour, clockwork.NewFakeClock())

	_, err := sm.LoadStates(context.Background())
	assert.Error(t, err)
}

func TestStateManager_SaveError(t *testing.T) {
	rdb := newFakeRedis()
	rdb.execErr = errors.New("connection refused")
	sm := NewStateManager(rdb, time.Hour, clockwork.NewFakeClock())

	err := sm.SaveStates(context.Background(), []State{{City: "Delhi", Kind: weather.AlertHighTemperature, Count: 1}})
	assert.ErrorContains(t, err, "connection refused")
}
