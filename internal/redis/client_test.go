package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saviobatista/rid-tracker/internal/remoteid"
	"github.com/saviobatista/rid-tracker/internal/testutils"
)

// fakeRedis is an in-memory RedisClientInterface.
type fakeRedis struct {
	hashes  map[string]map[string]string
	sets    map[string]map[string]bool
	expires map[string]time.Duration
	err     error
	closed  bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		hashes:  make(map[string]map[string]string),
		sets:    make(map[string]map[string]bool),
		expires: make(map[string]time.Duration),
	}
}

func (f *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.err)
}

func (f *fakeRedis) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	if err := ctx.Err(); err != nil {
		return redis.NewIntResult(0, err)
	}
	h := f.hashes[key]
	if h == nil {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	for i := 0; i+1 < len(values); i += 2 {
		v := values[i+1]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		h[fmt.Sprint(values[i])] = fmt.Sprint(v)
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (f *fakeRedis) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	out := make(map[string]string)
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return redis.NewMapStringStringResult(out, f.err)
}

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.expires[key] = expiration
	return redis.NewBoolResult(true, f.err)
}

func (f *fakeRedis) SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	s := f.sets[key]
	if s == nil {
		s = make(map[string]bool)
		f.sets[key] = s
	}
	for _, m := range members {
		s[fmt.Sprint(m)] = true
	}
	return redis.NewIntResult(int64(len(members)), f.err)
}

func (f *fakeRedis) SMembers(ctx context.Context, key string) *redis.StringSliceCmd {
	var out []string
	for m := range f.sets[key] {
		out = append(out, m)
	}
	sort.Strings(out)
	return redis.NewStringSliceResult(out, f.err)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if err := ctx.Err(); err != nil {
		return redis.NewIntResult(0, err)
	}
	for _, k := range keys {
		delete(f.hashes, k)
		delete(f.sets, k)
	}
	return redis.NewIntResult(int64(len(keys)), f.err)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestNew_InvalidAddress(t *testing.T) {
	client, err := New("invalid:address:12345")
	if err == nil {
		t.Error("New() should fail with invalid address")
		client.Close()
		return
	}
	if client != nil {
		t.Error("New() should return nil client on error")
	}
}

func TestClient_Close(t *testing.T) {
	fake := newFakeRedis()
	client := NewWithClient(fake)
	if err := client.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if !fake.closed {
		t.Error("Expected underlying client to be closed")
	}
}

func TestClient_StoreAndGetBroadcaster(t *testing.T) {
	fake := newFakeRedis()
	client := NewWithClient(fake)
	ctx := context.Background()

	msgs := []remoteid.Message{
		&remoteid.BasicID{ID: []byte("SN-1"), UavType: remoteid.UavTypeCopter},
		&remoteid.Location{Latitude: 47.5, GeoAltitude: 120},
		&remoteid.Raw{TypeCode: 0x0A, Data: []byte{1, 2, 3}},
	}
	if err := client.StoreMessages(ctx, "DJI-001", msgs); err != nil {
		t.Fatalf("StoreMessages() failed: %v", err)
	}

	if ttl := fake.expires[BroadcasterKey("DJI-001")]; ttl != broadcasterTTL {
		t.Errorf("Expected TTL %v, got %v", broadcasterTTL, ttl)
	}

	got, err := client.GetBroadcaster(ctx, "DJI-001")
	if err != nil {
		t.Fatalf("GetBroadcaster() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(got))
	}
	loc, ok := got[remoteid.KindLocation].(*remoteid.Location)
	if !ok || loc.Latitude != 47.5 || loc.GeoAltitude != 120 {
		t.Errorf("Unexpected location: %+v", got[remoteid.KindLocation])
	}
	raw, ok := got[remoteid.MessageKind(0x0A)].(*remoteid.Raw)
	if !ok || raw.TypeCode != 0x0A {
		t.Errorf("Unexpected raw message: %+v", got[remoteid.MessageKind(0x0A)])
	}

	// Replace by kind.
	if err := client.StoreMessages(ctx, "DJI-001", []remoteid.Message{&remoteid.Location{Latitude: 1}}); err != nil {
		t.Fatalf("StoreMessages() failed: %v", err)
	}
	got, _ = client.GetBroadcaster(ctx, "DJI-001")
	if got[remoteid.KindLocation].(*remoteid.Location).Latitude != 1 {
		t.Error("Expected location to be replaced")
	}
	if len(got) != 3 {
		t.Errorf("Expected other kinds to be kept, got %d entries", len(got))
	}
}

func TestClient_StoreMessages_Empty(t *testing.T) {
	fake := newFakeRedis()
	client := NewWithClient(fake)
	if err := client.StoreMessages(context.Background(), "x", nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(fake.sets) != 0 {
		t.Error("Empty batch should not register a broadcaster")
	}
}

func TestClient_StoreMessages_SkipsNil(t *testing.T) {
	fake := newFakeRedis()
	client := NewWithClient(fake)
	ctx := context.Background()
	var loc *remoteid.Location

	if err := client.StoreMessages(ctx, "a", []remoteid.Message{nil, loc}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(fake.hashes) != 0 || len(fake.sets) != 0 {
		t.Error("A batch of nil messages should not register a broadcaster")
	}

	if err := client.StoreMessages(ctx, "b", []remoteid.Message{nil, &remoteid.BasicID{}, loc}); err != nil {
		t.Fatalf("StoreMessages() failed: %v", err)
	}
	if got := fake.hashes[BroadcasterKey("b")]; len(got) != 1 {
		t.Errorf("Expected 1 stored kind, got %v", got)
	}
}

func TestClient_GetBroadcaster_Unknown(t *testing.T) {
	client := NewWithClient(newFakeRedis())
	got, err := client.GetBroadcaster(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty result, got %v", got)
	}
}

func TestClient_GetBroadcaster_BadField(t *testing.T) {
	fake := newFakeRedis()
	fake.hashes[BroadcasterKey("x")] = map[string]string{"location": "{}"}
	client := NewWithClient(fake)

	if _, err := client.GetBroadcaster(context.Background(), "x"); err == nil {
		t.Error("Expected error for non-numeric kind field")
	}
}

func TestClient_Clear(t *testing.T) {
	fake := newFakeRedis()
	client := NewWithClient(fake)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := client.StoreMessages(ctx, id, []remoteid.Message{&remoteid.BasicID{}}); err != nil {
			t.Fatalf("StoreMessages() failed: %v", err)
		}
	}
	ids, _ := client.Broadcasters(ctx)
	if len(ids) != 2 {
		t.Fatalf("Expected 2 broadcasters, got %v", ids)
	}

	if err := client.Clear(ctx); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}
	ids, _ = client.Broadcasters(ctx)
	if len(ids) != 0 {
		t.Errorf("Expected no broadcasters after clear, got %v", ids)
	}
	if len(fake.hashes) != 0 {
		t.Errorf("Expected hashes to be removed, got %v", fake.hashes)
	}
}

func TestClient_Errors(t *testing.T) {
	fake := newFakeRedis()
	fake.err = errors.New("connection refused")
	client := NewWithClient(fake)
	ctx := context.Background()

	if err := client.StoreMessages(ctx, "x", []remoteid.Message{&remoteid.BasicID{}}); err == nil {
		t.Error("Expected StoreMessages error")
	}
	if _, err := client.GetBroadcaster(ctx, "x"); err == nil {
		t.Error("Expected GetBroadcaster error")
	}
	if err := client.Clear(ctx); err == nil {
		t.Error("Expected Clear error")
	}
}

func TestMirror_AppliesInOrder(t *testing.T) {
	fake := newFakeRedis()
	mirror := NewMirror(NewWithClient(fake), 8)

	mirror.Ingest("a", []remoteid.Message{&remoteid.BasicID{}})
	mirror.Clear()
	mirror.Ingest("b", []remoteid.Message{&remoteid.SelfID{Description: "x"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		mirror.Run(ctx)
		close(done)
	}()

	err := testutils.WaitForCondition(func() bool {
		return len(mirror.ops) == 0
	}, time.Second)
	cancel()
	<-done
	if err != nil {
		t.Fatalf("mirror did not drain: %v", err)
	}

	if len(fake.hashes) != 1 {
		t.Errorf("Expected 1 mirrored broadcaster, got %d", len(fake.hashes))
	}
	if _, ok := fake.hashes[BroadcasterKey("b")]; !ok {
		t.Error("Expected broadcaster b to be mirrored")
	}
	if _, ok := fake.hashes[BroadcasterKey("a")]; ok {
		t.Error("Expected broadcaster a to be cleared")
	}
}

func TestMirror_DropsWhenFull(t *testing.T) {
	mirror := NewMirror(NewWithClient(newFakeRedis()), 1)
	mirror.Ingest("a", []remoteid.Message{&remoteid.BasicID{}})
	mirror.Ingest("b", []remoteid.Message{&remoteid.BasicID{}})

	if len(mirror.ops) != 1 {
		t.Errorf("Expected 1 queued update, got %d", len(mirror.ops))
	}
}

func TestMirror_SkipsNilMessages(t *testing.T) {
	mirror := NewMirror(NewWithClient(newFakeRedis()), 4)
	var raw *remoteid.Raw
	mirror.Ingest("a", []remoteid.Message{nil, raw})
	if len(mirror.ops) != 0 {
		t.Fatalf("Expected nothing queued, got %d", len(mirror.ops))
	}

	mirror.Ingest("b", []remoteid.Message{nil, &remoteid.BasicID{}})
	op := <-mirror.ops
	if len(op.msgs) != 1 {
		t.Errorf("Expected nil messages to be filtered, got %d", len(op.msgs))
	}
}

func TestMirror_ClearWithFullQueue(t *testing.T) {
	fake := newFakeRedis()
	client := NewWithClient(fake)
	if err := client.StoreMessages(context.Background(), "old", []remoteid.Message{&remoteid.BasicID{}}); err != nil {
		t.Fatalf("StoreMessages() failed: %v", err)
	}

	mirror := NewMirror(client, 1)
	mirror.Ingest("a", []remoteid.Message{&remoteid.BasicID{}})
	mirror.Clear()
	// Queue is still full with a's update.
	mirror.Ingest("b", []remoteid.Message{&remoteid.BasicID{}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mirror.Run(ctx)

	if len(fake.hashes) != 0 {
		t.Errorf("Expected mirror to be cleared, got %v", fake.hashes)
	}
	if ids, _ := client.Broadcasters(context.Background()); len(ids) != 0 {
		t.Errorf("Expected no broadcasters, got %v", ids)
	}
}

func TestMirror_DrainsOnShutdown(t *testing.T) {
	fake := newFakeRedis()
	mirror := NewMirror(NewWithClient(fake), 8)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Queued after the run context is gone, as the tracker does when it
	// stops its session during shutdown.
	mirror.Ingest("a", []remoteid.Message{&remoteid.BasicID{}})
	mirror.Clear()
	mirror.Ingest("b", []remoteid.Message{&remoteid.SelfID{Description: "x"}})
	mirror.Run(ctx)

	if _, ok := fake.hashes[BroadcasterKey("a")]; ok {
		t.Error("Expected broadcaster a to be cleared")
	}
	if _, ok := fake.hashes[BroadcasterKey("b")]; !ok {
		t.Error("Expected broadcaster b to be mirrored")
	}
	if len(mirror.ops) != 0 {
		t.Errorf("Expected queue to be drained, got %d", len(mirror.ops))
	}
}

func TestMirror_RetriesFailedClear(t *testing.T) {
	fake := newFakeRedis()
	client := NewWithClient(fake)
	if err := client.StoreMessages(context.Background(), "a", []remoteid.Message{&remoteid.BasicID{}}); err != nil {
		t.Fatalf("StoreMessages() failed: %v", err)
	}

	mirror := NewMirror(client, 4)
	mirror.Clear()
	fake.err = errors.New("connection refused")
	mirror.syncClear(context.Background())
	if _, ok := fake.hashes[BroadcasterKey("a")]; !ok {
		t.Fatal("Expected failed clear to leave data in place")
	}

	fake.err = nil
	mirror.syncClear(context.Background())
	if len(fake.hashes) != 0 {
		t.Errorf("Expected retried clear to remove data, got %v", fake.hashes)
	}
}
