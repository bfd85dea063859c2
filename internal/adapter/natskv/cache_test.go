package natskv

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

type mockKV struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMockKV() *mockKV { return &mockKV{data: make(map[string][]byte)} }

func (m *mockKV) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return &mockEntry{key: key, value: v}, nil
}

func (m *mockKV) Put(_ context.Context, key string, value []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return 1, nil
}

func (m *mockKV) Delete(_ context.Context, key string, _ ...jetstream.KVDeleteOpt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return jetstream.ErrKeyNotFound
	}
	delete(m.data, key)
	return nil
}

type mockEntry struct {
	key   string
	value []byte
}

func (e *mockEntry) Bucket() string                  { return "test" }
func (e *mockEntry) Key() string                     { return e.key }
func (e *mockEntry) Value() []byte                   { return e.value }
func (e *mockEntry) Revision() uint64                { return 1 }
func (e *mockEntry) Created() time.Time              { return time.Time{} }
func (e *mockEntry) Delta() uint64                   { return 0 }
func (e *mockEntry) Operation() jetstream.KeyValueOp { return jetstream.KeyValuePut }

var validKey = regexp.MustCompile(`^[-/_=.a-zA-Z0-9]+$`)

func TestEncodeKey(t *testing.T) {
	for _, key := range []string{"leaderboard:Restaurant", "profile/abc def", "shop:delivery"} {
		enc := EncodeKey(key)
		if !validKey.MatchString(enc) {
			t.Errorf("EncodeKey(%q) = %q is not a valid KV key", key, enc)
		}
	}
	if EncodeKey("a:b") == EncodeKey("a:c") {
		t.Fatal("distinct keys must encode differently")
	}
}

func TestCache_SetGetDelete(t *testing.T) {
	kv := newMockKV()
	c := New(kv)
	ctx := context.Background()

	if err := c.Set(ctx, "leaderboard:Individual", []byte("v1"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, ok := kv.data[EncodeKey("leaderboard:Individual")]; !ok {
		t.Fatal("expected value stored under encoded key")
	}

	val, ok, err := c.Get(ctx, "leaderboard:Individual")
	if err != nil || !ok || string(val) != "v1" {
		t.Fatalf("Get = %q, %v, %v", val, ok, err)
	}

	if err := c.Delete(ctx, "leaderboard:Individual"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, "leaderboard:Individual"); ok {
		t.Fatal("expected miss after Delete")
	}
}

func TestCache_DeleteMissingIsNotAnError(t *testing.T) {
	if err := New(newMockKV()).Delete(context.Background(), "never"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCache_GetPropagatesErrors(t *testing.T) {
	kv := newMockKV()
	kv.err = errors.New("connection closed")
	_, ok, err := New(kv).Get(context.Background(), "k")
	if err == nil || ok {
		t.Fatalf("expected error, got ok=%v err=%v", ok, err)
	}
}
