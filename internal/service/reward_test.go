package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/foodshare/internal/adapter/ws"
	"github.com/Strob0t/foodshare/internal/domain"
	"github.com/Strob0t/foodshare/internal/domain/profile"
	"github.com/Strob0t/foodshare/internal/domain/reward"
	"github.com/Strob0t/foodshare/internal/port/cache"
	"github.com/Strob0t/foodshare/internal/port/messagequeue"
)

// loaderCache is a cache.Loader over a map. It does not collapse
// concurrent loads.
type loaderCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newLoaderCache() *loaderCache {
	return &loaderCache{data: make(map[string][]byte)}
}

func (c *loaderCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *loaderCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *loaderCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *loaderCache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load cache.LoadFunc) ([]byte, error) {
	if v, ok, _ := c.Get(ctx, key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return nil, err
	}
	_ = c.Set(ctx, key, v, ttl)
	return v, nil
}

func testCatalog() reward.Catalog {
	return reward.Catalog{
		reward.ShopDonor:    {{ID: "tote", Name: "Tote Bag", Price: 100}},
		reward.ShopDelivery: {{ID: "helmet", Name: "Helmet", Price: 300}},
	}
}

type rewardFixture struct {
	svc   *RewardService
	store *mockStore
	cache *loaderCache
	queue *mockQueue
	hub   *recordingHub
}

func newRewardFixture() *rewardFixture {
	f := &rewardFixture{
		store: newMockStore(),
		cache: newLoaderCache(),
		queue: &mockQueue{},
		hub:   &recordingHub{},
	}
	f.svc = NewRewardService(f.store, f.cache, f.queue, f.hub, testCatalog(), time.Minute, 10)
	return f
}

func TestRewardService_RedeemFromRoleShop(t *testing.T) {
	f := newRewardFixture()
	f.store.profiles["donor"] = &profile.Profile{ID: "donor", Role: profile.RoleRestaurant, PowerCoins: 150}
	f.store.profiles["agent"] = &profile.Profile{ID: "agent", Role: profile.RoleDelivery, PowerCoins: 500}
	ctx := context.Background()

	res, err := f.svc.Redeem(ctx, "donor", "tote")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Balance != 50 || res.Transaction.Kind != reward.KindSpend {
		t.Fatalf("unexpected result %+v", res)
	}

	// Items of the other shop are not visible.
	if _, err := f.svc.Redeem(ctx, "donor", "helmet"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other shop item, got %v", err)
	}
	if _, err := f.svc.Redeem(ctx, "agent", "helmet"); err != nil {
		t.Fatalf("agent should buy from delivery shop: %v", err)
	}

	msgs := f.queue.onSubject(messagequeue.SubjectRewardRedeemed)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 rewards.redeemed messages, got %d", len(msgs))
	}
	coins := f.hub.ofType(ws.EventCoinsChanged)
	if len(coins) != 2 || coins[0].payload.(ws.CoinsEvent).Delta != -100 {
		t.Fatalf("unexpected coin events %+v", coins)
	}
}

func TestRewardService_RedeemInsufficient(t *testing.T) {
	f := newRewardFixture()
	f.store.profiles["donor"] = &profile.Profile{ID: "donor", Role: profile.RoleIndividual, PowerCoins: 99}

	_, err := f.svc.Redeem(context.Background(), "donor", "tote")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if f.store.profiles["donor"].PowerCoins != 99 {
		t.Fatal("balance must not change")
	}
	if n := len(f.queue.onSubject(messagequeue.SubjectRewardRedeemed)); n != 0 {
		t.Fatalf("failed redemption must not publish, got %d", n)
	}
}

func TestRewardService_CreditDeliveryIsIdempotent(t *testing.T) {
	f := newRewardFixture()
	f.store.profiles["agent"] = &profile.Profile{ID: "agent", Role: profile.RoleDelivery}
	ctx := context.Background()

	p := &messagequeue.DeliveryCompletedPayload{SessionID: "s1", AgentID: "agent", TaskID: "completed-task-1", SourceID: "task-1", Food: "Rice", Coins: 75}
	for range 3 {
		if err := f.svc.CreditDelivery(ctx, p); err != nil {
			t.Fatalf("credit: %v", err)
		}
	}
	if got := f.store.profiles["agent"].PowerCoins; got != 75 {
		t.Fatalf("expected 75 coins after redelivery, got %d", got)
	}

	// Same task in a later session pays again.
	p2 := *p
	p2.SessionID = "s2"
	if err := f.svc.CreditDelivery(ctx, &p2); err != nil {
		t.Fatal(err)
	}
	if got := f.store.profiles["agent"].PowerCoins; got != 150 {
		t.Fatalf("expected 150 coins, got %d", got)
	}
}

func TestRewardService_CreditCreatesMissingProfile(t *testing.T) {
	f := newRewardFixture()
	p := &messagequeue.DeliveryCompletedPayload{SessionID: "s1", AgentID: "new-agent", SourceID: "task-2", Food: "Bread", Coins: 20}

	if err := f.svc.CreditDelivery(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	got := f.store.profiles["new-agent"]
	if got == nil || got.Role != profile.RoleDelivery || got.PowerCoins != 20 {
		t.Fatalf("unexpected profile %+v", got)
	}
}

func TestRewardService_CreditSubscriber(t *testing.T) {
	f := newRewardFixture()
	f.store.profiles["agent"] = &profile.Profile{ID: "agent", Role: profile.RoleDelivery}
	ctx := context.Background()

	if _, err := f.svc.StartCreditSubscriber(ctx); err != nil {
		t.Fatal(err)
	}
	handler := f.queue.handlers[messagequeue.SubjectDeliveryCompleted]
	if handler == nil {
		t.Fatal("subscriber not registered")
	}

	data, _ := json.Marshal(messagequeue.DeliveryCompletedPayload{SessionID: "s", AgentID: "agent", SourceID: "t", Food: "Dal", Coins: 15})
	if err := handler(ctx, messagequeue.SubjectDeliveryCompleted, data); err != nil {
		t.Fatal(err)
	}
	if got := f.store.profiles["agent"].PowerCoins; got != 15 {
		t.Fatalf("expected 15 coins, got %d", got)
	}
	if err := handler(ctx, messagequeue.SubjectDeliveryCompleted, []byte("{")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRewardService_LeaderboardCachedAndInvalidated(t *testing.T) {
	f := newRewardFixture()
	f.store.profiles["r1"] = &profile.Profile{ID: "r1", Name: "Spice Hub", Role: profile.RoleRestaurant, PowerCoins: 900}
	f.store.profiles["r2"] = &profile.Profile{ID: "r2", Name: "Bread & Co.", Role: profile.RoleRestaurant, PowerCoins: 1200}
	f.store.profiles["i1"] = &profile.Profile{ID: "i1", Name: "Priya", Role: profile.RoleIndividual, PowerCoins: 300}
	f.store.profiles["a1"] = &profile.Profile{ID: "a1", Role: profile.RoleDelivery, PowerCoins: 5000}
	ctx := context.Background()

	board, err := f.svc.Leaderboard(ctx)
	if err != nil {
		t.Fatal(err)
	}
	rest := board[profile.RoleRestaurant]
	if len(rest) != 2 || rest[0].ProfileID != "r2" || rest[0].Rank != 1 || rest[1].Rank != 2 {
		t.Fatalf("unexpected restaurant ranking %+v", rest)
	}
	if len(board[profile.RoleIndividual]) != 1 {
		t.Fatalf("unexpected individual ranking %+v", board[profile.RoleIndividual])
	}
	if _, ok := board[profile.RoleDelivery]; ok {
		t.Fatal("delivery agents are not ranked")
	}

	f.svc.Leaderboard(ctx)
	if f.store.topCalls != 2 {
		t.Fatalf("second call should be served from cache, got %d store calls", f.store.topCalls)
	}

	// Spending coins drops the cached ranking of the spender's role.
	if _, err := f.svc.Redeem(ctx, "r2", "tote"); err != nil {
		t.Fatal(err)
	}
	f.svc.Leaderboard(ctx)
	if f.store.topCalls != 3 {
		t.Fatalf("expected one reload after redeem, got %d store calls", f.store.topCalls)
	}
}

func TestRewardService_Shop(t *testing.T) {
	f := newRewardFixture()
	items, err := f.svc.Shop(reward.ShopDelivery)
	if err != nil || len(items) != 1 {
		t.Fatalf("unexpected items %+v err=%v", items, err)
	}
	if _, err := f.svc.Shop("pets"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
