package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	fsotel "github.com/Strob0t/foodshare/internal/adapter/otel"
	"github.com/Strob0t/foodshare/internal/adapter/ws"
	"github.com/Strob0t/foodshare/internal/domain"
	"github.com/Strob0t/foodshare/internal/domain/profile"
	"github.com/Strob0t/foodshare/internal/domain/reward"
	"github.com/Strob0t/foodshare/internal/port/broadcast"
	"github.com/Strob0t/foodshare/internal/port/cache"
	"github.com/Strob0t/foodshare/internal/port/database"
	"github.com/Strob0t/foodshare/internal/port/messagequeue"
)

const defaultTransactionLimit = 50

// RedeemResult is the outcome of a shop purchase.
type RedeemResult struct {
	Item        reward.Item        `json:"item"`
	Balance     int                `json:"balance"`
	Transaction reward.Transaction `json:"transaction"`
}

// RewardService manages power coins, the shops and the leaderboard.
type RewardService struct {
	store          database.Store
	cache          cache.Loader
	queue          messagequeue.Queue
	hub            broadcast.Broadcaster
	catalog        reward.Catalog
	metrics        *fsotel.Metrics
	leaderboardTTL time.Duration
	limit          int
}

// NewRewardService creates a new RewardService. The leaderboard is cached
// in c for ttl and holds limit entries per role.
func NewRewardService(store database.Store, c cache.Loader, queue messagequeue.Queue, hub broadcast.Broadcaster, catalog reward.Catalog, ttl time.Duration, limit int) *RewardService {
	return &RewardService{
		store:          store,
		cache:          c,
		queue:          queue,
		hub:            hub,
		catalog:        catalog,
		leaderboardTTL: ttl,
		limit:          limit,
	}
}

// SetMetrics enables metric recording.
func (s *RewardService) SetMetrics(m *fsotel.Metrics) {
	s.metrics = m
}

// Shop returns the items of one catalog.
func (s *RewardService) Shop(shop reward.Shop) ([]reward.Item, error) {
	items, ok := s.catalog[shop]
	if !ok {
		return nil, fmt.Errorf("shop %q: %w", shop, domain.ErrNotFound)
	}
	return items, nil
}

// Redeem buys itemID from the shop matching the user's role.
// An insufficient balance fails with domain.ErrConflict and spends nothing.
func (s *RewardService) Redeem(ctx context.Context, userID, itemID string) (*RedeemResult, error) {
	ctx, span := fsotel.StartRedeemSpan(ctx, userID, itemID)
	defer span.End()

	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	shop := reward.ShopFor(p.Role)
	item, ok := s.catalog.Find(shop, itemID)
	if !ok {
		return nil, fmt.Errorf("item %s in %s shop: %w", itemID, shop, domain.ErrNotFound)
	}

	tx := reward.Transaction{
		UserID:    userID,
		Kind:      reward.KindSpend,
		Amount:    item.Price,
		Reason:    "Redeemed " + item.Name,
		Reference: item.ID,
	}
	balance, err := s.store.ApplyTransaction(ctx, &tx)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CoinsRedeemed.Add(ctx, int64(item.Price))
	}
	s.coinsChanged(ctx, p.Role, userID, balance, tx)
	s.publish(ctx, messagequeue.SubjectRewardRedeemed, messagequeue.RewardRedeemedPayload{
		UserID:        userID,
		ItemID:        item.ID,
		Price:         item.Price,
		TransactionID: tx.ID,
	})
	slog.InfoContext(ctx, "shop item redeemed", "item_id", item.ID, "price", item.Price, "balance", balance)
	return &RedeemResult{Item: item, Balance: balance, Transaction: tx}, nil
}

// CreditDelivery pays out the coins of a completed delivery. Redelivered
// messages for the same session and task are recognised and skipped.
func (s *RewardService) CreditDelivery(ctx context.Context, p *messagequeue.DeliveryCompletedPayload) error {
	if p.Coins <= 0 {
		return nil
	}
	tx := reward.Transaction{
		UserID:    p.AgentID,
		Kind:      reward.KindEarn,
		Amount:    p.Coins,
		Reason:    "Delivered " + p.Food,
		Reference: reward.DeliveryReference(p.SessionID, p.SourceID),
	}

	balance, err := s.store.ApplyTransaction(ctx, &tx)
	if errors.Is(err, domain.ErrNotFound) {
		// Agent has never opened their profile; give them one so the coins land.
		def := profile.Default(p.AgentID, "", "")
		def.Role = profile.RoleDelivery
		if cerr := s.store.CreateProfile(ctx, &def); cerr != nil && !errors.Is(cerr, domain.ErrConflict) {
			return fmt.Errorf("create agent profile: %w", cerr)
		}
		balance, err = s.store.ApplyTransaction(ctx, &tx)
	}
	switch {
	case errors.Is(err, reward.ErrDuplicateTransaction):
		slog.InfoContext(ctx, "delivery already credited", "agent_id", p.AgentID, "reference", tx.Reference)
		return nil
	case err != nil:
		return fmt.Errorf("credit delivery %s: %w", tx.Reference, err)
	}

	if s.metrics != nil {
		s.metrics.CoinsCredited.Add(ctx, int64(p.Coins))
	}
	s.coinsChanged(ctx, profile.RoleDelivery, p.AgentID, balance, tx)
	return nil
}

// StartCreditSubscriber consumes delivery.completed and credits agents.
func (s *RewardService) StartCreditSubscriber(ctx context.Context) (func(), error) {
	return s.queue.Subscribe(ctx, messagequeue.SubjectDeliveryCompleted, func(ctx context.Context, _ string, data []byte) error {
		var p messagequeue.DeliveryCompletedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode delivery completed: %w", err)
		}
		return s.CreditDelivery(ctx, &p)
	})
}

// Transactions returns the user's most recent coin history.
func (s *RewardService) Transactions(ctx context.Context, userID string, limit int) ([]reward.Transaction, error) {
	if limit <= 0 || limit > defaultTransactionLimit {
		limit = defaultTransactionLimit
	}
	return s.store.ListTransactions(ctx, userID, limit)
}

// Leaderboard returns the top profiles per ranked role, served from cache
// when fresh. The roles are loaded concurrently.
func (s *RewardService) Leaderboard(ctx context.Context) (reward.Leaderboard, error) {
	results := make([][]reward.LeaderboardEntry, len(profile.LeaderboardRoles))

	g, gctx := errgroup.WithContext(ctx)
	for i, role := range profile.LeaderboardRoles {
		g.Go(func() error {
			entries, err := s.leaderboardFor(gctx, role)
			if err != nil {
				return fmt.Errorf("leaderboard %s: %w", role, err)
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	board := make(reward.Leaderboard, len(results))
	for i, role := range profile.LeaderboardRoles {
		board[role] = results[i]
	}
	return board, nil
}

func (s *RewardService) leaderboardFor(ctx context.Context, role profile.Role) ([]reward.LeaderboardEntry, error) {
	data, err := s.cache.GetOrLoad(ctx, leaderboardKey(role), s.leaderboardTTL, func(ctx context.Context) ([]byte, error) {
		top, err := s.store.TopProfiles(ctx, role, s.limit)
		if err != nil {
			return nil, err
		}
		return json.Marshal(reward.Rank(top))
	})
	if err != nil {
		return nil, err
	}
	var entries []reward.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	if entries == nil {
		entries = []reward.LeaderboardEntry{}
	}
	return entries, nil
}

func leaderboardKey(role profile.Role) string {
	return "leaderboard:" + string(role)
}

// coinsChanged pushes the new balance to the user and drops the cached
// ranking of their role.
func (s *RewardService) coinsChanged(ctx context.Context, role profile.Role, userID string, balance int, tx reward.Transaction) {
	s.hub.SendEvent(ctx, userID, ws.EventCoinsChanged, ws.CoinsEvent{
		Balance: balance,
		Delta:   tx.Delta(),
		Reason:  tx.Reason,
	})
	if err := s.cache.Delete(ctx, leaderboardKey(role)); err != nil {
		slog.WarnContext(ctx, "invalidate leaderboard", "role", role, "error", err)
	}
}

func (s *RewardService) publish(ctx context.Context, subject string, payload any) {
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal event", "subject", subject, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.ErrorContext(ctx, "publish event", "subject", subject, "error", err)
	}
}
