package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	fsotel "github.com/Strob0t/foodshare/internal/adapter/otel"
	"github.com/Strob0t/foodshare/internal/adapter/ws"
	"github.com/Strob0t/foodshare/internal/clock"
	"github.com/Strob0t/foodshare/internal/config"
	"github.com/Strob0t/foodshare/internal/domain"
	"github.com/Strob0t/foodshare/internal/domain/delivery"
	"github.com/Strob0t/foodshare/internal/port/broadcast"
	"github.com/Strob0t/foodshare/internal/port/messagequeue"
)

// DeliveryState is the read model of one dashboard session.
type DeliveryState struct {
	SessionID string `json:"session_id"`
	AgentID   string `json:"agent_id"`
	OnDuty    bool   `json:"on_duty"`
	delivery.Snapshot
}

// DeliveryService owns the open delivery dashboard sessions. Sessions are
// process local and vanish on restart.
type DeliveryService struct {
	pool    []delivery.Task
	cfg     config.Delivery
	clock   clock.Clock
	hub     broadcast.Broadcaster
	queue   messagequeue.Queue
	metrics *fsotel.Metrics
	pick    func(n int) int

	mu       sync.Mutex
	sessions map[string]*deliverySession
}

// NewDeliveryService creates a DeliveryService drawing offers from pool.
// queue may be nil, in which case completed deliveries are not published.
func NewDeliveryService(pool []delivery.Task, cfg config.Delivery, clk clock.Clock, hub broadcast.Broadcaster, queue messagequeue.Queue) *DeliveryService {
	return &DeliveryService{
		pool:     pool,
		cfg:      cfg,
		clock:    clk,
		hub:      hub,
		queue:    queue,
		pick:     rand.IntN,
		sessions: make(map[string]*deliverySession),
	}
}

// SetMetrics enables metric recording.
func (s *DeliveryService) SetMetrics(m *fsotel.Metrics) {
	s.metrics = m
}

// Open starts a dashboard session for agentID. With duty on the offer
// timer starts immediately.
func (s *DeliveryService) Open(ctx context.Context, agentID string) (DeliveryState, error) {
	if agentID == "" {
		return DeliveryState{}, fmt.Errorf("agent id is required: %w", domain.ErrValidation)
	}
	ctx, span := fsotel.StartDeliverySpan(ctx, agentID, "open")
	defer span.End()

	sess := &deliverySession{
		id:      uuid.NewString(),
		agentID: agentID,
		svc:     s,
		ctx:     context.WithoutCancel(ctx),
		ledger:  delivery.NewLedger(s.pool),
		duty:    s.cfg.DutyOnOpen,
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	sess.mu.Lock()
	if sess.duty {
		sess.startOfferTimer()
	}
	state := sess.state()
	sess.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ActiveSessions.Add(ctx, 1)
	}
	slog.InfoContext(ctx, "delivery session opened", "session_id", sess.id, "agent_id", agentID, "on_duty", state.OnDuty)
	return state, nil
}

// Get returns the current state of a session.
func (s *DeliveryService) Get(_ context.Context, agentID, sessionID string) (DeliveryState, error) {
	sess, err := s.session(agentID, sessionID)
	if err != nil {
		return DeliveryState{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state(), nil
}

// SetDuty toggles the duty switch. Turning duty off stops new offers but a
// pending offer keeps counting down. Setting the current value again reports
// changed=false.
func (s *DeliveryService) SetDuty(ctx context.Context, agentID, sessionID string, on bool) (state DeliveryState, changed bool, err error) {
	sess, err := s.session(agentID, sessionID)
	if err != nil {
		return DeliveryState{}, false, err
	}
	_, span := fsotel.StartDeliverySpan(ctx, agentID, "duty")
	defer span.End()

	sess.mu.Lock()
	changed = sess.duty != on
	if changed {
		sess.duty = on
		if on {
			sess.startOfferTimer()
		} else {
			sess.stopOfferTimer()
		}
	}
	state = sess.state()
	sess.mu.Unlock()

	if changed {
		s.hub.SendEvent(sess.ctx, agentID, ws.EventDeliveryDuty, ws.DutyEvent{SessionID: sessionID, OnDuty: on})
	}
	return state, changed, nil
}

// RespondToOffer accepts or declines the offer identified by seq; a seq of
// 0 targets whatever offer is pending. A response with no pending offer or
// for an already resolved offer changes nothing and reports changed=false.
func (s *DeliveryService) RespondToOffer(ctx context.Context, agentID, sessionID string, seq uint64, accept bool) (state DeliveryState, changed bool, err error) {
	sess, err := s.session(agentID, sessionID)
	if err != nil {
		return DeliveryState{}, false, err
	}
	ctx, span := fsotel.StartDeliverySpan(ctx, agentID, "respond")
	defer span.End()
	span.SetAttributes(attribute.Bool("delivery.accept", accept))

	sess.mu.Lock()
	var (
		task delivery.Task
		ok   bool
	)
	cur, _ := sess.ledger.CurrentOffer()
	if accept {
		task, ok = sess.ledger.AcceptOffer(seq)
	} else {
		task, ok = sess.ledger.DeclineOffer(seq)
	}
	if ok {
		sess.offerResolved()
	}
	state = sess.state()
	sess.mu.Unlock()

	if !ok {
		return state, false, nil
	}

	resolution := ws.ResolutionDeclined
	if accept {
		resolution = ws.ResolutionAccepted
	}
	if s.metrics != nil {
		if accept {
			s.metrics.OffersAccepted.Add(ctx, 1)
		} else {
			s.metrics.OffersDeclined.Add(ctx, 1)
		}
	}
	s.hub.SendEvent(sess.ctx, agentID, ws.EventDeliveryResolved, ws.OfferResolvedEvent{
		SessionID:  sessionID,
		Seq:        cur.Seq,
		TaskID:     task.ID,
		Resolution: resolution,
	})
	return state, true, nil
}

// AdvanceTask moves an ongoing task to its next status. Unknown and
// delivered tasks are left alone and report changed=false.
func (s *DeliveryService) AdvanceTask(ctx context.Context, agentID, sessionID, taskID string) (state DeliveryState, changed bool, err error) {
	sess, err := s.session(agentID, sessionID)
	if err != nil {
		return DeliveryState{}, false, err
	}
	ctx, span := fsotel.StartDeliverySpan(ctx, agentID, "advance")
	defer span.End()

	sess.mu.Lock()
	task, ok := sess.ledger.Advance(taskID)
	state = sess.state()
	sess.mu.Unlock()

	if !ok {
		return state, false, nil
	}

	s.hub.SendEvent(sess.ctx, agentID, ws.EventDeliveryStatus, ws.TaskStatusEvent{
		SessionID: sessionID,
		TaskID:    task.ID,
		SourceID:  task.SourceID,
		Status:    task.Status.String(),
	})
	if task.Status.Terminal() {
		s.completed(ctx, sess, task)
	}
	return state, true, nil
}

// completed announces a finished delivery so the agent gets credited.
func (s *DeliveryService) completed(ctx context.Context, sess *deliverySession, task delivery.Task) {
	if s.metrics != nil {
		s.metrics.DeliveriesCompleted.Add(ctx, 1)
	}
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(messagequeue.DeliveryCompletedPayload{
		SessionID: sess.id,
		AgentID:   sess.agentID,
		TaskID:    task.ID,
		SourceID:  task.SourceID,
		Food:      task.Food,
		Earnings:  task.Earnings,
		Coins:     task.Coins,
	})
	if err != nil {
		slog.ErrorContext(ctx, "marshal delivery completed", "error", err)
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectDeliveryCompleted, data); err != nil {
		slog.ErrorContext(ctx, "publish delivery completed", "session_id", sess.id, "task_id", task.ID, "error", err)
	}
}

// Close stops the session's timers and forgets it. No timer callback
// mutates the session afterwards.
func (s *DeliveryService) Close(ctx context.Context, agentID, sessionID string) error {
	sess, err := s.session(agentID, sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	sess.close()
	if s.metrics != nil {
		s.metrics.ActiveSessions.Add(ctx, -1)
	}
	slog.InfoContext(ctx, "delivery session closed", "session_id", sessionID, "agent_id", agentID)
	return nil
}

// CloseAll closes every open session. Used on shutdown.
func (s *DeliveryService) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*deliverySession)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}

// SessionCount returns the number of open sessions.
func (s *DeliveryService) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *DeliveryService) session(agentID, sessionID string) (*deliverySession, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("delivery session %s: %w", sessionID, domain.ErrNotFound)
	}
	if sess.agentID != agentID {
		return nil, fmt.Errorf("delivery session %s: %w", sessionID, domain.ErrForbidden)
	}
	return sess, nil
}

// deliverySession is one agent's dashboard. mu serialises API calls and
// timer callbacks; both timers are keyed by a generation so a callback
// that raced with Stop is discarded.
type deliverySession struct {
	id      string
	agentID string
	svc     *DeliveryService
	ctx     context.Context

	mu           sync.Mutex
	ledger       *delivery.Ledger
	duty         bool
	closed       bool
	offerTimer   clock.Stopper
	offerGen     uint64
	countdown    clock.Stopper
	countdownSeq uint64
}

func (d *deliverySession) state() DeliveryState {
	return DeliveryState{
		SessionID: d.id,
		AgentID:   d.agentID,
		OnDuty:    d.duty,
		Snapshot:  d.ledger.Snapshot(),
	}
}

// startOfferTimer arms the offer timer if duty is on and nothing is
// pending. Callers hold d.mu.
func (d *deliverySession) startOfferTimer() {
	if d.closed || !d.duty || d.offerTimer != nil || d.ledger.HasOffer() {
		return
	}
	d.offerGen++
	gen := d.offerGen
	d.offerTimer = d.svc.clock.Every(d.svc.cfg.OfferInterval, func() { d.onOfferTick(gen) })
}

func (d *deliverySession) stopOfferTimer() {
	if d.offerTimer != nil {
		d.offerTimer.Stop()
		d.offerTimer = nil
	}
	d.offerGen++
}

func (d *deliverySession) stopCountdown() {
	if d.countdown != nil {
		d.countdown.Stop()
		d.countdown = nil
	}
	d.countdownSeq = 0
}

// offerResolved clears the countdown and restarts the offer interval.
// Callers hold d.mu.
func (d *deliverySession) offerResolved() {
	d.stopCountdown()
	d.stopOfferTimer()
	d.startOfferTimer()
}

func (d *deliverySession) onOfferTick(gen uint64) {
	d.mu.Lock()
	if d.closed || gen != d.offerGen {
		d.mu.Unlock()
		return
	}
	offer, ok := d.ledger.Draw(d.svc.pick, d.svc.cfg.OfferTimeout)
	if !ok {
		d.mu.Unlock()
		return
	}
	d.stopOfferTimer()
	d.stopCountdown()
	d.countdownSeq = offer.Seq
	seq := offer.Seq
	d.countdown = d.svc.clock.Every(d.svc.cfg.CountdownTick, func() { d.onCountdownTick(seq) })
	d.mu.Unlock()

	if d.svc.metrics != nil {
		d.svc.metrics.OffersMade.Add(d.ctx, 1)
	}
	d.svc.hub.SendEvent(d.ctx, d.agentID, ws.EventDeliveryOffer, ws.OfferEvent{SessionID: d.id, Offer: offer})
}

func (d *deliverySession) onCountdownTick(seq uint64) {
	d.mu.Lock()
	if d.closed || seq != d.countdownSeq {
		d.mu.Unlock()
		return
	}
	offer, expired, ok := d.ledger.Countdown(seq, d.svc.cfg.CountdownTick)
	if !ok {
		d.mu.Unlock()
		return
	}
	if expired {
		d.offerResolved()
	}
	d.mu.Unlock()

	if !expired {
		d.svc.hub.SendEvent(d.ctx, d.agentID, ws.EventDeliveryCountdown, ws.CountdownEvent{
			SessionID:   d.id,
			Seq:         seq,
			TaskID:      offer.Task.ID,
			RemainingMS: offer.Remaining.Milliseconds(),
			Progress:    offer.Progress(),
		})
		return
	}

	if d.svc.metrics != nil {
		d.svc.metrics.OffersTimedOut.Add(d.ctx, 1)
	}
	d.svc.hub.SendEvent(d.ctx, d.agentID, ws.EventDeliveryResolved, ws.OfferResolvedEvent{
		SessionID:  d.id,
		Seq:        seq,
		TaskID:     offer.Task.ID,
		Resolution: ws.ResolutionTimeout,
	})
}

func (d *deliverySession) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.stopOfferTimer()
	d.stopCountdown()
}
