// FILE: internal/service/chat_service.go
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"ems-analytics-be/internal/dto"
	"ems-analytics-be/internal/repository/memory"
	"ems-analytics-be/pkg/events"
	pktNats "ems-analytics-be/pkg/nats"
	"ems-analytics-be/pkg/refine"
	"ems-analytics-be/pkg/refine/scope"
)

type IChatService interface {
	SendMessage(ctx context.Context, req *dto.SendMessageRequest) (*dto.MessageResponse, error)
	PublishQueryResult(ctx context.Context, req *dto.RecordResultRequest) error
	ApplyQueryResult(ctx context.Context, req *dto.RecordResultRequest) error
	ResetSession(ctx context.Context, sessionID string) error
	GetState(ctx context.Context, sessionID string) (*dto.SessionStateResponse, error)
}

type chatService struct {
	sessions         *memory.SessionRepository
	refiner          *refine.Refiner
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher
}

func NewChatService(
	sessions *memory.SessionRepository,
	refiner *refine.Refiner,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
) IChatService {
	return &chatService{
		sessions:         sessions,
		refiner:          refiner,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
	}
}

func (s *chatService) SendMessage(ctx context.Context, req *dto.SendMessageRequest) (*dto.MessageResponse, error) {
	unlock := s.sessions.Lock(req.SessionID)
	defer unlock()

	session := s.sessions.GetOrCreate(req.SessionID)

	if req.UseFollowupContext != nil && !*req.UseFollowupContext {
		session.ResultContext = nil
	}

	result, err := s.refiner.Process(ctx, session, req.Message)
	if err != nil {
		return nil, err
	}
	s.sessions.Save(session)

	res := &dto.MessageResponse{
		SessionID: req.SessionID,
		Type:      string(result.Type),
	}

	switch result.Type {
	case refine.TypeGreeting, refine.TypeFAQ:
		res.Reply = result.Message
	case refine.TypeAnalytics:
		res.CanonicalQuestion = result.Refined.CanonicalText
		res.Scope = toScopeView(result.Refined.Scope)
	case refine.TypeClarification:
		res.Clarification = result.Clarification.Reason
		res.Options = result.Clarification.Options
		res.Scope = toScopeView(session.Scope)
	case refine.TypeInvalid:
		res.RejectedReason = string(result.Invalid.Reason)
		res.RejectedDetail = result.Invalid.Detail
		res.Scope = toScopeView(session.Scope)
		s.publishRejection(ctx, req.SessionID, result, req.Message)
	}

	return res, nil
}

// PublishQueryResult hands an execution result to the in-process queue.
// The consumer applies it to the session asynchronously.
func (s *chatService) PublishQueryResult(ctx context.Context, req *dto.RecordResultRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return s.publisherService.Publish(ctx, payload)
}

// ApplyQueryResult anchors follow-up turns on the rows the last
// executed query returned.
func (s *chatService) ApplyQueryResult(ctx context.Context, req *dto.RecordResultRequest) error {
	entityType := scope.EntityType(req.EntityType)
	switch entityType {
	case scope.EntityVendor, scope.EntityAccount, scope.EntityWarehouse, scope.EntityCity, scope.EntityRegion:
	default:
		return fmt.Errorf("unknown entity type: %s", req.EntityType)
	}

	unlock := s.sessions.Lock(req.SessionID)
	defer unlock()

	session := s.sessions.GetOrCreate(req.SessionID)
	s.refiner.RecordResult(session, entityType, req.Entities, req.RowCount)
	s.sessions.Save(session)
	return nil
}

func (s *chatService) ResetSession(ctx context.Context, sessionID string) error {
	unlock := s.sessions.Lock(sessionID)
	defer unlock()

	session := s.sessions.GetOrCreate(sessionID)
	session.ResetAnalyticalContext()
	s.sessions.Save(session)
	return nil
}

func (s *chatService) GetState(ctx context.Context, sessionID string) (*dto.SessionStateResponse, error) {
	// The snapshot is built under the session lock; Process mutates the
	// same fields under it.
	unlock := s.sessions.Lock(sessionID)
	defer unlock()

	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}

	res := &dto.SessionStateResponse{
		SessionID:     session.ID,
		CreatedAt:     session.CreatedAt,
		Scope:         toScopeView(session.Scope),
		ResultSummary: s.refiner.StateSummary(session),
		LastCanonical: session.LastCanonical,
	}
	if session.Pending != nil {
		res.Pending = session.Pending.Question
	}
	for _, t := range session.RecentTurns {
		res.RecentTurns = append(res.RecentTurns, t.Role+": "+t.Content)
	}
	return res, nil
}

func (s *chatService) publishRejection(ctx context.Context, sessionID string, result *refine.Result, utterance string) {
	if s.eventPublisher == nil {
		return
	}
	evt := events.NewRefinementRejectedEvent(sessionID, string(result.Invalid.Reason), result.Invalid.Detail, utterance)
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		log.Printf("[WARN] Failed to publish rejection event: %v", err)
	}
}

func toScopeView(sc *scope.ActiveScope) *dto.ScopeView {
	if sc == nil || sc.IsEmpty() {
		return nil
	}

	view := &dto.ScopeView{
		Metric: sc.Metric,
		Intent: string(sc.Intent),
	}
	if len(sc.Bindings) > 0 {
		view.Bindings = make(map[string]string, len(sc.Bindings))
		for t, b := range sc.Bindings {
			view.Bindings[string(t)] = b.NormalizedKey
		}
	}
	if tf := sc.TimeFilter; tf != nil {
		view.Time = &dto.TimeRange{
			Start:        tf.Start.Format("2006-01-02"),
			EndExclusive: tf.EndExclusive.Format("2006-01-02"),
			Label:        tf.Label,
			ToNow:        tf.PendingToNow,
		}
	}
	view.Attributes = append(view.Attributes, sc.Attributes...)
	return view
}
