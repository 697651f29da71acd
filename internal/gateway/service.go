// Package gateway provides the HTTP API and conversation orchestration for
// taskchat.
package gateway

import (
	"context"
	"log"

	"github.com/vku/taskchat/internal/interpret"
	"github.com/vku/taskchat/internal/models"
	"github.com/vku/taskchat/internal/provider"
	"github.com/vku/taskchat/internal/transcript"
)

// noDataReply is returned when task retrieval fails or yields nothing.
// The backend is never called with empty context as if it were normal.
const noDataReply = "No available task data."

// Backend is the dispatch contract the orchestrator consumes.
type Backend interface {
	Dispatch(ctx context.Context, turns []models.Turn) (string, error)
}

// Service runs the per-request conversation pipeline: fetch, assemble,
// dispatch, interpret. It holds only immutable collaborators and is safe
// for concurrent use.
type Service struct {
	provider provider.Provider
	backend  Backend
}

// NewService creates the conversation orchestrator.
func NewService(p provider.Provider, b Backend) *Service {
	return &Service{provider: p, backend: b}
}

// Converse handles one conversation turn for a verified caller. Data
// unavailability degrades to an explicit no-data reply; only backend
// exhaustion surfaces as an error.
func (s *Service) Converse(ctx context.Context, claims *models.Claims, history []models.Turn) (models.SelectionResult, error) {
	roles, err := s.provider.Roles(ctx, claims.UserID)
	if err != nil {
		// A failed role lookup downgrades to the non-admin view; the task
		// query decides whether any data is reachable at all.
		log.Printf("[gateway] user=%d role lookup failed: %v", claims.UserID, err)
		roles = nil
	}

	tasks, err := s.provider.Tasks(ctx, claims.UserID, provider.IsAdmin(roles))
	if err != nil {
		log.Printf("[gateway] user=%d task fetch failed: %v", claims.UserID, err)
		return models.TextReply(noDataReply), nil
	}
	if len(tasks) == 0 {
		return models.TextReply(noDataReply), nil
	}

	turns := transcript.Prepare(history, tasks)

	reply, err := s.backend.Dispatch(ctx, turns)
	if err != nil {
		return models.SelectionResult{}, err
	}

	return interpret.Interpret(reply, tasks), nil
}
