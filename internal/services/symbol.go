package services

import (
	"context"

	"github.com/siamesedream/apiserver/types"
)

// SymbolRepository defines persistence operations for symbols.
type SymbolRepository interface {
	List(ctx context.Context) ([]types.Symbol, error)
	Popular(ctx context.Context, limit int) ([]types.SymbolCount, error)
	TopForUser(ctx context.Context, userID, limit int) ([]types.TopSymbol, error)
	Timeline(ctx context.Context, userID int) ([]types.SymbolTimelineEntry, error)
}

// SymbolService encapsulates symbol use-cases.
type SymbolService struct {
	repo SymbolRepository
}

func NewSymbolService(repo SymbolRepository) *SymbolService {
	return &SymbolService{repo: repo}
}

func (s *SymbolService) List(ctx context.Context) ([]types.Symbol, error) {
	return s.repo.List(ctx)
}

func (s *SymbolService) Popular(ctx context.Context) ([]types.SymbolCount, error) {
	return s.repo.Popular(ctx, 20)
}

func (s *SymbolService) TopForUser(ctx context.Context, userID int) ([]types.TopSymbol, error) {
	return s.repo.TopForUser(ctx, userID, 10)
}

func (s *SymbolService) Timeline(ctx context.Context, userID int) ([]types.SymbolTimelineEntry, error) {
	return s.repo.Timeline(ctx, userID)
}
