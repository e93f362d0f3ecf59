package services

import (
	"context"
	"log"
	"strings"

	"github.com/siamesedream/apiserver/internal/events"
	"github.com/siamesedream/apiserver/internal/store"
	"github.com/siamesedream/apiserver/types"
)

// DreamRepository defines persistence operations for dreams.
type DreamRepository interface {
	ListByUser(ctx context.Context, userID int) ([]types.Dream, error)
	Search(ctx context.Context, filter store.DreamFilter, limit, offset int) ([]types.Dream, int, error)
	Get(ctx context.Context, id int) (types.Dream, error)
	Create(ctx context.Context, dream types.Dream) (int, error)
	Delete(ctx context.Context, id, userID int) error
	Feed(ctx context.Context, symbol string, limit, offset int) ([]types.Dream, error)
	Stats(ctx context.Context, userID int) (types.DreamStats, error)
	MonthlyCounts(ctx context.Context, userID int) ([]types.MonthCount, error)
	Recent(ctx context.Context, userID, limit int) ([]types.Dream, error)
}

// DreamService encapsulates dream use-cases. The publisher is optional;
// when nil no events are emitted.
type DreamService struct {
	repo      DreamRepository
	publisher *events.Publisher
}

func NewDreamService(repo DreamRepository, publisher *events.Publisher) *DreamService {
	return &DreamService{repo: repo, publisher: publisher}
}

func (s *DreamService) ListByUser(ctx context.Context, userID int) ([]types.Dream, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *DreamService) Search(ctx context.Context, filter store.DreamFilter, limit, offset int) ([]types.Dream, int, error) {
	return s.repo.Search(ctx, filter, limit, offset)
}

func (s *DreamService) Get(ctx context.Context, id int) (types.Dream, error) {
	return s.repo.Get(ctx, id)
}

// Create normalizes the dream's symbol list, persists the dream, and emits
// a dream.created event. Event failures are logged, never surfaced.
func (s *DreamService) Create(ctx context.Context, dream types.Dream) (int, error) {
	dream.Symbols = NormalizeSymbols(dream.Symbols)

	id, err := s.repo.Create(ctx, dream)
	if err != nil {
		return 0, err
	}

	if s.publisher != nil {
		if err := s.publisher.DreamCreated(ctx, id, dream.UserID); err != nil {
			log.Printf("publish dream.created failed: %v", err)
		}
	}
	return id, nil
}

func (s *DreamService) Delete(ctx context.Context, id, userID int) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return err
	}

	if s.publisher != nil {
		if err := s.publisher.DreamDeleted(ctx, id, userID); err != nil {
			log.Printf("publish dream.deleted failed: %v", err)
		}
	}
	return nil
}

func (s *DreamService) Feed(ctx context.Context, symbol string, limit, offset int) ([]types.Dream, error) {
	return s.repo.Feed(ctx, symbol, limit, offset)
}

func (s *DreamService) Stats(ctx context.Context, userID int) (types.DreamStats, error) {
	return s.repo.Stats(ctx, userID)
}

func (s *DreamService) MonthlyCounts(ctx context.Context, userID int) ([]types.MonthCount, error) {
	return s.repo.MonthlyCounts(ctx, userID)
}

func (s *DreamService) Recent(ctx context.Context, userID, limit int) ([]types.Dream, error) {
	return s.repo.Recent(ctx, userID, limit)
}

// NormalizeSymbols re-tokenizes raw symbol input the same way the web
// client does: split on commas, whitespace and '#', trim, drop empties,
// dedupe while keeping first-seen order.
func NormalizeSymbols(raw []string) []string {
	seen := make(map[string]struct{})
	normalized := make([]string, 0, len(raw))

	for _, value := range raw {
		for _, token := range strings.FieldsFunc(value, isSymbolSeparator) {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			normalized = append(normalized, token)
		}
	}
	return normalized
}

func isSymbolSeparator(r rune) bool {
	switch r {
	case ',', '#', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
