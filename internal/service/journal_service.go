package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ujmp/editorial-api/internal/models"
	appErrors "github.com/ujmp/editorial-api/pkg/errors"
)

type journalStore interface {
	GetByID(ctx context.Context, id string) (*models.Journal, error)
	ListActive(ctx context.Context) ([]models.Journal, error)
	AssignedJournalIDs(ctx context.Context, reviewerID string) ([]string, error)
}

const (
	journalCacheKeyPrefix = "journal:"
	journalListCacheKey   = "journals:active"
)

// JournalService serves the journal catalog through a Redis read-through
// cache. The catalog changes rarely; a short TTL keeps edits visible without
// explicit invalidation on every write path.
type JournalService struct {
	repo   journalStore
	cache  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewJournalService constructs JournalService. A nil cache disables caching.
func NewJournalService(repo journalStore, cache *redis.Client, ttl time.Duration, logger *zap.Logger) *JournalService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Get returns one journal, preferring the cache.
func (s *JournalService) Get(ctx context.Context, id string) (*models.Journal, error) {
	key := journalCacheKeyPrefix + id
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			var journal models.Journal
			if err := json.Unmarshal(raw, &journal); err == nil {
				return &journal, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("journal cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	journal, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "journal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load journal")
	}
	s.cacheSet(ctx, key, journal)
	return journal, nil
}

// ListActive returns the active catalog, preferring the cache.
func (s *JournalService) ListActive(ctx context.Context) ([]models.Journal, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, journalListCacheKey).Bytes()
		if err == nil {
			var journals []models.Journal
			if err := json.Unmarshal(raw, &journals); err == nil {
				return journals, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("journal cache read failed", zap.String("key", journalListCacheKey), zap.Error(err))
		}
	}

	journals, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list journals")
	}
	s.cacheSet(ctx, journalListCacheKey, journals)
	return journals, nil
}

// AssignedJournalIDs scopes a reviewer to their journals. Assignments gate
// what reviewers can see, so they are never cached.
func (s *JournalService) AssignedJournalIDs(ctx context.Context, reviewerID string) ([]string, error) {
	ids, err := s.repo.AssignedJournalIDs(ctx, reviewerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reviewer assignments")
	}
	return ids, nil
}

func (s *JournalService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.logger.Warn("journal cache write failed", zap.String("key", key), zap.Error(err))
	}
}
