package services

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/cache"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/calculator"
)

// CalculationService fronts the engine with a result cache. Identical
// concurrent requests are collapsed into one computation.
type CalculationService struct {
	engine *calculator.Engine
	store  cache.Store[calculator.Result]
	group  singleflight.Group
}

func NewCalculationService(engine *calculator.Engine, store cache.Store[calculator.Result]) *CalculationService {
	return &CalculationService{
		engine: engine,
		store:  store,
	}
}

// Calculate returns the projection for req, served from cache when possible.
// The second return value reports whether it was a cache hit.
func (s *CalculationService) Calculate(ctx context.Context, req calculator.Request) (calculator.Result, bool, error) {
	key := cache.Key(req.CacheKey())

	if result, ok := s.store.Get(ctx, key); ok {
		return result, true, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		result, err := s.engine.Calculate(req)
		if err != nil {
			return calculator.Result{}, err
		}
		s.store.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return calculator.Result{}, false, err
	}

	return v.(calculator.Result), false, nil
}

// Limits returns the engine's configured parameter limits.
func (s *CalculationService) Limits() calculator.Limits {
	return s.engine.Limits()
}

// CacheStats exposes the result cache counters for the health endpoint.
func (s *CalculationService) CacheStats() cache.Stats {
	return s.store.Stats()
}
