package vehicle

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"tireshop_backend/platform/apperr"
	"tireshop_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

const (
	msgInvalidVIN     = "Please provide a valid 17-character VIN"
	msgVINUnknown     = "No vehicle found for this VIN"
	msgFitmentMissing = "Tire fitment data is not available"
)

// vinPattern excludes I, O and Q, which never appear in a VIN.
var vinPattern = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

// DataSource is the external provider behind the cache.
type DataSource interface {
	DecodeVIN(ctx context.Context, vin string) (*VINResult, error)
	FitmentConfigured() bool
	TireFitment(ctx context.Context, vehicleMake, model, year string) ([]TireSize, error)
}

// Service answers vehicle lookups through a redis read-through cache. A nil
// cache client disables caching and every call hits the provider.
type Service struct {
	source DataSource
	cache  *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewService creates the vehicle lookup service.
func NewService(source DataSource, cache *redis.Client, ttl time.Duration, log *logger.Logger) *Service {
	return &Service{source: source, cache: cache, ttl: ttl, log: log}
}

// DecodeVIN validates, normalizes and decodes a VIN.
func (s *Service) DecodeVIN(ctx context.Context, vin string) (*VINResult, error) {
	vin = strings.ToUpper(strings.TrimSpace(vin))
	if !vinPattern.MatchString(vin) {
		return nil, apperr.Validation(msgInvalidVIN)
	}

	key := "vehicle:vin:" + vin
	var cached VINResult
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	result, err := s.source.DecodeVIN(ctx, vin)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "VIN lookup failed", err)
	}
	if result == nil {
		return nil, apperr.NotFound(msgVINUnknown)
	}

	s.cacheSet(ctx, key, result)
	return result, nil
}

// TireSizes looks up factory tire fitments for a make/model/year.
func (s *Service) TireSizes(ctx context.Context, vehicleMake, model, year string) ([]TireSize, error) {
	vehicleMake = strings.TrimSpace(vehicleMake)
	model = strings.TrimSpace(model)
	year = strings.TrimSpace(year)
	if vehicleMake == "" || model == "" || len(year) != 4 {
		return nil, apperr.Validation("Make, model and a 4-digit year are required")
	}
	if !s.source.FitmentConfigured() {
		return nil, apperr.NotFound(msgFitmentMissing)
	}

	key := strings.ToLower("vehicle:tires:" + vehicleMake + "|" + model + "|" + year)
	var cached []TireSize
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	sizes, err := s.source.TireFitment(ctx, vehicleMake, model, year)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Tire fitment lookup failed", err)
	}
	if sizes == nil {
		sizes = []TireSize{}
	}

	s.cacheSet(ctx, key, sizes)
	return sizes, nil
}

// cacheGet reports whether key was present and decoded into out. Cache
// trouble is logged and treated as a miss.
func (s *Service) cacheGet(ctx context.Context, key string, out interface{}) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.SideEffectFailure("vehicle_cache_read", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.log.SideEffectFailure("vehicle_cache_decode", err)
		return false
	}
	return true
}

func (s *Service) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.log.SideEffectFailure("vehicle_cache_write", err)
	}
}
