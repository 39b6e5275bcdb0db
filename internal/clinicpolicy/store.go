// Package clinicpolicy resolves per-clinic availability policies. Policies
// are kept in Redis; clinics without an explicit policy fall back to the
// platform default.
package clinicpolicy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/oakwellhealth/scheduling-platform/internal/scheduling"
)

// DefaultPolicy applies when a clinic has not configured its own windows.
var DefaultPolicy = scheduling.AvailabilityPolicy{
	MinAdvanceMinutes: 120,
	MaxAdvanceDays:    90,
}

// Store reads and writes clinic availability policies.
type Store struct {
	redis    *redis.Client
	fallback scheduling.AvailabilityPolicy
}

func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("clinicpolicy: redis client required")
	}
	return &Store{redis: redisClient, fallback: DefaultPolicy}
}

// WithFallback overrides the default policy used for unconfigured clinics.
func (s *Store) WithFallback(policy scheduling.AvailabilityPolicy) *Store {
	s.fallback = policy
	return s
}

func (s *Store) key(tenantID, clinicID uuid.UUID) string {
	return fmt.Sprintf("clinic:policy:%s:%s", tenantID, clinicID)
}

// PolicyFor retrieves the clinic's availability policy, falling back to
// the platform default when none is stored.
func (s *Store) PolicyFor(ctx context.Context, tenantID, clinicID uuid.UUID) (scheduling.AvailabilityPolicy, error) {
	data, err := s.redis.Get(ctx, s.key(tenantID, clinicID)).Bytes()
	if err == redis.Nil {
		return s.fallback, nil
	}
	if err != nil {
		return scheduling.AvailabilityPolicy{}, fmt.Errorf("clinicpolicy: get policy: %w", err)
	}

	var policy scheduling.AvailabilityPolicy
	if err := json.Unmarshal(data, &policy); err != nil {
		return scheduling.AvailabilityPolicy{}, fmt.Errorf("clinicpolicy: decode policy: %w", err)
	}
	return policy, nil
}

// Set stores the clinic's availability policy.
func (s *Store) Set(ctx context.Context, tenantID, clinicID uuid.UUID, policy scheduling.AvailabilityPolicy) error {
	if policy.MinAdvanceMinutes < 0 || policy.MaxAdvanceDays <= 0 {
		return fmt.Errorf("clinicpolicy: invalid policy")
	}
	data, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("clinicpolicy: encode policy: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(tenantID, clinicID), data, 0).Err(); err != nil {
		return fmt.Errorf("clinicpolicy: save policy: %w", err)
	}
	return nil
}
