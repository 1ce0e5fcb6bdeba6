package cached

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

// ProfileRepository memoizes profile lookups. Profiles change rarely and are read on
// every request to resolve the caller, so a short TTL is enough. Misses and errors are
// never cached.
type ProfileRepository struct {
	next  repository.ProfileRepository
	cache *cache.Cache
}

func NewProfileRepository(next repository.ProfileRepository, ttl, cleanup time.Duration) *ProfileRepository {
	return &ProfileRepository{
		next:  next,
		cache: cache.New(ttl, cleanup),
	}
}

func (r *ProfileRepository) GetPatientByUserID(ctx context.Context, userID uuid.UUID) (*model.PatientProfile, error) {
	return lookup(r.cache, "patient:user:"+userID.String(), func() (*model.PatientProfile, error) {
		return r.next.GetPatientByUserID(ctx, userID)
	})
}

func (r *ProfileRepository) GetPatient(ctx context.Context, id uuid.UUID) (*model.PatientProfile, error) {
	return lookup(r.cache, "patient:"+id.String(), func() (*model.PatientProfile, error) {
		return r.next.GetPatient(ctx, id)
	})
}

func (r *ProfileRepository) GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*model.DoctorProfile, error) {
	return lookup(r.cache, "doctor:user:"+userID.String(), func() (*model.DoctorProfile, error) {
		return r.next.GetDoctorByUserID(ctx, userID)
	})
}

func (r *ProfileRepository) GetDoctor(ctx context.Context, id uuid.UUID) (*model.DoctorProfile, error) {
	return lookup(r.cache, "doctor:"+id.String(), func() (*model.DoctorProfile, error) {
		return r.next.GetDoctor(ctx, id)
	})
}

// Flush drops every cached profile.
func (r *ProfileRepository) Flush() {
	r.cache.Flush()
}

func lookup[T any](c *cache.Cache, key string, load func() (*T, error)) (*T, error) {
	if cached, found := c.Get(key); found {
		if v, ok := cached.(*T); ok {
			copied := *v
			return &copied, nil
		}
	}

	v, err := load()
	if err != nil {
		return nil, err
	}

	stored := *v
	c.Set(key, &stored, cache.DefaultExpiration)
	return v, nil
}
