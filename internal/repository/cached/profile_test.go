package cached

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

type countingProfiles struct {
	calls    int
	patients map[uuid.UUID]*model.PatientProfile
}

func (c *countingProfiles) GetPatientByUserID(_ context.Context, userID uuid.UUID) (*model.PatientProfile, error) {
	c.calls++
	for _, p := range c.patients {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (c *countingProfiles) GetPatient(_ context.Context, id uuid.UUID) (*model.PatientProfile, error) {
	c.calls++
	if p, ok := c.patients[id]; ok {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (c *countingProfiles) GetDoctorByUserID(context.Context, uuid.UUID) (*model.DoctorProfile, error) {
	c.calls++
	return nil, repository.ErrNotFound
}

func (c *countingProfiles) GetDoctor(context.Context, uuid.UUID) (*model.DoctorProfile, error) {
	c.calls++
	return nil, repository.ErrNotFound
}

func TestProfileRepository_CachesHits(t *testing.T) {
	patient := &model.PatientProfile{ID: uuid.New(), UserID: uuid.New(), FullName: "Alice"}
	next := &countingProfiles{patients: map[uuid.UUID]*model.PatientProfile{patient.ID: patient}}
	repo := NewProfileRepository(next, time.Minute, time.Minute)
	ctx := context.Background()

	first, err := repo.GetPatient(ctx, patient.ID)
	require.NoError(t, err)
	second, err := repo.GetPatient(ctx, patient.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, "Alice", second.FullName)

	second.FullName = "mutated"
	third, err := repo.GetPatient(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", third.FullName)
	assert.Equal(t, first.ID, third.ID)
}

func TestProfileRepository_DoesNotCacheMisses(t *testing.T) {
	next := &countingProfiles{patients: map[uuid.UUID]*model.PatientProfile{}}
	repo := NewProfileRepository(next, time.Minute, time.Minute)
	id := uuid.New()

	for i := 0; i < 2; i++ {
		_, err := repo.GetDoctor(context.Background(), id)
		assert.True(t, errors.Is(err, repository.ErrNotFound))
	}
	assert.Equal(t, 2, next.calls)
}

func TestProfileRepository_Flush(t *testing.T) {
	patient := &model.PatientProfile{ID: uuid.New(), UserID: uuid.New()}
	next := &countingProfiles{patients: map[uuid.UUID]*model.PatientProfile{patient.ID: patient}}
	repo := NewProfileRepository(next, time.Minute, time.Minute)

	_, err := repo.GetPatientByUserID(context.Background(), patient.UserID)
	require.NoError(t, err)
	repo.Flush()
	_, err = repo.GetPatientByUserID(context.Background(), patient.UserID)
	require.NoError(t, err)

	assert.Equal(t, 2, next.calls)
}
