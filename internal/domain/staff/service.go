package staff

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pedcare/clinic/internal/platform/cache"
	"github.com/pedcare/clinic/internal/platform/db"
	"github.com/pedcare/clinic/pkg/apperror"
)

type Service struct {
	repo     Repository
	versions *cache.Versions
	log      zerolog.Logger
}

func NewService(repo Repository, versions *cache.Versions, logger zerolog.Logger) *Service {
	return &Service{repo: repo, versions: versions, log: logger}
}

func (s *Service) Create(ctx context.Context, m *Staff) error {
	if err := m.Validate(); err != nil {
		return err
	}
	m.Active = true
	if err := s.repo.Create(ctx, m); err != nil {
		return err
	}
	s.versions.InvalidateClinic(ctx, db.ClinicFromContext(ctx))
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, m *Staff) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, m); err != nil {
		return err
	}
	s.versions.InvalidateClinic(ctx, db.ClinicFromContext(ctx))
	return nil
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.versions.InvalidateClinic(ctx, db.ClinicFromContext(ctx))
	return nil
}

func (s *Service) List(ctx context.Context, role Role, limit, offset int) ([]*Staff, int, error) {
	if role != "" && !role.Valid() {
		return nil, 0, apperror.Validation("invalid staff role %q", role)
	}
	return s.repo.List(ctx, role, limit, offset)
}

// SetAvailability replaces a staff member's weekly schedule. Windows on the
// same weekday must not overlap each other.
func (s *Service) SetAvailability(ctx context.Context, staffID uuid.UUID, windows []*AvailabilityWindow) error {
	if _, err := s.repo.GetByID(ctx, staffID); err != nil {
		return err
	}
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	for i := range windows {
		for j := i + 1; j < len(windows); j++ {
			a, b := windows[i], windows[j]
			if a.Weekday == b.Weekday && a.StartMin < b.EndMin && b.StartMin < a.EndMin {
				return apperror.Validation("availability windows overlap on %s", a.Weekday)
			}
		}
	}

	if err := s.repo.ReplaceAvailability(ctx, staffID, windows); err != nil {
		return err
	}
	s.versions.InvalidateClinic(ctx, db.ClinicFromContext(ctx))
	return nil
}

func (s *Service) Availability(ctx context.Context, staffID uuid.UUID) ([]*AvailabilityWindow, error) {
	if _, err := s.repo.GetByID(ctx, staffID); err != nil {
		return nil, err
	}
	return s.repo.AvailabilityFor(ctx, staffID)
}

// IsAvailable reports whether [start, end) falls inside one of the staff
// member's availability windows. A staff member with no windows at all is
// treated as always available, so small clinics can book without
// configuring schedules.
func (s *Service) IsAvailable(ctx context.Context, staffID uuid.UUID, start, end time.Time) (bool, error) {
	windows, err := s.repo.AvailabilityFor(ctx, staffID)
	if err != nil {
		return false, err
	}
	if len(windows) == 0 {
		return true, nil
	}
	for _, w := range windows {
		if w.Covers(start, end) {
			return true, nil
		}
	}
	return false, nil
}
