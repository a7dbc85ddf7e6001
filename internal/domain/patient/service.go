package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pedcare/clinic/internal/domain/growth"
	"github.com/pedcare/clinic/internal/platform/cache"
	"github.com/pedcare/clinic/internal/platform/db"
)

type Service struct {
	repo     Repository
	versions *cache.Versions
	cacheTTL time.Duration
	log      zerolog.Logger
}

func NewService(repo Repository, versions *cache.Versions, cacheTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{repo: repo, versions: versions, cacheTTL: cacheTTL, log: logger}
}

// Register validates and persists a new patient. A missing MRN is generated
// from the new record's identity.
func (s *Service) Register(ctx context.Context, p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if err := p.Validate(); err != nil {
		return err
	}
	p.Active = true
	if p.MRN == "" {
		p.MRN = generateMRN()
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}
	s.versions.InvalidateClinic(ctx, db.ClinicFromContext(ctx))
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	return s.repo.GetByMRN(ctx, mrn)
}

// Update replaces the mutable demographics of a patient and invalidates the
// patient's cache scope, since cached growth assessments embed DOB-derived
// ages.
func (s *Service) Update(ctx context.Context, p *Patient) error {
	if err := p.Validate(); err != nil {
		return err
	}
	existing, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	p.MRN = existing.MRN

	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	s.versions.InvalidatePatient(ctx, db.ClinicFromContext(ctx), p.ID.String())
	return nil
}

// Deactivate soft-deletes a patient. Growth records are retained under the
// patient's lifecycle, not removed here.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.versions.InvalidatePatient(ctx, db.ClinicFromContext(ctx), id.String())
	return nil
}

type patientPage struct {
	Items []*Patient `json:"items"`
	Total int        `json:"total"`
}

// List returns a page of patients, optionally filtered by a search term,
// served from the clinic-versioned cache.
func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	clinicID := db.ClinicFromContext(ctx)
	ver := s.versions.ClinicVersion(ctx, clinicID)
	// Keyed by clinic: the store is shared across tenants and two clinics at
	// the same version would otherwise read each other's pages.
	base := fmt.Sprintf("patients:list:%s:%s:%d:%d", clinicID, search, limit, offset)

	var page patientPage
	if s.versions.GetJSON(ctx, base, ver, &page) {
		return page.Items, page.Total, nil
	}

	items, total, err := s.repo.List(ctx, search, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	s.versions.SetJSON(ctx, base, ver, patientPage{Items: items, Total: total}, s.cacheTTL)
	return items, total, nil
}

func generateMRN() string {
	return "MRN-" + strings.ToUpper(uuid.NewString()[:8])
}

// Directory adapts the patient service to the growth engine's lookup
// contract.
type Directory struct {
	svc *Service
}

func NewDirectory(svc *Service) *Directory {
	return &Directory{svc: svc}
}

func (d *Directory) PatientInfo(ctx context.Context, id uuid.UUID) (*growth.PatientInfo, error) {
	p, err := d.svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &growth.PatientInfo{
		ID:          p.ID,
		DateOfBirth: p.DateOfBirth,
		Gender:      p.Gender,
	}, nil
}
