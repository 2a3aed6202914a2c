package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/models"
)

var (
	ErrDuplicateName   = errors.New("person with this name already exists")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyResolved = errors.New("sighting already identified")
)

const defaultListLimit = 50

// Store is the visit store shared by the monitor, the dashboard and the CLI.
// Get* methods return (nil, nil) when the row does not exist.
type Store interface {
	CreatePerson(ctx context.Context, name, notes string, embedding []float32) (*models.Person, error)
	GetPerson(ctx context.Context, id int64) (*models.Person, error)
	GetPersonByName(ctx context.Context, name string) (*models.Person, error)
	ListPersons(ctx context.Context) ([]models.Person, error)
	UpdatePerson(ctx context.Context, id int64, upd models.PersonUpdate) (*models.Person, error)
	DeletePerson(ctx context.Context, id int64) error
	KnownFaces(ctx context.Context) ([]models.KnownFace, error)

	LogVisit(ctx context.Context, personID int64, confidence float64, imagePath string) (*models.Visit, error)
	ListVisits(ctx context.Context, filter models.VisitFilter) ([]models.Visit, error)

	LogSighting(ctx context.Context, imagePath string) (*models.Sighting, error)
	GetSighting(ctx context.Context, id int64) (*models.Sighting, error)
	ListSightings(ctx context.Context, limit int, identified bool) ([]models.Sighting, error)
	PromoteSighting(ctx context.Context, id int64, name, notes string, embedding []float32) (*models.Person, error)

	Stats(ctx context.Context) (*models.Stats, error)

	Ping(ctx context.Context) error
	Close() error
}

// Clock returns the current time. Stores take one so tests can pin "today".
type Clock func() time.Time

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteStore(cfg.Path, nil)
	case "postgres":
		s, err := NewPostgresStore(ctx, cfg, nil)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
