package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/your-org/facewatch/internal/models"
)

type personRow struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	Name       string    `gorm:"not null;uniqueIndex"`
	Embedding  []byte    `gorm:"not null"`
	FirstSeen  time.Time `gorm:"not null"`
	LastSeen   time.Time `gorm:"not null"`
	VisitCount int       `gorm:"not null;default:0"`
	Notes      string    `gorm:"not null;default:''"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (personRow) TableName() string { return "persons" }

type visitRow struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	PersonID   int64     `gorm:"not null;index:idx_visits_person_id"`
	Person     personRow `gorm:"constraint:OnDelete:CASCADE"`
	Timestamp  time.Time `gorm:"not null;index:idx_visits_timestamp,sort:desc"`
	Confidence float64
	ImagePath  string
}

func (visitRow) TableName() string { return "visits" }

type sightingRow struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Timestamp    time.Time `gorm:"not null;index:idx_unknown_timestamp,sort:desc"`
	ImagePath    string
	Identified   bool       `gorm:"not null;default:false"`
	IdentifiedAs *int64     `gorm:"index"`
	Person       *personRow `gorm:"foreignKey:IdentifiedAs"`
}

func (sightingRow) TableName() string { return "unknown_visitors" }

// SQLiteStore is the default single-file store, matching the dashboard's
// expectation of a local data/faces.db.
type SQLiteStore struct {
	db  *gorm.DB
	now Clock
}

func NewSQLiteStore(path string, clock Clock) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if err := db.AutoMigrate(&personRow{}, &visitRow{}, &sightingRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	if clock == nil {
		clock = time.Now
	}
	return &SQLiteStore{db: db, now: clock}, nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// timestamps are stored in UTC so text comparison in SQLite orders correctly
func (s *SQLiteStore) utcNow() time.Time {
	return s.now().UTC()
}

func (r *personRow) toModel() (*models.Person, error) {
	emb, err := decodeEmbedding(r.Embedding)
	if err != nil {
		return nil, err
	}
	return &models.Person{
		ID:         r.ID,
		Name:       r.Name,
		Embedding:  emb,
		VisitCount: r.VisitCount,
		FirstSeen:  r.FirstSeen.Local(),
		LastSeen:   r.LastSeen.Local(),
		Notes:      r.Notes,
		CreatedAt:  r.CreatedAt.Local(),
	}, nil
}

func (r *sightingRow) toModel() *models.Sighting {
	return &models.Sighting{
		ID:           r.ID,
		Timestamp:    r.Timestamp.Local(),
		ImagePath:    r.ImagePath,
		Identified:   r.Identified,
		IdentifiedAs: r.IdentifiedAs,
	}
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateName
	}
	return err
}

// --- Persons ---

func insertPerson(tx *gorm.DB, now time.Time, name, notes string, embedding []float32) (*personRow, error) {
	row := &personRow{
		Name:      name,
		Embedding: encodeEmbedding(embedding),
		FirstSeen: now,
		LastSeen:  now,
		Notes:     notes,
		CreatedAt: now,
	}
	if err := tx.Create(row).Error; err != nil {
		if err = translateErr(err); errors.Is(err, ErrDuplicateName) {
			return nil, err
		}
		return nil, fmt.Errorf("create person: %w", err)
	}
	return row, nil
}

func (s *SQLiteStore) CreatePerson(ctx context.Context, name, notes string, embedding []float32) (*models.Person, error) {
	row, err := insertPerson(s.db.WithContext(ctx), s.utcNow(), name, notes, embedding)
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func (s *SQLiteStore) findPerson(ctx context.Context, query string, arg interface{}) (*models.Person, error) {
	var row personRow
	err := s.db.WithContext(ctx).Where(query, arg).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get person: %w", err)
	}
	return row.toModel()
}

func (s *SQLiteStore) GetPerson(ctx context.Context, id int64) (*models.Person, error) {
	return s.findPerson(ctx, "id = ?", id)
}

func (s *SQLiteStore) GetPersonByName(ctx context.Context, name string) (*models.Person, error) {
	return s.findPerson(ctx, "name = ?", name)
}

func (s *SQLiteStore) ListPersons(ctx context.Context) ([]models.Person, error) {
	var rows []personRow
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	persons := make([]models.Person, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toModel()
		if err != nil {
			return nil, fmt.Errorf("decode person %d: %w", rows[i].ID, err)
		}
		persons = append(persons, *p)
	}
	return persons, nil
}

func (s *SQLiteStore) UpdatePerson(ctx context.Context, id int64, upd models.PersonUpdate) (*models.Person, error) {
	var out *models.Person
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row personRow
		if err := tx.Take(&row, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load person: %w", err)
		}

		changes := map[string]interface{}{}
		if upd.Name != nil && *upd.Name != "" {
			changes["name"] = *upd.Name
		}
		if upd.Notes != nil {
			changes["notes"] = *upd.Notes
		}
		if len(changes) > 0 {
			if err := tx.Model(&row).Updates(changes).Error; err != nil {
				if err = translateErr(err); errors.Is(err, ErrDuplicateName) {
					return err
				}
				return fmt.Errorf("update person: %w", err)
			}
			if err := tx.Take(&row, id).Error; err != nil {
				return fmt.Errorf("reload person: %w", err)
			}
		}

		p, err := row.toModel()
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) DeletePerson(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&sightingRow{}).Where("identified_as = ?", id).
			Updates(map[string]interface{}{"identified": false, "identified_as": nil}).Error; err != nil {
			return fmt.Errorf("reset sightings: %w", err)
		}
		if err := tx.Where("person_id = ?", id).Delete(&visitRow{}).Error; err != nil {
			return fmt.Errorf("delete visits: %w", err)
		}
		res := tx.Delete(&personRow{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete person: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *SQLiteStore) KnownFaces(ctx context.Context) ([]models.KnownFace, error) {
	var rows []personRow
	if err := s.db.WithContext(ctx).Select("id", "name", "embedding").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("known faces: %w", err)
	}
	faces := make([]models.KnownFace, 0, len(rows))
	for _, r := range rows {
		emb, err := decodeEmbedding(r.Embedding)
		if err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", r.Name, err)
		}
		faces = append(faces, models.KnownFace{PersonID: r.ID, Name: r.Name, Embedding: emb})
	}
	return faces, nil
}

// --- Visits ---

func (s *SQLiteStore) LogVisit(ctx context.Context, personID int64, confidence float64, imagePath string) (*models.Visit, error) {
	now := s.utcNow()
	row := &visitRow{PersonID: personID, Timestamp: now, Confidence: confidence, ImagePath: imagePath}
	var owner personRow

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&personRow{}).Where("id = ?", personID).Updates(map[string]interface{}{
			"last_seen":   now,
			"visit_count": gorm.Expr("visit_count + 1"),
		})
		if res.Error != nil {
			return fmt.Errorf("update person counters: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Omit("Person").Create(row).Error; err != nil {
			return fmt.Errorf("log visit: %w", err)
		}
		return tx.Select("id", "name").Take(&owner, personID).Error
	})
	if err != nil {
		return nil, err
	}

	return &models.Visit{
		ID:         row.ID,
		PersonID:   personID,
		PersonName: owner.Name,
		Timestamp:  now.Local(),
		Confidence: confidence,
		ImagePath:  imagePath,
	}, nil
}

type visitWithName struct {
	ID         int64
	PersonID   int64
	Name       string
	Timestamp  time.Time
	Confidence float64
	ImagePath  string
}

func (s *SQLiteStore) ListVisits(ctx context.Context, filter models.VisitFilter) ([]models.Visit, error) {
	q := s.db.WithContext(ctx).Table("visits AS v").
		Select("v.id, v.person_id, p.name, v.timestamp, v.confidence, v.image_path").
		Joins("JOIN persons p ON p.id = v.person_id")
	if filter.PersonID != nil {
		q = q.Where("v.person_id = ?", *filter.PersonID)
	}

	var rows []visitWithName
	if err := q.Order("v.timestamp DESC, v.id DESC").Limit(normalizeLimit(filter.Limit)).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}

	visits := make([]models.Visit, 0, len(rows))
	for _, r := range rows {
		visits = append(visits, models.Visit{
			ID:         r.ID,
			PersonID:   r.PersonID,
			PersonName: r.Name,
			Timestamp:  r.Timestamp.Local(),
			Confidence: r.Confidence,
			ImagePath:  r.ImagePath,
		})
	}
	return visits, nil
}

// --- Sightings ---

func (s *SQLiteStore) LogSighting(ctx context.Context, imagePath string) (*models.Sighting, error) {
	row := &sightingRow{Timestamp: s.utcNow(), ImagePath: imagePath}
	if err := s.db.WithContext(ctx).Omit("Person").Create(row).Error; err != nil {
		return nil, fmt.Errorf("log sighting: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLiteStore) GetSighting(ctx context.Context, id int64) (*models.Sighting, error) {
	var row sightingRow
	if err := s.db.WithContext(ctx).Take(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sighting: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLiteStore) ListSightings(ctx context.Context, limit int, identified bool) ([]models.Sighting, error) {
	var rows []sightingRow
	err := s.db.WithContext(ctx).Where("identified = ?", identified).
		Order("timestamp DESC, id DESC").Limit(normalizeLimit(limit)).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list sightings: %w", err)
	}
	out := make([]models.Sighting, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toModel())
	}
	return out, nil
}

func (s *SQLiteStore) PromoteSighting(ctx context.Context, id int64, name, notes string, embedding []float32) (*models.Person, error) {
	var created *personRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sg sightingRow
		if err := tx.Take(&sg, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load sighting: %w", err)
		}
		if sg.Identified {
			return ErrAlreadyResolved
		}

		row, err := insertPerson(tx, s.utcNow(), name, notes, embedding)
		if err != nil {
			return err
		}
		res := tx.Model(&sightingRow{}).Where("id = ? AND identified = ?", id, false).
			Updates(map[string]interface{}{"identified": true, "identified_as": row.ID})
		if res.Error != nil {
			return fmt.Errorf("resolve sighting: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyResolved
		}
		created = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created.toModel()
}

// --- Stats ---

func (s *SQLiteStore) Stats(ctx context.Context) (*models.Stats, error) {
	db := s.db.WithContext(ctx)
	var persons, visits, unknown, today int64

	if err := db.Model(&personRow{}).Count(&persons).Error; err != nil {
		return nil, fmt.Errorf("count persons: %w", err)
	}
	if err := db.Model(&visitRow{}).Count(&visits).Error; err != nil {
		return nil, fmt.Errorf("count visits: %w", err)
	}
	if err := db.Model(&sightingRow{}).Where("identified = ?", false).Count(&unknown).Error; err != nil {
		return nil, fmt.Errorf("count sightings: %w", err)
	}
	midnight := startOfDay(s.now()).UTC()
	if err := db.Model(&visitRow{}).Where("timestamp >= ?", midnight).Count(&today).Error; err != nil {
		return nil, fmt.Errorf("count visits today: %w", err)
	}

	st := &models.Stats{
		TotalPersons:    int(persons),
		TotalVisits:     int(visits),
		UnknownVisitors: int(unknown),
		VisitsToday:     int(today),
	}

	var top personRow
	err := db.Select("id", "name", "visit_count").Order("visit_count DESC, id ASC").Take(&top).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return nil, fmt.Errorf("most frequent visitor: %w", err)
	default:
		st.MostFrequentVisitor = models.MostFrequentVisitor{Name: &top.Name, Count: top.VisitCount}
	}
	return st, nil
}
