package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type PostgresStore struct {
	pool *pgxpool.Pool
	now  Clock
}

func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig, clock Clock) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if clock == nil {
		clock = time.Now
	}
	return &PostgresStore{pool: pool, now: clock}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies embedded migrations that are not yet recorded in schema_migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	applied := map[string]bool{}
	rows, err := s.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("query applied migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") && !applied[e.Name()] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrationsFS.ReadFile("migrations/" + file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(ctx, string(content)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, file); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
		slog.Info("applied migration", "version", file)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Persons ---

const personColumns = `id, name, embedding, first_seen, last_seen, visit_count, notes, created_at`

func scanPerson(row pgx.Row) (*models.Person, error) {
	p := &models.Person{}
	var vec pgvector.Vector
	if err := row.Scan(&p.ID, &p.Name, &vec, &p.FirstSeen, &p.LastSeen, &p.VisitCount, &p.Notes, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Embedding = vec.Slice()
	return p, nil
}

func createPerson(ctx context.Context, q pgx.Tx, now time.Time, name, notes string, embedding []float32) (*models.Person, error) {
	p, err := scanPerson(q.QueryRow(ctx,
		`INSERT INTO persons (name, embedding, notes, first_seen, last_seen, created_at)
		 VALUES ($1, $2, $3, $4, $4, $4) RETURNING `+personColumns,
		name, pgvector.NewVector(embedding), notes, now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("create person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) CreatePerson(ctx context.Context, name, notes string, embedding []float32) (*models.Person, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	p, err := createPerson(ctx, tx, s.now(), name, notes, embedding)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetPerson(ctx context.Context, id int64) (*models.Person, error) {
	p, err := scanPerson(s.pool.QueryRow(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetPersonByName(ctx context.Context, name string) (*models.Person, error) {
	p, err := scanPerson(s.pool.QueryRow(ctx, `SELECT `+personColumns+` FROM persons WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get person by name: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPersons(ctx context.Context) ([]models.Person, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+personColumns+` FROM persons ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var persons []models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, *p)
	}
	return persons, rows.Err()
}

func (s *PostgresStore) UpdatePerson(ctx context.Context, id int64, upd models.PersonUpdate) (*models.Person, error) {
	var name, notes *string
	if upd.Name != nil && *upd.Name != "" {
		name = upd.Name
	}
	notes = upd.Notes

	p, err := scanPerson(s.pool.QueryRow(ctx,
		`UPDATE persons SET name = COALESCE($2, name), notes = COALESCE($3, notes)
		 WHERE id = $1 RETURNING `+personColumns,
		id, name, notes))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("update person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) DeletePerson(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`UPDATE unknown_visitors SET identified = FALSE, identified_as = NULL WHERE identified_as = $1`, id); err != nil {
		return fmt.Errorf("reset sightings: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM visits WHERE person_id = $1`, id); err != nil {
		return fmt.Errorf("delete visits: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) KnownFaces(ctx context.Context) ([]models.KnownFace, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, embedding FROM persons ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("known faces: %w", err)
	}
	defer rows.Close()

	var faces []models.KnownFace
	for rows.Next() {
		var f models.KnownFace
		var vec pgvector.Vector
		if err := rows.Scan(&f.PersonID, &f.Name, &vec); err != nil {
			return nil, fmt.Errorf("scan known face: %w", err)
		}
		f.Embedding = vec.Slice()
		faces = append(faces, f)
	}
	return faces, rows.Err()
}

// --- Visits ---

func (s *PostgresStore) LogVisit(ctx context.Context, personID int64, confidence float64, imagePath string) (*models.Visit, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	v := &models.Visit{PersonID: personID, Timestamp: s.now(), Confidence: confidence, ImagePath: imagePath}
	err = tx.QueryRow(ctx,
		`UPDATE persons SET last_seen = $2, visit_count = visit_count + 1 WHERE id = $1 RETURNING name`,
		personID, v.Timestamp).Scan(&v.PersonName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update person counters: %w", err)
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO visits (person_id, timestamp, confidence, image_path) VALUES ($1, $2, $3, $4) RETURNING id`,
		personID, v.Timestamp, confidence, imagePath).Scan(&v.ID)
	if err != nil {
		return nil, fmt.Errorf("log visit: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit visit: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) ListVisits(ctx context.Context, filter models.VisitFilter) ([]models.Visit, error) {
	query := `SELECT v.id, v.person_id, p.name, v.timestamp, v.confidence, v.image_path
		FROM visits v JOIN persons p ON p.id = v.person_id`
	args := []interface{}{normalizeLimit(filter.Limit)}
	if filter.PersonID != nil {
		query += ` WHERE v.person_id = $2`
		args = append(args, *filter.PersonID)
	}
	query += ` ORDER BY v.timestamp DESC, v.id DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	var visits []models.Visit
	for rows.Next() {
		var v models.Visit
		if err := rows.Scan(&v.ID, &v.PersonID, &v.PersonName, &v.Timestamp, &v.Confidence, &v.ImagePath); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// --- Sightings ---

const sightingColumns = `id, timestamp, image_path, identified, identified_as`

func scanSighting(row pgx.Row) (*models.Sighting, error) {
	sg := &models.Sighting{}
	if err := row.Scan(&sg.ID, &sg.Timestamp, &sg.ImagePath, &sg.Identified, &sg.IdentifiedAs); err != nil {
		return nil, err
	}
	return sg, nil
}

func (s *PostgresStore) LogSighting(ctx context.Context, imagePath string) (*models.Sighting, error) {
	sg, err := scanSighting(s.pool.QueryRow(ctx,
		`INSERT INTO unknown_visitors (timestamp, image_path) VALUES ($1, $2) RETURNING `+sightingColumns,
		s.now(), imagePath))
	if err != nil {
		return nil, fmt.Errorf("log sighting: %w", err)
	}
	return sg, nil
}

func (s *PostgresStore) GetSighting(ctx context.Context, id int64) (*models.Sighting, error) {
	sg, err := scanSighting(s.pool.QueryRow(ctx, `SELECT `+sightingColumns+` FROM unknown_visitors WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sighting: %w", err)
	}
	return sg, nil
}

func (s *PostgresStore) ListSightings(ctx context.Context, limit int, identified bool) ([]models.Sighting, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sightingColumns+` FROM unknown_visitors WHERE identified = $1
		 ORDER BY timestamp DESC, id DESC LIMIT $2`,
		identified, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list sightings: %w", err)
	}
	defer rows.Close()

	var out []models.Sighting
	for rows.Next() {
		sg, err := scanSighting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sighting: %w", err)
		}
		out = append(out, *sg)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PromoteSighting(ctx context.Context, id int64, name, notes string, embedding []float32) (*models.Person, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var identified bool
	err = tx.QueryRow(ctx, `SELECT identified FROM unknown_visitors WHERE id = $1 FOR UPDATE`, id).Scan(&identified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock sighting: %w", err)
	}
	if identified {
		return nil, ErrAlreadyResolved
	}

	p, err := createPerson(ctx, tx, s.now(), name, notes, embedding)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE unknown_visitors SET identified = TRUE, identified_as = $2 WHERE id = $1`, id, p.ID); err != nil {
		return nil, fmt.Errorf("resolve sighting: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit promote: %w", err)
	}
	return p, nil
}

// --- Stats ---

func (s *PostgresStore) Stats(ctx context.Context) (*models.Stats, error) {
	st := &models.Stats{}
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM persons),
			(SELECT COUNT(*) FROM visits),
			(SELECT COUNT(*) FROM unknown_visitors WHERE identified = FALSE),
			(SELECT COUNT(*) FROM visits WHERE timestamp >= $1)`,
		startOfDay(s.now())).
		Scan(&st.TotalPersons, &st.TotalVisits, &st.UnknownVisitors, &st.VisitsToday)
	if err != nil {
		return nil, fmt.Errorf("stats counts: %w", err)
	}

	var name string
	err = s.pool.QueryRow(ctx,
		`SELECT name, visit_count FROM persons ORDER BY visit_count DESC, id ASC LIMIT 1`).
		Scan(&name, &st.MostFrequentVisitor.Count)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("stats most frequent: %w", err)
	default:
		st.MostFrequentVisitor.Name = &name
	}
	return st, nil
}
