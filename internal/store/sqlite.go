// Package store provides SQLite-backed persistence for the CLI catalog.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/scbrown/clicat/internal/model"

	_ "modernc.org/sqlite"
)

const schemaVersion = 2

// SQLiteStore implements Store using a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at dbPath.
// It auto-creates the parent directory (e.g. ~/.clicat/) and runs
// schema migrations to ensure the database is up to date.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for WAL mode simplicity.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate runs schema migrations up to the current version.
func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("create version table: %w", err)
	}

	var ver int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&ver)
	if err == sql.ErrNoRows {
		ver = 0
	} else if err != nil {
		return fmt.Errorf("read version: %w", err)
	}

	if ver < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	if ver < 2 {
		if err := s.migrateV2(); err != nil {
			return err
		}
	}

	return nil
}

func (s *SQLiteStore) migrateV1() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			slug         TEXT PRIMARY KEY,
			name         TEXT NOT NULL DEFAULT '',
			publisher    TEXT NOT NULL DEFAULT '',
			verification TEXT NOT NULL,
			version      INTEGER NOT NULL DEFAULT 0,
			popularity   REAL NOT NULL DEFAULT 0,
			trust        REAL NOT NULL DEFAULT 0,
			downloads    INTEGER NOT NULL DEFAULT 0,
			doc          TEXT NOT NULL,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS profile_binaries (
			slug     TEXT NOT NULL REFERENCES profiles(slug),
			bin      TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (slug, bin)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_profile_binaries_binary ON profile_binaries(bin)`,
		`CREATE TABLE IF NOT EXISTS profile_packages (
			slug TEXT NOT NULL REFERENCES profiles(slug),
			purl TEXT NOT NULL,
			PRIMARY KEY (slug, purl)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_profile_packages_purl ON profile_packages(purl)`,
		`CREATE TABLE IF NOT EXISTS profile_tags (
			slug TEXT NOT NULL REFERENCES profiles(slug),
			tag  TEXT NOT NULL,
			PRIMARY KEY (slug, tag)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_profile_tags_tag ON profile_tags(tag)`,
		`CREATE TABLE IF NOT EXISTS profile_categories (
			slug     TEXT NOT NULL REFERENCES profiles(slug),
			category TEXT NOT NULL,
			PRIMARY KEY (slug, category)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_profile_categories_category ON profile_categories(category)`,
		`CREATE TABLE IF NOT EXISTS install_recipes (
			slug            TEXT NOT NULL REFERENCES profiles(slug),
			os              TEXT NOT NULL,
			package_manager TEXT NOT NULL,
			command         TEXT NOT NULL,
			checksum        TEXT,
			dependencies    TEXT,
			PRIMARY KEY (slug, os, package_manager)
		)`,
		`CREATE TABLE IF NOT EXISTS commands (
			slug       TEXT NOT NULL REFERENCES profiles(slug),
			id         TEXT NOT NULL,
			command    TEXT NOT NULL,
			doc        TEXT NOT NULL,
			deleted_at TEXT,
			PRIMARY KEY (slug, id)
		)`,
		`CREATE TABLE IF NOT EXISTS listing_versions (
			id             TEXT PRIMARY KEY,
			slug           TEXT NOT NULL REFERENCES profiles(slug),
			version_number INTEGER NOT NULL,
			changed_fields TEXT NOT NULL,
			changes        TEXT,
			changelog      TEXT NOT NULL,
			provenance     TEXT NOT NULL,
			timestamp      TEXT NOT NULL,
			UNIQUE (slug, version_number)
		)`,
		`CREATE TABLE IF NOT EXISTS compatibility (
			slug          TEXT NOT NULL,
			agent         TEXT NOT NULL,
			status        TEXT NOT NULL,
			success_rate  REAL NOT NULL,
			samples       INTEGER NOT NULL DEFAULT 0,
			last_verified TEXT NOT NULL,
			PRIMARY KEY (slug, agent)
		)`,
		`INSERT OR REPLACE INTO schema_version (version) VALUES (1)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate v1: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) migrateV2() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS curation_queue (
			id          TEXT PRIMARY KEY,
			dedupe_key  TEXT NOT NULL UNIQUE,
			kind        TEXT NOT NULL,
			slug        TEXT,
			candidate   TEXT NOT NULL,
			reason      TEXT NOT NULL,
			related     TEXT,
			proposed    TEXT,
			created_at  TEXT NOT NULL,
			resolved_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_curation_queue_kind ON curation_queue(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_curation_queue_slug ON curation_queue(slug)`,
		`UPDATE schema_version SET version = 2`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate v2: %w", err)
		}
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// runTx executes fn inside a transaction, retrying on SQLITE_BUSY.
func (s *SQLiteStore) runTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return Retry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// Commit writes a merged profile and its optional listing version atomically.
// v.Number is set to the assigned version number.
func (s *SQLiteStore) Commit(ctx context.Context, p model.Profile, v *model.ListingVersion) (int, error) {
	if p.Slug == "" {
		return 0, fmt.Errorf("commit: empty slug")
	}
	var number int
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		var stored int
		err := tx.QueryRowContext(ctx, `SELECT version FROM profiles WHERE slug = ?`, p.Slug).Scan(&stored)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("read profile %s: %w", p.Slug, err)
		case p.Version == 0:
			return fmt.Errorf("commit %s: %w", p.Slug, ErrSlugTaken)
		}

		var last int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version_number), 0) FROM listing_versions WHERE slug = ?`, p.Slug,
		).Scan(&last); err != nil {
			return fmt.Errorf("read last version %s: %w", p.Slug, err)
		}
		number = last

		if v != nil {
			number = last + 1
		}
		p.Version = number
		if err := writeProfile(ctx, tx, p); err != nil {
			return err
		}
		if v != nil {
			v.Slug = p.Slug
			v.Number = number
			if err := insertVersion(ctx, tx, *v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return number, nil
}

func writeProfile(ctx context.Context, tx *sql.Tx, p model.Profile) error {
	doc := p.Clone()
	doc.Install = nil
	doc.Commands = nil
	doc.Compatibility = nil
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal profile %s: %w", p.Slug, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO profiles (slug, name, publisher, verification, version, popularity, trust, downloads, doc, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(slug) DO UPDATE SET
			name = excluded.name,
			publisher = excluded.publisher,
			verification = excluded.verification,
			version = excluded.version,
			doc = excluded.doc,
			updated_at = excluded.updated_at`,
		p.Slug, p.Name, p.Publisher, string(p.Verification), p.Version,
		p.Popularity, p.Trust, p.Downloads, string(data),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	); err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.Slug, err)
	}

	for _, table := range []string{"profile_binaries", "profile_packages", "profile_tags", "profile_categories", "install_recipes"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE slug = ?", p.Slug); err != nil {
			return fmt.Errorf("clear %s for %s: %w", table, p.Slug, err)
		}
	}
	for i, b := range p.Binaries {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO profile_binaries (slug, bin, position) VALUES (?, ?, ?)`, p.Slug, b, i); err != nil {
			return fmt.Errorf("index binary %s: %w", b, err)
		}
	}
	for _, purl := range p.Packages {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO profile_packages (slug, purl) VALUES (?, ?)`, p.Slug, purl); err != nil {
			return fmt.Errorf("index package %s: %w", purl, err)
		}
	}
	for _, tag := range p.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO profile_tags (slug, tag) VALUES (?, ?)`, p.Slug, tag); err != nil {
			return fmt.Errorf("index tag %s: %w", tag, err)
		}
	}
	for _, cat := range p.Categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO profile_categories (slug, category) VALUES (?, ?)`, p.Slug, cat); err != nil {
			return fmt.Errorf("index category %s: %w", cat, err)
		}
	}
	for _, r := range p.Install {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO install_recipes (slug, os, package_manager, command, checksum, dependencies)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			p.Slug, r.OS, r.PackageManager, r.Command, nullableString(r.Checksum), nullableList(r.Dependencies)); err != nil {
			return fmt.Errorf("upsert recipe %s: %w", r.Key(), err)
		}
	}
	// Command rows are never deleted; soft-deleted ids stay reserved.
	for _, c := range p.Commands {
		cdoc, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal command %s: %w", c.ID, err)
		}
		var deleted any
		if c.DeletedAt != nil {
			deleted = formatTime(*c.DeletedAt)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO commands (slug, id, command, doc, deleted_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(slug, id) DO UPDATE SET
				command = excluded.command,
				doc = excluded.doc,
				deleted_at = excluded.deleted_at`,
			p.Slug, c.ID, c.Command, string(cdoc), deleted); err != nil {
			return fmt.Errorf("upsert command %s: %w", c.ID, err)
		}
	}
	return nil
}

func insertVersion(ctx context.Context, tx *sql.Tx, v model.ListingVersion) error {
	fields, err := json.Marshal(v.ChangedFields)
	if err != nil {
		return fmt.Errorf("marshal changed fields: %w", err)
	}
	changes, err := json.Marshal(v.Changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO listing_versions (id, slug, version_number, changed_fields, changes, changelog, provenance, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Slug, v.Number, string(fields), string(changes), v.Changelog, string(v.Provenance), formatTime(v.Timestamp),
	); err != nil {
		return fmt.Errorf("insert version %s#%d: %w", v.Slug, v.Number, err)
	}
	return nil
}

// GetProfile returns the current state of a profile.
func (s *SQLiteStore) GetProfile(ctx context.Context, slug string) (*model.Profile, error) {
	return loadProfile(ctx, s.db, slug)
}

// loadProfile reads one profile. Queries run one after another so the single
// connection is never held by two open result sets.
func loadProfile(ctx context.Context, q queryer, slug string) (*model.Profile, error) {
	var (
		p                    model.Profile
		doc, created, update string
	)
	err := q.QueryRowContext(ctx,
		`SELECT doc, version, popularity, trust, downloads, created_at, updated_at FROM profiles WHERE slug = ?`, slug,
	).Scan(&doc, &p.Version, &p.Popularity, &p.Trust, &p.Downloads, &created, &update)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", slug, err)
	}
	version, pop, trust, downloads := p.Version, p.Popularity, p.Trust, p.Downloads
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", slug, err)
	}
	p.Version, p.Popularity, p.Trust, p.Downloads = version, pop, trust, downloads
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(update)

	if p.Install, err = loadRecipes(ctx, q, slug); err != nil {
		return nil, err
	}
	if p.Commands, err = loadCommands(ctx, q, slug); err != nil {
		return nil, err
	}
	if p.Compatibility, err = listCompatibility(ctx, q, slug); err != nil {
		return nil, err
	}
	return &p, nil
}

func loadRecipes(ctx context.Context, q queryer, slug string) ([]model.InstallRecipe, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT os, package_manager, command, checksum, dependencies FROM install_recipes WHERE slug = ?`, slug)
	if err != nil {
		return nil, fmt.Errorf("list recipes %s: %w", slug, err)
	}
	defer rows.Close()

	var out []model.InstallRecipe
	for rows.Next() {
		var r model.InstallRecipe
		var checksum, deps sql.NullString
		if err := rows.Scan(&r.OS, &r.PackageManager, &r.Command, &checksum, &deps); err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		r.Checksum = checksum.String
		if deps.Valid && deps.String != "" {
			if err := json.Unmarshal([]byte(deps.String), &r.Dependencies); err != nil {
				return nil, fmt.Errorf("decode recipe deps: %w", err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func loadCommands(ctx context.Context, q queryer, slug string) ([]model.CommandSpec, error) {
	rows, err := q.QueryContext(ctx, `SELECT doc, deleted_at FROM commands WHERE slug = ? ORDER BY id`, slug)
	if err != nil {
		return nil, fmt.Errorf("list commands %s: %w", slug, err)
	}
	defer rows.Close()

	var out []model.CommandSpec
	for rows.Next() {
		var doc string
		var deleted sql.NullString
		if err := rows.Scan(&doc, &deleted); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		var c model.CommandSpec
		if err := json.Unmarshal([]byte(doc), &c); err != nil {
			return nil, fmt.Errorf("decode command: %w", err)
		}
		c.DeletedAt = nil
		if deleted.Valid {
			t := parseTime(deleted.String)
			c.DeletedAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListProfiles returns profiles matching opts, ordered by slug.
func (s *SQLiteStore) ListProfiles(ctx context.Context, opts ListOpts) ([]model.Profile, error) {
	query := "SELECT p.slug FROM profiles p WHERE 1=1"
	var args []any
	if opts.Tag != "" {
		query += " AND EXISTS (SELECT 1 FROM profile_tags t WHERE t.slug = p.slug AND t.tag = ?)"
		args = append(args, strings.ToLower(opts.Tag))
	}
	if opts.Category != "" {
		query += " AND EXISTS (SELECT 1 FROM profile_categories c WHERE c.slug = p.slug AND c.category = ?)"
		args = append(args, strings.ToLower(opts.Category))
	}
	query += " ORDER BY p.slug"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	slugs, err := s.slugs(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return s.loadAll(ctx, slugs)
}

// ListByBinary returns every profile exposing binary.
func (s *SQLiteStore) ListByBinary(ctx context.Context, binary string) ([]model.Profile, error) {
	slugs, err := s.slugs(ctx,
		`SELECT slug FROM profile_binaries WHERE bin = ? ORDER BY slug`, strings.ToLower(binary))
	if err != nil {
		return nil, fmt.Errorf("list by binary %s: %w", binary, err)
	}
	return s.loadAll(ctx, slugs)
}

func (s *SQLiteStore) slugs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		out = append(out, slug)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadAll(ctx context.Context, slugs []string) ([]model.Profile, error) {
	out := make([]model.Profile, 0, len(slugs))
	for _, slug := range slugs {
		p, err := loadProfile(ctx, s.db, slug)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// VersionHistory returns all listing versions of slug in order.
func (s *SQLiteStore) VersionHistory(ctx context.Context, slug string) ([]model.ListingVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, slug, version_number, changed_fields, changes, changelog, provenance, timestamp
		 FROM listing_versions WHERE slug = ? ORDER BY version_number`, slug)
	if err != nil {
		return nil, fmt.Errorf("version history %s: %w", slug, err)
	}
	defer rows.Close()

	var out []model.ListingVersion
	for rows.Next() {
		var v model.ListingVersion
		var fields, ts, prov string
		var changes sql.NullString
		if err := rows.Scan(&v.ID, &v.Slug, &v.Number, &fields, &changes, &v.Changelog, &prov, &ts); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		if err := json.Unmarshal([]byte(fields), &v.ChangedFields); err != nil {
			return nil, fmt.Errorf("decode changed fields: %w", err)
		}
		if changes.Valid && changes.String != "" {
			if err := json.Unmarshal([]byte(changes.String), &v.Changes); err != nil {
				return nil, fmt.Errorf("decode changes: %w", err)
			}
		}
		v.Provenance = model.Provenance(prov)
		v.Timestamp = parseTime(ts)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		if _, err := s.exists(ctx, slug); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// exists returns ErrNotFound for unknown slugs.
func (s *SQLiteStore) exists(ctx context.Context, slug string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles WHERE slug = ?`, slug).Scan(&n); err != nil {
		return false, fmt.Errorf("lookup %s: %w", slug, err)
	}
	if n == 0 {
		return false, fmt.Errorf("profile %s: %w", slug, ErrNotFound)
	}
	return true, nil
}

// SaveScores updates the derived popularity and trust signals.
func (s *SQLiteStore) SaveScores(ctx context.Context, slug string, sc Scores) error {
	return Retry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE profiles SET popularity = ?, trust = ?, downloads = ? WHERE slug = ?`,
			sc.Popularity, sc.Trust, sc.Downloads, slug)
		if err != nil {
			return fmt.Errorf("save scores %s: %w", slug, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("profile %s: %w", slug, ErrNotFound)
		}
		return nil
	})
}

// GetCompatibility returns the stored record for (slug, agent).
func (s *SQLiteStore) GetCompatibility(ctx context.Context, slug, agent string) (*model.CompatibilityRecord, error) {
	var rec model.CompatibilityRecord
	var status, ts string
	err := s.db.QueryRowContext(ctx,
		`SELECT slug, agent, status, success_rate, samples, last_verified FROM compatibility WHERE slug = ? AND agent = ?`,
		slug, agent,
	).Scan(&rec.Slug, &rec.Agent, &status, &rec.SuccessRate, &rec.Samples, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("compatibility %s/%s: %w", slug, agent, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get compatibility: %w", err)
	}
	rec.Status = model.CompatStatus(status)
	rec.LastVerified = parseTime(ts)
	return &rec, nil
}

// ListCompatibility returns all compatibility records of slug by agent.
func (s *SQLiteStore) ListCompatibility(ctx context.Context, slug string) ([]model.CompatibilityRecord, error) {
	return listCompatibility(ctx, s.db, slug)
}

func listCompatibility(ctx context.Context, q queryer, slug string) ([]model.CompatibilityRecord, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT slug, agent, status, success_rate, samples, last_verified FROM compatibility WHERE slug = ? ORDER BY agent`, slug)
	if err != nil {
		return nil, fmt.Errorf("list compatibility %s: %w", slug, err)
	}
	defer rows.Close()

	var out []model.CompatibilityRecord
	for rows.Next() {
		var rec model.CompatibilityRecord
		var status, ts string
		if err := rows.Scan(&rec.Slug, &rec.Agent, &status, &rec.SuccessRate, &rec.Samples, &ts); err != nil {
			return nil, fmt.Errorf("scan compatibility: %w", err)
		}
		rec.Status = model.CompatStatus(status)
		rec.LastVerified = parseTime(ts)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpsertCompatibility stores a compatibility record.
func (s *SQLiteStore) UpsertCompatibility(ctx context.Context, rec model.CompatibilityRecord) error {
	return Retry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO compatibility (slug, agent, status, success_rate, samples, last_verified)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.Slug, rec.Agent, string(rec.Status), rec.SuccessRate, rec.Samples, formatTime(rec.LastVerified))
		if err != nil {
			return fmt.Errorf("upsert compatibility %s/%s: %w", rec.Slug, rec.Agent, err)
		}
		return nil
	})
}

// CommandExists reports whether slug has an active command id.
func (s *SQLiteStore) CommandExists(ctx context.Context, slug, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM commands WHERE slug = ? AND id = ? AND deleted_at IS NULL`, slug, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("command exists %s/%s: %w", slug, id, err)
	}
	return n > 0, nil
}

// EnqueueCuration adds an item unless an identical one is pending.
func (s *SQLiteStore) EnqueueCuration(ctx context.Context, item model.CurationItem) (bool, error) {
	related, err := json.Marshal(item.Related)
	if err != nil {
		return false, fmt.Errorf("marshal related: %w", err)
	}
	proposed, err := json.Marshal(item.Proposed)
	if err != nil {
		return false, fmt.Errorf("marshal proposed: %w", err)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	var added bool
	err = Retry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO curation_queue (id, dedupe_key, kind, slug, candidate, reason, related, proposed, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, dedupeKey(item), string(item.Kind), nullableString(item.Slug), item.Candidate, item.Reason,
			string(related), string(proposed), formatTime(item.CreatedAt))
		if err != nil {
			return fmt.Errorf("enqueue curation: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		added = n > 0
		return nil
	})
	return added, err
}

// dedupeKey identifies an item by what it asks a human to decide.
func dedupeKey(item model.CurationItem) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s", item.Kind, item.Slug, item.Candidate, strings.Join(item.Related, ","))
	for _, c := range item.Proposed {
		fmt.Fprintf(h, "\x00%s=%s", c.Field, c.After)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ListCuration returns unresolved curation items, oldest first.
func (s *SQLiteStore) ListCuration(ctx context.Context, opts CurationOpts) ([]model.CurationItem, error) {
	query := `SELECT id, kind, slug, candidate, reason, related, proposed, created_at
		FROM curation_queue WHERE resolved_at IS NULL`
	var args []any
	if opts.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(opts.Kind))
	}
	if opts.Slug != "" {
		query += " AND slug = ?"
		args = append(args, opts.Slug)
	}
	query += " ORDER BY created_at, id"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list curation: %w", err)
	}
	defer rows.Close()

	var out []model.CurationItem
	for rows.Next() {
		var item model.CurationItem
		var kind, created string
		var slug, related, proposed sql.NullString
		if err := rows.Scan(&item.ID, &kind, &slug, &item.Candidate, &item.Reason, &related, &proposed, &created); err != nil {
			return nil, fmt.Errorf("scan curation item: %w", err)
		}
		item.Kind = model.CurationKind(kind)
		item.Slug = slug.String
		if related.Valid && related.String != "" && related.String != "null" {
			if err := json.Unmarshal([]byte(related.String), &item.Related); err != nil {
				return nil, fmt.Errorf("decode related: %w", err)
			}
		}
		if proposed.Valid && proposed.String != "" && proposed.String != "null" {
			if err := json.Unmarshal([]byte(proposed.String), &item.Proposed); err != nil {
				return nil, fmt.Errorf("decode proposed: %w", err)
			}
		}
		item.CreatedAt = parseTime(created)
		out = append(out, item)
	}
	return out, rows.Err()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// nullableString returns nil for empty strings so SQLite stores NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableList stores a string list as JSON, or NULL when empty.
func nullableList(v []string) any {
	if len(v) == 0 {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(data)
}
