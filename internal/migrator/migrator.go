// Package migrator applies the embedded SQL migrations through gorm.
//
// Files are named NNNN_description.up.sql / NNNN_description.down.sql and are
// applied in version order, each inside its own transaction. Applied versions
// are recorded in schema_migrations.
package migrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Migration is one versioned schema change.
type Migration struct {
	Version uint
	Name    string
	Up      string
	Down    string
}

// Migrator manages database migrations.
type Migrator struct {
	migrations []Migration
}

type schemaMigration struct {
	Version   uint `gorm:"primaryKey;autoIncrement:false"`
	AppliedAt time.Time
}

func (schemaMigration) TableName() string { return "schema_migrations" }

// NewWithFS loads migrations from the root of the given filesystem.
func NewWithFS(migrationsFS fs.FS) (*Migrator, error) {
	if migrationsFS == nil {
		return nil, errors.New("migrationsFS cannot be nil")
	}

	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := make(map[uint]*Migration)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		version, name, direction, err := parseFilename(e.Name())
		if err != nil {
			return nil, err
		}
		body, err := fs.ReadFile(migrationsFS, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if direction == "up" {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %04d_%s has no up file", m.Version, m.Name)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })

	return &Migrator{migrations: out}, nil
}

// Migrations returns the loaded migrations in order.
func (m *Migrator) Migrations() []Migration {
	return m.migrations
}

// Up runs all pending migrations and returns how many were applied.
func (m *Migrator) Up(ctx context.Context, db *gorm.DB) (int, error) {
	if db == nil {
		return 0, errors.New("database cannot be nil")
	}
	db = db.WithContext(ctx)

	if err := db.AutoMigrate(&schemaMigration{}); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := m.Version(ctx, db)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, mig := range m.migrations {
		if mig.Version <= current {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			for _, stmt := range splitStatements(mig.Up) {
				if err := tx.Exec(stmt).Error; err != nil {
					return err
				}
			}
			return tx.Create(&schemaMigration{Version: mig.Version, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return applied, fmt.Errorf("apply migration %04d_%s: %w", mig.Version, mig.Name, err)
		}
		applied++
	}

	return applied, nil
}

// Down rolls back the most recent migration. It is a no-op on an empty schema.
func (m *Migrator) Down(ctx context.Context, db *gorm.DB) error {
	current, err := m.Version(ctx, db)
	if err != nil || current == 0 {
		return err
	}

	for _, mig := range m.migrations {
		if mig.Version != current {
			continue
		}
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, stmt := range splitStatements(mig.Down) {
				if err := tx.Exec(stmt).Error; err != nil {
					return fmt.Errorf("revert migration %04d: %w", mig.Version, err)
				}
			}
			return tx.Delete(&schemaMigration{Version: mig.Version}).Error
		})
	}
	return fmt.Errorf("migration %d is applied but not known", current)
}

// Version returns the highest applied version, 0 when nothing was applied yet.
func (m *Migrator) Version(ctx context.Context, db *gorm.DB) (uint, error) {
	if db == nil {
		return 0, errors.New("database cannot be nil")
	}
	db = db.WithContext(ctx)

	if !db.Migrator().HasTable(&schemaMigration{}) {
		return 0, nil
	}

	var version uint
	if err := db.Model(&schemaMigration{}).Select("COALESCE(MAX(version), 0)").Scan(&version).Error; err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}
	return version, nil
}

func parseFilename(name string) (version uint, desc, direction string, err error) {
	base := strings.TrimSuffix(name, ".sql")
	switch {
	case strings.HasSuffix(base, ".up"):
		direction = "up"
	case strings.HasSuffix(base, ".down"):
		direction = "down"
	default:
		return 0, "", "", fmt.Errorf("migration %s: missing .up or .down suffix", name)
	}
	base = strings.TrimSuffix(base, "."+direction)

	num, desc, ok := strings.Cut(base, "_")
	if !ok {
		return 0, "", "", fmt.Errorf("migration %s: expected NNNN_name", name)
	}
	v, err := strconv.ParseUint(num, 10, 32)
	if err != nil || v == 0 {
		return 0, "", "", fmt.Errorf("migration %s: invalid version %q", name, num)
	}
	return uint(v), desc, direction, nil
}

// splitStatements splits a script on semicolons that end a line. Migrations
// do not contain procedural blocks, so this is enough.
func splitStatements(script string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}
