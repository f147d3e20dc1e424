package pg

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// ====================== MIGRACIONES ======================

// RunMigrations aplica los *_up.sql del FS en orden lexicográfico.
// Las migraciones son idempotentes (IF NOT EXISTS), así que re-ejecutar
// en cada arranque es seguro.
func (s *Store) RunMigrations(ctx context.Context, fsys fs.FS, dir string) error {
	files, err := migrationFiles(fsys, dir, "_up.sql")
	if err != nil {
		return err
	}
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec %s: %w", f, err)
		}
	}
	return nil
}

// RunMigrationsDown aplica los *_down.sql en orden inverso.
func (s *Store) RunMigrationsDown(ctx context.Context, fsys fs.FS, dir string) error {
	files, err := migrationFiles(fsys, dir, "_down.sql")
	if err != nil {
		return err
	}
	for i := len(files) - 1; i >= 0; i-- {
		b, err := fs.ReadFile(fsys, files[i])
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec %s: %w", files[i], err)
		}
	}
	return nil
}

func migrationFiles(fsys fs.FS, dir, suffix string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			files = append(files, dir+"/"+e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
