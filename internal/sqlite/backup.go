// This file implements hot backups with VACUUM INTO and timestamp-based
// retention of the backup directory.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// backupStampLayout is the UTC second part of a backup name; nanoseconds
// follow as a separate 9-digit group.
const backupStampLayout = "20060102_150405"

// BackupName returns <stem>_<yyyymmdd_hhmmss_nnnnnnnnn><ext> for dbFile at t.
func BackupName(dbFile string, t time.Time) string {
	ext := filepath.Ext(dbFile)
	stem := strings.TrimSuffix(filepath.Base(dbFile), ext)
	t = t.UTC()
	return fmt.Sprintf("%s_%s_%09d%s", stem, t.Format(backupStampLayout), t.Nanosecond(), ext)
}

// backupPattern matches the names BackupName produces for dbFile.
func backupPattern(dbFile string) *regexp.Regexp {
	ext := filepath.Ext(dbFile)
	stem := strings.TrimSuffix(filepath.Base(dbFile), ext)
	return regexp.MustCompile("^" + regexp.QuoteMeta(stem) + `_(\d{8}_\d{6})_(\d{9})` + regexp.QuoteMeta(ext) + "$")
}

// backupTime parses the timestamp embedded in a backup name.
func backupTime(re *regexp.Regexp, name string) (time.Time, bool) {
	m := re.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(backupStampLayout, m[1])
	if err != nil {
		return time.Time{}, false
	}
	var nanos int
	if _, err := fmt.Sscanf(m[2], "%d", &nanos); err != nil {
		return time.Time{}, false
	}
	return t.Add(time.Duration(nanos)), true
}

// Backup writes a page-consistent copy of the live database into destDir
// and prunes the oldest backups beyond keep. An empty destDir uses the
// configured backup directory; keep <= 0 disables pruning. Returns the
// path of the new backup.
func (b *Backend) Backup(ctx context.Context, destDir string, keep int) (string, error) {
	db, err := b.handle()
	if err != nil {
		return "", err
	}
	cfg := b.Config()
	if destDir == "" {
		destDir = cfg.BackupDir
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup dir: %w", err)
	}

	path := filepath.Join(destDir, BackupName(cfg.DBFile, b.now()))
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		os.Remove(path)
		b.logger.Error("backup failed", zap.String("path", path), zap.Error(err))
		return "", fmt.Errorf("writing backup %s: %w", path, err)
	}
	b.logger.Info("backup written", zap.String("path", path))

	if keep > 0 {
		removed, err := pruneBackups(destDir, cfg.DBFile, keep)
		if err != nil {
			b.logger.Warn("pruning backups failed", zap.String("dir", destDir), zap.Error(err))
			return path, fmt.Errorf("pruning backups: %w", err)
		}
		if len(removed) > 0 {
			b.logger.Info("old backups pruned", zap.Strings("removed", removed))
		}
	}
	return path, nil
}

// ListBackups returns the backups of dbFile in dir, newest first.
func ListBackups(dir, dbFile string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("reading backup dir: %w", err)
	}
	re := backupPattern(dbFile)
	type stamped struct {
		name string
		at   time.Time
	}
	var found []stamped
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if at, ok := backupTime(re, e.Name()); ok {
			found = append(found, stamped{name: e.Name(), at: at})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].at.Equal(found[j].at) {
			return found[i].name > found[j].name
		}
		return found[i].at.After(found[j].at)
	})
	out := make([]string, len(found))
	for i, f := range found {
		out[i] = filepath.Join(dir, f.name)
	}
	return out, nil
}

// pruneBackups deletes all but the newest keep backups of dbFile in dir.
// Files that do not follow the naming scheme are never touched.
func pruneBackups(dir, dbFile string, keep int) ([]string, error) {
	all, err := ListBackups(dir, dbFile)
	if err != nil {
		return nil, err
	}
	if len(all) <= keep {
		return nil, nil
	}
	var removed []string
	for _, path := range all[keep:] {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("removing %s: %w", path, err)
		}
		removed = append(removed, path)
	}
	return removed, nil
}
