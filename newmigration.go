package ledgrator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	nonAlnumRe   = regexp.MustCompile(`[^A-Za-z0-9]+`)
	intVersionRe = regexp.MustCompile(`^[Vv]?(\d+)$`)
)

// CreateMigration writes an empty VERSION__Name.sql script to dir and returns
// its path.
//
// mode "int" (the default) picks the next zero padded integer after the
// highest numeric version in dir, e.g. V004. mode "timestamp" uses the current
// UTC time, e.g. V20250102150405.
func CreateMigration(dir, description, mode string) (string, error) {
	name := migrationName(description)
	if name == "" {
		return "", fmt.Errorf("%w: description %q has no usable characters", ErrInvalidMigrationFileName, description)
	}

	var version string
	switch strings.ToLower(mode) {
	case "timestamp":
		version = "V" + time.Now().UTC().Format("20060102150405")
	case "", "int":
		next, err := nextIntVersion(dir)
		if err != nil {
			return "", err
		}
		version = fmt.Sprintf("V%03d", next)
	default:
		return "", fmt.Errorf("unknown numbering mode %q: must be int or timestamp", mode)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create migrations directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, version+migrationSeparator+name+migrationSuffix)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create migration file %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString("-- Write your migration SQL here\n"); err != nil {
		return "", fmt.Errorf("failed to write migration file %s: %w", path, err)
	}
	return path, nil
}

// CreateMigration scaffolds a script in the migrator's migration directory.
func (m *Migrator) CreateMigration(description, mode string) (string, error) {
	return CreateMigration(m.MigrationsDir(), description, mode)
}

// migrationName turns a description into the NAME part of a file name.
// "create users table" becomes "create_users_table".
func migrationName(description string) string {
	return strings.Trim(nonAlnumRe.ReplaceAllString(strings.TrimSpace(description), "_"), "_")
}

func nextIntVersion(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to scan migration files: %w", err)
	}

	highest := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		mig, err := ParseMigrationFile(e.Name(), "")
		if err != nil {
			continue
		}
		match := intVersionRe.FindStringSubmatch(mig.Version)
		if match == nil {
			continue
		}
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		highest = max(highest, n)
	}
	return highest + 1, nil
}
