package ledgrator

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	migrationSuffix    = ".sql"
	migrationSeparator = "__"
)

// MigrationUnit is one versioned SQL script.
type MigrationUnit struct {
	// Version orders migrations; compared as a plain string.
	Version string

	// Name is the human readable label ("Initial Schema").
	Name string

	// Filename is the base name of the script. Empty for ledger units.
	Filename string

	// Contents is the raw SQL. Empty for ledger units.
	Contents string

	// Checksum is the hex SHA-1 of Filename followed by Contents.
	Checksum string
}

// ParseMigrationFile builds a MigrationUnit from a VERSION__NAME.sql file.
func ParseMigrationFile(filename, contents string) (MigrationUnit, error) {
	return parseMigrationFile(filename, contents, "")
}

func parseMigrationFile(filename, contents, lineEnding string) (MigrationUnit, error) {
	base := filepath.Base(filename)
	if !strings.HasSuffix(strings.ToLower(base), migrationSuffix) {
		return MigrationUnit{}, fmt.Errorf("%w: %s must end with %s", ErrInvalidMigrationFileName, filename, migrationSuffix)
	}

	parts := strings.Split(base[:len(base)-len(migrationSuffix)], migrationSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return MigrationUnit{}, fmt.Errorf("%w: %s. File pattern: VERSION__NAME.sql", ErrInvalidMigrationFileName, filename)
	}

	version, name := parts[0], strings.ReplaceAll(parts[1], "_", " ")
	if limit := ledgerColumnSize("version"); utf8.RuneCountInString(version) > limit {
		return MigrationUnit{}, fmt.Errorf("%w: %s. Version is longer than %d characters", ErrInvalidMigrationFileName, filename, limit)
	}
	if limit := ledgerColumnSize("name"); utf8.RuneCountInString(name) > limit {
		return MigrationUnit{}, fmt.Errorf("%w: %s. Name is longer than %d characters", ErrInvalidMigrationFileName, filename, limit)
	}

	sum, err := checksum(base, contents, lineEnding)
	if err != nil {
		return MigrationUnit{}, err
	}

	return MigrationUnit{
		Version:  version,
		Name:     name,
		Filename: base,
		Contents: contents,
		Checksum: sum,
	}, nil
}

// OrderMigrations sorts migrations by version in place using plain string
// comparison, so "V10" sorts before "V2". The sort is stable.
func OrderMigrations(migs []MigrationUnit) []MigrationUnit {
	sort.SliceStable(migs, func(i, j int) bool {
		return migs[i].Version < migs[j].Version
	})
	return migs
}

var newlineRe = regexp.MustCompile(`\r\n|\r|\n`)

// convertLineEnding converts all newline variations in content to the target style.
func convertLineEnding(content, lineEnding string) (string, error) {
	var target string
	switch strings.ToUpper(lineEnding) {
	case "LF":
		target = "\n"
	case "CR":
		target = "\r"
	case "CRLF":
		target = "\r\n"
	default:
		return "", fmt.Errorf("newline must be one of: LF, CR, CRLF")
	}
	return newlineRe.ReplaceAllString(content, target), nil
}

// checksum hashes name followed by content, after converting line endings if set.
func checksum(name, content, lineEnding string) (string, error) {
	if lineEnding != "" {
		var err error
		content, err = convertLineEnding(content, lineEnding)
		if err != nil {
			return "", err
		}
	}
	h := sha1.New()
	h.Write([]byte(name))
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// loadMigrations reads every *.sql file in dir, in version order.
func loadMigrations(files Filesystem, dir, lineEnding string) ([]MigrationUnit, error) {
	if !files.Exists(dir) {
		return nil, fmt.Errorf("%w: %s", ErrMigrationsDirectoryNotFound, dir)
	}
	entries, err := files.List(dir)
	if err != nil {
		return nil, err
	}

	var migrations []MigrationUnit
	seen := make(map[string]string)
	for _, name := range entries {
		if !strings.HasSuffix(strings.ToLower(name), migrationSuffix) {
			continue
		}
		contents, err := files.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		mig, err := parseMigrationFile(name, contents, lineEnding)
		if err != nil {
			return nil, err
		}
		if prev, exists := seen[mig.Version]; exists {
			return nil, fmt.Errorf("%w: %s in %s and %s", ErrDuplicateVersion, mig.Version, prev, name)
		}
		seen[mig.Version] = name
		migrations = append(migrations, mig)
	}
	return OrderMigrations(migrations), nil
}
