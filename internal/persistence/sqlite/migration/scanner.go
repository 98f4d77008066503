package migration

import (
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// fileName matches {version}_{description}.sql.
var fileName = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// Scanner reads migrations from one directory of an fs.FS. Subdirectories
// and files without the .sql suffix are ignored.
type Scanner struct {
	fsys fs.FS
	dir  string
}

func NewScanner(fsys fs.FS, dir string) *Scanner {
	if dir == "" {
		dir = "."
	}
	return &Scanner{fsys: fsys, dir: dir}
}

// Scan returns the migrations sorted by numeric version.
func (s *Scanner) Scan() ([]Migration, error) {
	entries, err := fs.ReadDir(s.fsys, s.dir)
	if err != nil {
		return nil, wrap("", s.dir, "read dir", err)
	}

	var migrations []Migration
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		m, err := s.read(entry.Name())
		if err != nil {
			return nil, err
		}
		if other, dup := seen[m.Version]; dup {
			return nil, wrap(m.Version, entry.Name(), "scan",
				fmt.Errorf("%w: %s and %s", ErrDuplicateVersion, other, entry.Name()))
		}
		seen[m.Version] = entry.Name()
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return versionNumber(migrations[i].Version) < versionNumber(migrations[j].Version)
	})
	return migrations, nil
}

func (s *Scanner) read(name string) (Migration, error) {
	parts := fileName.FindStringSubmatch(name)
	if parts == nil {
		return Migration{}, wrap("", name, "scan",
			fmt.Errorf("%w: %q is not {version}_{description}.sql", ErrInvalidMigrationFile, name))
	}
	version, slug := parts[1], parts[2]
	if versionNumber(version) < 0 {
		return Migration{}, wrap("", name, "scan", fmt.Errorf("%w: %q", ErrInvalidVersion, version))
	}

	filePath := path.Join(s.dir, name)
	content, err := fs.ReadFile(s.fsys, filePath)
	if err != nil {
		return Migration{}, wrap(version, filePath, "read", err)
	}
	body := string(content)
	if len(splitStatements(body)) == 0 {
		return Migration{}, wrap(version, filePath, "scan", fmt.Errorf("%w: no statements", ErrInvalidMigrationFile))
	}

	description := headerDescription(body)
	if description == "" {
		description = strings.ReplaceAll(slug, "_", " ")
	}
	sum := blake2b.Sum256(content)
	return Migration{
		Version:     version,
		Description: description,
		SQL:         body,
		FilePath:    filePath,
		Checksum:    hex.EncodeToString(sum[:]),
	}, nil
}

// headerDescription returns the "-- Description:" line of the leading
// comment block, if any.
func headerDescription(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case !strings.HasPrefix(line, "--"):
			return ""
		}
		if rest, ok := strings.CutPrefix(line, "-- Description:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

func versionNumber(version string) int {
	n, err := strconv.Atoi(version)
	if err != nil || n < 0 {
		return -1
	}
	return n
}
