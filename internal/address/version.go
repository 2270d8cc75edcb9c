package address

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// VersionedName returns base.ext for version 0 and base{n}.ext otherwise.
func VersionedName(base, ext string, n int) string {
	if n <= 0 {
		return base + "." + ext
	}
	return base + strconv.Itoa(n) + "." + ext
}

// Versions lists the version numbers of base.ext present in dir in
// ascending order. An unsuffixed file is version 0. A missing directory
// yields an empty result.
func Versions(dir, base, ext string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []int{}, nil
		}
		return nil, fmt.Errorf("address: list versions in %s: %w", dir, err)
	}
	re := versionRe(base, ext)
	seen := make(map[int]struct{})
	out := []int{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, ok := parseVersion(re, e.Name())
		if !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// NextVersion returns max(existing)+1, or 0 when nothing exists yet.
func NextVersion(versions []int) int {
	if len(versions) == 0 {
		return 0
	}
	return versions[len(versions)-1] + 1
}

// versionSuffix matches the empty suffix of version 0 or a number without
// leading zeros, so base0.ext and base01.ext are not versions.
const versionSuffix = `|[1-9]\d*`

// VersionedPattern is an expression matching every version name of
// base.ext.
func VersionedPattern(base, ext string) string {
	return regexp.QuoteMeta(base) + `(?:` + versionSuffix + `)\.` + regexp.QuoteMeta(ext)
}

// SplitName splits name.ext at its last dot. ok is false when either part
// would be empty.
func SplitName(filename string) (base, ext string, ok bool) {
	i := strings.LastIndexByte(filename, '.')
	if i <= 0 || i == len(filename)-1 {
		return "", "", false
	}
	return filename[:i], filename[i+1:], true
}

func versionRe(base, ext string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `(` + versionSuffix + `)\.` + regexp.QuoteMeta(ext) + `$`)
}

func parseVersion(re *regexp.Regexp, name string) (int, bool) {
	m := re.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	if m[1] == "" {
		return 0, true
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
