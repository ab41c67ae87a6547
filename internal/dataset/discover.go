package dataset

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// CaseFile is a discovered case file and the root it was found under.
type CaseFile struct {
	Root string
	Path string
}

func isCaseFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ieee", ".cdf":
		return true
	}
	return false
}

// DiscoverCases returns the IEEE common format files beneath root in lexical
// order, skipping hidden directories. A root that is itself a case file is
// returned as is.
func DiscoverCases(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("discover cases: %w", err)
	}
	if !info.IsDir() {
		if !isCaseFile(root) {
			return nil, fmt.Errorf("discover cases: %s is not a case file", root)
		}
		return []string{root}, nil
	}

	var found []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if isCaseFile(d.Name()) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover cases: %w", err)
	}
	return found, nil
}

// DiscoverAll scans roots in order. A file reachable from several roots is
// reported once, under the first.
func DiscoverAll(roots []string) ([]CaseFile, error) {
	seen := make(map[string]bool)
	var out []CaseFile
	for _, root := range roots {
		paths, err := DiscoverCases(root)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			key := filepath.Clean(p)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, CaseFile{Root: root, Path: p})
		}
	}
	return out, nil
}
