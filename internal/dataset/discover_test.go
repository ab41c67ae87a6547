package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverCasesBasic(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "ieee14.ieee"))
	mustWrite(t, filepath.Join(dir, "nested", "ieee30.CDF"))
	mustWrite(t, filepath.Join(dir, "ignore.txt"))

	cases, err := DiscoverCases(dir)
	if err != nil {
		t.Fatalf("DiscoverCases error: %v", err)
	}
	want := []string{
		filepath.Join(dir, "ieee14.ieee"),
		filepath.Join(dir, "nested", "ieee30.CDF"),
	}
	if len(cases) != len(want) {
		t.Fatalf("expected %d cases, got %d", len(want), len(cases))
	}
	for i, c := range want {
		if cases[i] != c {
			t.Fatalf("case[%d]=%s want %s", i, cases[i], c)
		}
	}
}

func TestDiscoverCasesSkipsHiddenAndAcceptsFile(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "b.ieee"))
	mustWrite(t, filepath.Join(dir, ".cache", "stale.ieee"))

	cases, err := DiscoverCases(dir)
	if err != nil {
		t.Fatalf("DiscoverCases error: %v", err)
	}
	if len(cases) != 1 || cases[0] != filepath.Join(dir, "b.ieee") {
		t.Fatalf("unexpected cases %v", cases)
	}

	file := filepath.Join(dir, "b.ieee")
	cases, err = DiscoverCases(file)
	if err != nil || len(cases) != 1 || cases[0] != file {
		t.Fatalf("file root: cases=%v err=%v", cases, err)
	}

	mustWrite(t, filepath.Join(dir, "notes.txt"))
	if _, err := DiscoverCases(filepath.Join(dir, "notes.txt")); err == nil {
		t.Fatal("expected error for non-case file root")
	}
}

func TestDiscoverAll(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	mustWrite(t, filepath.Join(rootA, "a.ieee"))
	mustWrite(t, filepath.Join(rootB, "b.ieee"))
	mustWrite(t, filepath.Join(rootB, "c.ieee"))

	// rootA is listed twice and b.ieee is also named directly
	found, err := DiscoverAll([]string{rootA, rootB, rootA, filepath.Join(rootB, "b.ieee")})
	if err != nil {
		t.Fatalf("DiscoverAll error: %v", err)
	}
	want := []CaseFile{
		{Root: rootA, Path: filepath.Join(rootA, "a.ieee")},
		{Root: rootB, Path: filepath.Join(rootB, "b.ieee")},
		{Root: rootB, Path: filepath.Join(rootB, "c.ieee")},
	}
	if len(found) != len(want) {
		t.Fatalf("expected %d cases, got %v", len(want), found)
	}
	for i := range want {
		if found[i] != want[i] {
			t.Fatalf("found[%d]=%v want %v", i, found[i], want[i])
		}
	}

	if _, err := DiscoverAll([]string{filepath.Join(rootA, "missing")}); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func mustWrite(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
