package probe

import (
	"testing"
	"time"
)

func TestDetectOmitsMissingProgramsByDefault(t *testing.T) {
	results := Detect(Options{
		FilterCategories: []string{"go_tools"},
		VersionTimeout:   500 * time.Millisecond,
	})
	for _, r := range results {
		if !r.Found {
			t.Errorf("result %+v reported Found=false in a Found-only result set", r)
		}
	}
}

func TestDetectIncludeMissingReturnsEveryCatalogEntry(t *testing.T) {
	results := Detect(Options{
		FilterCategories: []string{"vcs"},
		IncludeMissing:   true,
		VersionTimeout:   500 * time.Millisecond,
	})
	if len(results) != len(catalog["vcs"]) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(catalog["vcs"]))
	}
}

func TestDetectUnknownCategoryYieldsNoResults(t *testing.T) {
	results := Detect(Options{
		FilterCategories: []string{"not-a-real-category"},
		IncludeMissing:   true,
	})
	if len(results) != 0 {
		t.Fatalf("len(results) = %d, want 0", len(results))
	}
}

func TestDetectResultsAreSortedByCategoryThenName(t *testing.T) {
	results := Detect(Options{IncludeMissing: true, VersionTimeout: 200 * time.Millisecond})
	for i := 1; i < len(results); i++ {
		prev, cur := results[i-1], results[i]
		if prev.Category > cur.Category {
			t.Fatalf("results not sorted by category at index %d: %q > %q", i, prev.Category, cur.Category)
		}
		if prev.Category == cur.Category && prev.Name > cur.Name {
			t.Fatalf("results not sorted by name at index %d within category %q", i, prev.Category)
		}
	}
}

func TestVersionReturnsFirstNonEmptyLine(t *testing.T) {
	version, err := Version("/bin/sh", 2*time.Second)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if version == "" {
		t.Error("expected a non-empty version string")
	}
}

func TestVersionUnknownPathReturnsError(t *testing.T) {
	if _, err := Version("/definitely/not/a/real/binary", 200*time.Millisecond); err == nil {
		t.Error("expected an error probing a nonexistent binary")
	}
}

func TestWhichAllFindsShOnPath(t *testing.T) {
	matches := whichAll("sh")
	if len(matches) == 0 {
		t.Skip("sh not found on PATH in this environment")
	}
}

func TestCategoriesNonEmpty(t *testing.T) {
	if len(Categories()) == 0 {
		t.Fatal("expected at least one category")
	}
}
