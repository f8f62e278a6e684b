package fonts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
)

func failing(string, bool) (string, []byte, error) {
	return "", nil, errors.New("unavailable")
}

func TestResolverFallsBackToBundled(t *testing.T) {
	r := &Resolver{Candidates: []Candidate{
		{Source: SourceSystem, Load: failing},
		{Source: SourceBundled, Load: LoadBundled},
	}}

	face, src := r.Face("No Such Font", 24, false)
	if src != SourceBundled {
		t.Fatalf("source = %v, want bundled", src)
	}
	if w, h := Measure(face, "Hello"); w <= 0 || h <= 0 {
		t.Errorf("Measure() = %d,%d", w, h)
	}
}

func TestResolverFallsBackToBasic(t *testing.T) {
	r := &Resolver{Candidates: []Candidate{{Source: SourceSystem, Load: failing}}}

	face, src := r.Face("Anything", 40, true)
	if src != SourceBasic {
		t.Fatalf("source = %v, want basic", src)
	}
	if face != basicfont.Face7x13 {
		t.Error("expected basicfont face")
	}
}

func TestResolverSkipsUnparseableData(t *testing.T) {
	r := &Resolver{Candidates: []Candidate{
		{Source: SourceFile, Load: func(string, bool) (string, []byte, error) {
			return "junk", []byte("not a font"), nil
		}},
		{Source: SourceBundled, Load: LoadBundled},
	}}
	if _, src := r.Face("x", 12, false); src != SourceBundled {
		t.Errorf("source = %v, want bundled", src)
	}
}

func TestResolverLargerSizeIsWider(t *testing.T) {
	r := &Resolver{Candidates: []Candidate{{Source: SourceBundled, Load: LoadBundled}}}
	small, _ := r.Face("", 20, false)
	large, _ := r.Face("", 60, false)
	ws, _ := Measure(small, "Title")
	wl, _ := Measure(large, "Title")
	if wl <= ws {
		t.Errorf("60pt width %d should exceed 20pt width %d", wl, ws)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Custom.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0644); err != nil {
		t.Fatal(err)
	}

	r := &Resolver{Candidates: []Candidate{{Source: SourceFile, Load: LoadFile}}}
	if _, src := r.Face(path, 18, false); src != SourceFile {
		t.Errorf("source = %v, want file", src)
	}

	if _, _, err := LoadFile("Arial", false); err == nil {
		t.Error("family name should not load as a file")
	}
}

func TestSourceString(t *testing.T) {
	tests := map[Source]string{
		SourceFile:    "file",
		SourceSystem:  "system",
		SourceBundled: "bundled",
		SourceBasic:   "basic",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", s, got, want)
		}
	}
}
