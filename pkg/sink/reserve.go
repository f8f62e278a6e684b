package sink

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// maxReserveAttempts bounds the _2, _3, ... suffixes tried for one stem.
const maxReserveAttempts = 1000

// Reservation is a set of destination names claimed for one export. The
// names exist on disk as empty placeholders until the export writes them.
type Reservation struct {
	Dir   string
	Stem  string
	paths []string
}

// Reserve claims dir/stem+ext for every ext. When any of the names is taken
// it tries stem_2, stem_3 and so on. Claims are made with O_EXCL, so two
// exports in the same process or in different processes never receive the
// same names.
func Reserve(dir, stem string, exts ...string) (*Reservation, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	for n := 1; n <= maxReserveAttempts; n++ {
		candidate := stem
		if n > 1 {
			candidate = fmt.Sprintf("%s_%d", stem, n)
		}
		paths, err := claim(dir, candidate, exts)
		if err == nil {
			return &Reservation{Dir: dir, Stem: candidate, paths: paths}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("no free name for %s in %s", stem, dir)
}

func claim(dir, stem string, exts []string) ([]string, error) {
	claimed := make([]string, 0, len(exts))
	for _, ext := range exts {
		p := filepath.Join(dir, stem+ext)
		f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err != nil {
			for _, c := range claimed {
				os.Remove(c)
			}
			return nil, err
		}
		f.Close()
		claimed = append(claimed, p)
	}
	return claimed, nil
}

// Path returns the reserved path for ext.
func (r *Reservation) Path(ext string) string {
	return filepath.Join(r.Dir, r.Stem+ext)
}

// Release removes the placeholders nothing was written to. It is safe to
// call after a successful export.
func (r *Reservation) Release() {
	for _, p := range r.paths {
		if st, err := os.Stat(p); err == nil && st.Size() == 0 {
			os.Remove(p)
		}
	}
}
