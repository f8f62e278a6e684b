package project

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/pipeline"
)

// CoversDir is the directory, next to the CSV file, that receives the covers.
const CoversDir = "covers_output"

// CoverSuffix ends every stem generated from a CSV title.
const CoverSuffix = "_630x500"

// CoverRow is one CSV line turned into a cover config. Err is set when the
// line cannot be used; other rows are unaffected.
type CoverRow struct {
	Line   int
	Config pipeline.CoverConfig
	Err    error
}

// coverColumns maps CSV headers onto cover fields. The long names are the
// spelling used by older sheets.
var coverColumns = map[string]func(c *pipeline.CoverConfig, v string) error{
	"title":            func(c *pipeline.CoverConfig, v string) error { c.Title = v; return nil },
	"studio":           func(c *pipeline.CoverConfig, v string) error { c.Studio = v; return nil },
	"version":          func(c *pipeline.CoverConfig, v string) error { c.Version = v; return nil },
	"font":             func(c *pipeline.CoverConfig, v string) error { c.Font = v; return nil },
	"background":       func(c *pipeline.CoverConfig, v string) error { c.Background = v; return nil },
	"background_type":  func(c *pipeline.CoverConfig, v string) error { c.Background = v; return nil },
	"color":            func(c *pipeline.CoverConfig, v string) error { c.Color = v; return nil },
	"background_color": func(c *pipeline.CoverConfig, v string) error { c.Color = v; return nil },
	"background_image": func(c *pipeline.CoverConfig, v string) error { c.BackgroundImage = v; return nil },
	"logo":             func(c *pipeline.CoverConfig, v string) error { c.Logo = v; return nil },
	"logo_path":        func(c *pipeline.CoverConfig, v string) error { c.Logo = v; return nil },
	"bold":             func(c *pipeline.CoverConfig, v string) error { c.Bold = isTrue(v); return nil },
	"shadow":           func(c *pipeline.CoverConfig, v string) error { c.Shadow = isTrue(v); return nil },
	"metadata":         func(c *pipeline.CoverConfig, v string) error { c.Metadata = isTrue(v); return nil },
	"include_metadata": func(c *pipeline.CoverConfig, v string) error { c.Metadata = isTrue(v); return nil },
	"export_png":       func(c *pipeline.CoverConfig, v string) error { setFormat(c, pipeline.FormatPNG, isTrue(v)); return nil },
	"export_jpg":       func(c *pipeline.CoverConfig, v string) error { setFormat(c, pipeline.FormatJPG, isTrue(v)); return nil },
	"formats": func(c *pipeline.CoverConfig, v string) error {
		c.Formats = strings.FieldsFunc(v, func(r rune) bool { return r == ';' || r == '|' || r == ' ' })
		return pipeline.ValidateFormats(c.Formats)
	},
}

// isTrue matches sheet exports that write TRUE/FALSE in any case.
func isTrue(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

func setFormat(c *pipeline.CoverConfig, format string, on bool) {
	i := slices.Index(c.Formats, format)
	switch {
	case on && i < 0:
		c.Formats = append(slices.Clone(c.Formats), format)
	case !on && i >= 0:
		c.Formats = slices.Delete(slices.Clone(c.Formats), i, i+1)
	}
}

// ReadCoverRows parses a CSV of covers. The header must contain "title";
// unknown columns are ignored and empty cells keep base's value. Each row
// gets the stem "<sanitized title>_630x500".
func ReadCoverRows(r io.Reader, base pipeline.CoverConfig) ([]CoverRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.Validation("CSV file is empty")
	}
	if err != nil {
		return nil, errors.Validation("read CSV header: %v", err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	if !slices.Contains(header, "title") {
		return nil, errors.Validation("CSV must contain the following headers: [title]")
	}

	var rows []CoverRow
	for n := 1; ; n++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		row := CoverRow{Line: n + 1, Config: base}
		row.Config.Formats = slices.Clone(base.Formats)
		if err != nil {
			row.Err = errors.Validation("row %d: %v", n, err)
			rows = append(rows, row)
			continue
		}
		row.Err = applyRow(&row.Config, header, record)
		if row.Err == nil {
			row.Config.Stem = CoverStem(row.Config.Title, n)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func applyRow(cfg *pipeline.CoverConfig, header, record []string) error {
	for i, v := range record {
		if i >= len(header) || strings.TrimSpace(v) == "" {
			continue
		}
		set, ok := coverColumns[header[i]]
		if !ok {
			continue
		}
		if err := set(cfg, strings.TrimSpace(v)); err != nil {
			return err
		}
	}
	if strings.TrimSpace(cfg.Title) == "" {
		return errors.Validation("title is empty")
	}
	return nil
}

// CoverStem builds the file stem for a CSV title. Titles with nothing left
// after sanitizing fall back to the row number.
func CoverStem(title string, row int) string {
	stem := errors.SanitizeTitle(title)
	if stem == "" {
		stem = "cover_" + strconv.Itoa(row)
	}
	return stem + CoverSuffix
}

// LoadCoverCSV reads the CSV at path. Covers go to CoversDir beside it and
// relative image columns resolve against the CSV's directory.
func LoadCoverCSV(path string, base pipeline.CoverConfig) ([]CoverRow, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "CSV file not found: %s", path)
		}
		return nil, fmt.Errorf("open CSV: %w", err)
	}
	defer f.Close()

	dir := filepath.Dir(path)
	base.OutputDir = filepath.Join(dir, CoversDir)
	rows, err := ReadCoverRows(f, base)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		c := &rows[i].Config
		for _, p := range []*string{&c.Logo, &c.BackgroundImage} {
			if *p != "" && !filepath.IsAbs(*p) {
				*p = filepath.Join(dir, *p)
			}
		}
	}
	return rows, nil
}
