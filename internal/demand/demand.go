// Package demand loads discrete demand distributions from CSV or XLSX files.
//
// A marginal file has two columns (outcome, probability); a joint file has three
// (premium outcome, base outcome, probability). A leading header row is skipped
// when its first cell is not numeric.
package demand

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andresuchdata/autopo-dp/backend-go/internal/solver"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

const probTolerance = 1e-6

var ErrUnsupportedFormat = errors.New("unsupported distribution file format")

// MaxOutcome is the largest demand outcome accepted from files and inline pairs.
const MaxOutcome = math.MaxInt32

// LoadDistribution reads a marginal distribution from path.
func LoadDistribution(path string) (solver.Distribution, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	d, err := ParseDistribution(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	warnMass(path, d.TotalProb())
	return d, nil
}

// LoadJoint reads a joint distribution from path.
func LoadJoint(path string) (solver.JointDistribution, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	j, err := ParseJoint(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	warnMass(path, j.TotalProb())
	return j, nil
}

// ParseDistribution converts raw (outcome, probability) records.
func ParseDistribution(rows [][]string) (solver.Distribution, error) {
	rows = dropHeader(rows)
	out := make(solver.Distribution, 0, len(rows))
	for i, row := range rows {
		if blank(row) {
			continue
		}
		if len(row) < 2 {
			return nil, fmt.Errorf("row %d: expected 2 columns, got %d", i+1, len(row))
		}
		v, err := parseOutcome(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		p, err := parseProb(row[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, solver.Outcome{Value: v, Prob: p})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no outcomes", solver.ErrInvalidDistribution)
	}
	return out, nil
}

// ParseJoint converts raw (premium, base, probability) records.
func ParseJoint(rows [][]string) (solver.JointDistribution, error) {
	rows = dropHeader(rows)
	out := make(solver.JointDistribution, 0, len(rows))
	for i, row := range rows {
		if blank(row) {
			continue
		}
		if len(row) < 3 {
			return nil, fmt.Errorf("row %d: expected 3 columns, got %d", i+1, len(row))
		}
		x, err := parseOutcome(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		y, err := parseOutcome(row[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		p, err := parseProb(row[2])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, solver.JointOutcome{Premium: x, Base: y, Prob: p})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no outcomes", solver.ErrInvalidDistribution)
	}
	return out, nil
}

// FromPairs builds a distribution from inline [outcome, probability] pairs.
func FromPairs(pairs [][]float64) (solver.Distribution, error) {
	out := make(solver.Distribution, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: pair %d: expected [outcome, probability]", solver.ErrInvalidDistribution, i)
		}
		v, err := toOutcome(pair[0])
		if err != nil {
			return nil, fmt.Errorf("pair %d: %w", i, err)
		}
		out = append(out, solver.Outcome{Value: v, Prob: pair[1]})
	}
	return out, nil
}

// JointFromTriples builds a joint distribution from inline [premium, base, probability] triples.
func JointFromTriples(triples [][]float64) (solver.JointDistribution, error) {
	out := make(solver.JointDistribution, 0, len(triples))
	for i, t := range triples {
		if len(t) != 3 {
			return nil, fmt.Errorf("%w: triple %d: expected [premium, base, probability]", solver.ErrInvalidDistribution, i)
		}
		x, err := toOutcome(t[0])
		if err != nil {
			return nil, fmt.Errorf("triple %d: %w", i, err)
		}
		y, err := toOutcome(t[1])
		if err != nil {
			return nil, fmt.Errorf("triple %d: %w", i, err)
		}
		out = append(out, solver.JointOutcome{Premium: x, Base: y, Prob: t[2]})
	}
	return out, nil
}

func readRows(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xlsx":
		return readXLSX(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row from %s: %w", path, err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// readXLSX reads the first sheet.
func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx file %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx file %s has no sheets", path)
	}
	sheet := sheets[0]

	it, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	defer it.Close()

	var rows [][]string
	for it.Next() {
		record, err := it.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read row from %s: %w", path, err)
		}
		rows = append(rows, record)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("error iterating rows in %s: %w", path, err)
	}
	return rows, nil
}

func dropHeader(rows [][]string) [][]string {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return rows
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(rows[0][0]), 64); err != nil {
		return rows[1:]
	}
	return rows
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseOutcome(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid outcome %q: %w", s, err)
	}
	return toOutcome(f)
}

// toOutcome accepts integral floats such as "2.0" written by spreadsheet tools.
// Magnitudes above MaxOutcome are rejected before the int conversion.
func toOutcome(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: outcome %v is not an integer", solver.ErrInvalidDistribution, f)
	}
	if math.Abs(f) > MaxOutcome {
		return 0, fmt.Errorf("%w: outcome %v exceeds %d", solver.ErrInvalidDistribution, f, MaxOutcome)
	}
	return int(f), nil
}

func parseProb(s string) (float64, error) {
	p, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid probability %q: %w", s, err)
	}
	return p, nil
}

func warnMass(path string, total float64) {
	if math.Abs(total-1) > probTolerance {
		log.Warn().Str("file", path).Float64("total", total).Msg("distribution probabilities do not sum to 1")
	}
}
