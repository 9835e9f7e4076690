package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/andresuchdata/autopo-dp/backend-go/internal/solver"
)

// PolicyCSV renders a policy as one row per (state, outcome).
func PolicyCSV(policy []solver.PolicyEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"period", "step", "inventory", "backlog", "value", "premium", "base", "prob", "fulfill"}); err != nil {
		return nil, err
	}
	for _, e := range policy {
		for _, c := range e.Choices {
			record := []string{
				strconv.Itoa(e.State.Period),
				strconv.Itoa(e.State.Step),
				strconv.Itoa(e.State.Inventory),
				strconv.Itoa(e.State.Backlog),
				strconv.FormatFloat(e.Value, 'g', -1, 64),
				strconv.Itoa(c.Premium),
				strconv.Itoa(c.Base),
				strconv.FormatFloat(c.Prob, 'g', -1, 64),
				strconv.FormatBool(c.Fulfill),
			}
			if err := w.Write(record); err != nil {
				return nil, fmt.Errorf("write policy row: %w", err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ValueTableCSV renders the computed cost-to-go values.
func ValueTableCSV(rows []solver.StateValue) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"period", "step", "inventory", "backlog", "value"}); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write([]string{
			strconv.Itoa(r.State.Period),
			strconv.Itoa(r.State.Step),
			strconv.Itoa(r.State.Inventory),
			strconv.Itoa(r.State.Backlog),
			strconv.FormatFloat(r.Value, 'g', -1, 64),
		}); err != nil {
			return nil, fmt.Errorf("write value row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
