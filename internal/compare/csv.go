package compare

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
)

var csvHeader = []string{"Experiment", "Run Name", "Accuracy", "Loss"}

// WriteCSV overwrites path with a header and one line per row. Metrics keep
// full precision; a missing metric is an empty cell.
func WriteCSV(path string, rows []Row) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		record := []string{r.Experiment, r.RunName, csvFloat(r.Accuracy), csvFloat(r.Loss)}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row %s: %w", r.Experiment, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

func csvFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Save writes rows to path and announces the location. An empty table
// writes nothing and leaves any existing file untouched.
func (c *Comparator) Save(path string, rows []Row) (bool, error) {
	if len(rows) == 0 {
		c.cfg.Logger.Info("no rows to save", "path", path)
		return false, nil
	}
	if err := WriteCSV(path, rows); err != nil {
		return false, err
	}
	fmt.Fprintf(c.cfg.Out, "\nComparison saved to %s\n", path)
	return true, nil
}
