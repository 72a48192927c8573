package extract

import (
	"fmt"
	"strings"

	"github.com/mauv0809/fipezap-dashboard/internal/ingest"
	"github.com/mauv0809/fipezap-dashboard/internal/models"
)

// Kind is the semantic type expected in a column.
type Kind string

const (
	KindAny    Kind = "any"
	KindDate   Kind = "date"
	KindNumber Kind = "number"
)

// ColumnSpec is an expectation about one positional column.
type ColumnSpec struct {
	Index int
	// LabelContains must occur in the column label, case-insensitively.
	// Empty accepts any non-empty label.
	LabelContains string
	Kind          Kind
}

// Schema is an ordered list of positional expectations, checked after load
// so layout drift fails loudly instead of slicing the wrong columns.
type Schema []ColumnSpec

// DefaultSchema expects a date column and a number in every column of r.
func DefaultSchema(r models.ColumnRange) Schema {
	schema := Schema{{Index: DateIndex, Kind: KindDate}}
	for col := r.Start; col <= r.End; col++ {
		schema = append(schema, ColumnSpec{Index: col, Kind: KindNumber})
	}
	return schema
}

// WithLabels returns a copy of s whose specs for the given indexes require
// the label fragment.
func (s Schema) WithLabels(labels map[int]string) Schema {
	out := make(Schema, len(s))
	copy(out, s)
	for i := range out {
		if want, ok := labels[out[i].Index]; ok {
			out[i].LabelContains = want
		}
	}
	return out
}

func (s Schema) checkLabels(raw *ingest.RawTable) error {
	for _, spec := range s {
		if spec.Index < 0 || spec.Index >= raw.Width() {
			return ingest.NewFormatError(raw.Sheet, fmt.Sprintf("expected column %d but sheet has %d columns", spec.Index, raw.Width()), nil)
		}
		label := raw.Labels[spec.Index]
		if strings.HasPrefix(label, "Unnamed: ") {
			return ingest.NewFormatError(raw.Sheet, fmt.Sprintf("column %d has no label", spec.Index), nil)
		}
		if spec.LabelContains != "" && !strings.Contains(strings.ToLower(label), strings.ToLower(spec.LabelContains)) {
			return ingest.NewFormatError(raw.Sheet, fmt.Sprintf("column %d label %q does not contain %q", spec.Index, label, spec.LabelContains), nil)
		}
	}
	return nil
}

// checkKinds runs on the cleaned rows: a date column needs at least one
// parsed date, a number column at least one numeric cell.
func (s Schema) checkKinds(raw *ingest.RawTable, r models.ColumnRange, table *models.CleanedTable) error {
	for _, spec := range s {
		switch spec.Kind {
		case KindDate:
			if len(table.Rows) == 0 {
				return ingest.NewFormatError(raw.Sheet, fmt.Sprintf("column %d holds no parseable dates", spec.Index), nil)
			}
		case KindNumber:
			if spec.Index < r.Start || spec.Index > r.End {
				continue
			}
			pos := spec.Index - r.Start
			numeric := false
			for _, row := range table.Rows {
				if row.Values[pos].Valid {
					numeric = true
					break
				}
			}
			if !numeric {
				return ingest.NewFormatError(raw.Sheet, fmt.Sprintf("column %d (%s) holds no numeric values", spec.Index, raw.Labels[spec.Index]), nil)
			}
		}
	}
	return nil
}
