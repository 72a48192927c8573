package dashboard

import (
	"net/url"
	"strings"
	"time"

	"github.com/mauv0809/fipezap-dashboard/internal/chart"
	"github.com/mauv0809/fipezap-dashboard/internal/models"
)

// Each section reads its state from its own query parameters so a choice
// made in one tab never leaks into another.

// SelectionParam is the multi-valued parameter holding a section's selection.
func SelectionParam(key string) string {
	return "sel_" + key
}

// SelectionMarker is set by the section form so an empty selection can be
// told apart from a first visit.
func SelectionMarker(key string) string {
	return "sel_" + key + "_set"
}

// RangeParam holds a section's quick-range window.
func RangeParam(key string) string {
	return "range_" + key
}

// FromParam and ToParam hold a section's explicit date bounds, as YYYY-MM
// or YYYY-MM-DD.
func FromParam(key string) string {
	return "from_" + key
}

func ToParam(key string) string {
	return "to_" + key
}

// BoundsFromQuery returns the section's date bounds from values. Values that
// do not parse are treated as open.
func BoundsFromQuery(values url.Values, key string) (from, to time.Time) {
	from, _ = chart.ParseBound(values.Get(FromParam(key)), false)
	to, _ = chart.ParseBound(values.Get(ToParam(key)), true)
	return from, to
}

// SelectionFromQuery returns the section's selection from values. Without
// the form marker every option is selected. Values may repeat the parameter
// or separate names with commas; unknown names are kept so the caller can
// report them.
func SelectionFromQuery(values url.Values, key string, options []string) models.Selection {
	raw, present := values[SelectionParam(key)]
	if !present && values.Get(SelectionMarker(key)) == "" {
		return AllOf(options)
	}
	return SplitNames(raw)
}

// SplitNames flattens repeated and comma-separated names, dropping blanks.
func SplitNames(raw []string) models.Selection {
	sel := models.Selection{}
	for _, v := range raw {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				sel = append(sel, name)
			}
		}
	}
	return sel
}

// AllOf selects every option.
func AllOf(options []string) models.Selection {
	sel := make(models.Selection, len(options))
	copy(sel, options)
	return sel
}

// Selected reports whether name is in sel.
func Selected(sel models.Selection, name string) bool {
	for _, s := range sel {
		if s == name {
			return true
		}
	}
	return false
}
