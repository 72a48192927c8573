package dashboard

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TableRow is one dated line of a TableView.
type TableRow struct {
	Date   time.Time             `json:"date"`
	Values []decimal.NullDecimal `json:"values"`
}

// TableView is the data behind a section's chart: the selected series
// within the current window, newest date first.
type TableView struct {
	Columns []string   `json:"columns"`
	Rows    []TableRow `json:"rows"`
}

// TableView returns the charted data as a table. It is empty when there is
// no chart.
func (v *SectionView) TableView() TableView {
	tv := TableView{Columns: []string{}, Rows: []TableRow{}}
	if v.Chart == nil || len(v.Chart.Series) == 0 {
		return tv
	}
	for _, s := range v.Chart.Series {
		tv.Columns = append(tv.Columns, s.Name)
	}
	// every series of a spec shares the same dates
	for i, p := range v.Chart.Series[0].Points {
		row := TableRow{Date: p.X, Values: make([]decimal.NullDecimal, len(v.Chart.Series))}
		for j, s := range v.Chart.Series {
			row.Values[j] = s.Points[i].Y
		}
		tv.Rows = append(tv.Rows, row)
	}
	sort.SliceStable(tv.Rows, func(i, j int) bool {
		return tv.Rows[i].Date.After(tv.Rows[j].Date)
	})
	return tv
}
