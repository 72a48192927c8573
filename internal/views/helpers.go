// Package views renders the dashboard pages as templ components.
package views

import (
	"errors"
	"net/url"
	"sort"
	"time"

	"github.com/mauv0809/fipezap-dashboard/internal/chart"
	"github.com/mauv0809/fipezap-dashboard/internal/dashboard"
	"github.com/mauv0809/fipezap-dashboard/internal/extract"
	"github.com/mauv0809/fipezap-dashboard/internal/ingest"
	"github.com/mauv0809/fipezap-dashboard/internal/models"
	"github.com/shopspring/decimal"
)

func formatDate(t time.Time) string {
	return t.Format("01/2006")
}

func formatValue(v decimal.NullDecimal) string {
	if !v.Valid {
		return "–"
	}
	return v.Decimal.String()
}

func formatFetchedAt(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("02/01/2006 15:04")
}

// formatBound is the value of a month input; the zero time is empty.
func formatBound(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01")
}

func windowLabel(w models.RangeWindow) string {
	switch w {
	case models.WindowOneYear:
		return "1 ano"
	case models.WindowFiveYears:
		return "5 anos"
	default:
		return "Tudo"
	}
}

// withQuery returns path with q's values, overriding the given pairs. An
// empty value removes the parameter.
func withQuery(path string, q url.Values, pairs ...string) string {
	out := url.Values{}
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			out.Del(pairs[i])
			continue
		}
		out.Set(pairs[i], pairs[i+1])
	}
	if len(out) == 0 {
		return path
	}
	return path + "?" + out.Encode()
}

// tabURL switches the dashboard to the section's tab.
func tabURL(page *dashboard.Page, key string) string {
	return withQuery("/", page.Query, "tab", key)
}

// rangeURL selects a quick range. Explicit bounds of the section are
// dropped so the window applies on its own.
func rangeURL(v *dashboard.SectionView, action string, query url.Values, tabbed bool, w models.RangeWindow) string {
	key := v.Section.Key
	pairs := []string{
		dashboard.RangeParam(key), string(w),
		dashboard.FromParam(key), "",
		dashboard.ToParam(key), "",
	}
	if tabbed {
		pairs = append(pairs, "tab", key)
	}
	return withQuery(action, query, pairs...)
}

// chartURL points at the rendered image for the view's selection, window
// and bounds.
func chartURL(v *dashboard.SectionView) string {
	q := url.Values{}
	for _, name := range v.Selection {
		q.Add("series", name)
	}
	if v.Window != models.WindowAll {
		q.Set("range", string(v.Window))
	}
	if !v.From.IsZero() {
		q.Set("from", v.From.Format("2006-01-02"))
	}
	if !v.To.IsZero() {
		q.Set("to", v.To.Format("2006-01-02"))
	}
	path := "/charts/" + v.Section.Key + ".png"
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

type param struct {
	Name  string
	Value string
}

// carried lists the query parameters a section's form does not set itself,
// sorted by name, so submitting the form keeps them.
func carried(query url.Values, key string) []param {
	names := make([]string, 0, len(query))
	for name := range query {
		if !ownsParam(key, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	var out []param
	for _, name := range names {
		for _, value := range query[name] {
			out = append(out, param{Name: name, Value: value})
		}
	}
	return out
}

// ownsParam reports whether the section's form sets the query parameter.
func ownsParam(key, name string) bool {
	switch name {
	case "tab", dashboard.SelectionParam(key), dashboard.SelectionMarker(key), dashboard.RangeParam(key),
		dashboard.FromParam(key), dashboard.ToParam(key):
		return true
	}
	return false
}

// errorMessage is the user-facing text of a load or extraction failure.
func errorMessage(err error) string {
	var ambiguous *extract.AmbiguousColumnError
	switch {
	case errors.Is(err, ingest.ErrSheetNotFound):
		return "A aba da cidade não foi encontrada na planilha: " + err.Error()
	case errors.Is(err, ingest.ErrFetch):
		return "Não foi possível baixar a planilha: " + err.Error()
	case errors.Is(err, ingest.ErrFormat):
		return "A planilha não tem o formato esperado: " + err.Error()
	case errors.As(err, &ambiguous):
		return "Colunas ambíguas na planilha: " + err.Error()
	case errors.Is(err, chart.ErrUnknownWindow):
		return "Intervalo desconhecido: " + err.Error()
	default:
		return "Erro: " + err.Error()
	}
}

// warningMessage is the user-facing text of a section with nothing to draw.
func warningMessage(warning string) string {
	if warning == chart.ErrNoData.Error() {
		return "Nenhum dado no período selecionado."
	}
	return "Selecione pelo menos uma série para exibir o gráfico."
}
