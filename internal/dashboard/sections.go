// Package dashboard assembles the four section charts of the city sheet.
package dashboard

import "github.com/mauv0809/fipezap-dashboard/internal/models"

// Sections are the metric families of a FipeZap city sheet, in tab order.
// The ranges are positional and fixed by the workbook layout.
var Sections = []models.Section{
	{Key: "idx", Tab: "Número-Índice", Title: "Número-Índice", Range: models.ColumnRange{Start: 2, End: 6}},
	{Key: "mes", Tab: "Variação Mensal (%)", Title: "Variação Mensal (%)", Range: models.ColumnRange{Start: 7, End: 11}},
	{Key: "ano", Tab: "Var. em 12 Meses (%)", Title: "Variação Acumulada em 12 Meses (%)", Range: models.ColumnRange{Start: 12, End: 16}},
	{Key: "prc", Tab: "Preço Médio (R$/m²)", Title: "Preço Médio de Venda (R$/m²)", Range: models.ColumnRange{Start: 17, End: 21}},
}

// Lookup returns the section with the given key.
func Lookup(key string) (models.Section, bool) {
	for _, s := range Sections {
		if s.Key == key {
			return s, true
		}
	}
	return models.Section{}, false
}
