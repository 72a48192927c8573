// Package ingesttest builds in-memory workbooks and fake transports for tests.
package ingesttest

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xuri/excelize/v2"
)

// Sheet is one sheet of a test workbook; Rows start at row 1.
type Sheet struct {
	Name string
	Rows [][]any
}

// Workbook writes the sheets into an xlsx and returns its bytes.
func Workbook(sheets ...Sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.Name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return nil, err
		}
		for r, row := range sheet.Rows {
			for c, v := range row {
				if v == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return nil, err
				}
				if err := f.SetCellValue(sheet.Name, cell, v); err != nil {
					return nil, err
				}
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CitySheet returns a sheet shaped like the FipeZap city sheets: three
// preamble rows, the label row, then one row per month starting at start.
// Columns: A blank, B date, then four blocks of five series. Values are
// block*1000 + month*10 + series so every cell is distinguishable.
func CitySheet(name string, start time.Time, months int) Sheet {
	rows := [][]any{
		{"FipeZap"},
		{"Séries históricas"},
		{nil, nil, "Número-Índice", nil, nil, nil, nil, "Variação Mensal (%)", nil, nil, nil, nil, "Variação em 12 meses (%)", nil, nil, nil, nil, "Preço médio (R$/m²)"},
	}

	labels := []any{nil, "Data"}
	for block := 0; block < 4; block++ {
		labels = append(labels, "Total", "1 Dormitório", "2 Dormitórios", "3 Dormitórios", "4 Dormitórios")
	}
	rows = append(rows, labels)

	for m := 0; m < months; m++ {
		row := []any{nil, start.AddDate(0, m, 0)}
		for block := 0; block < 4; block++ {
			for s := 0; s < 5; s++ {
				row = append(row, float64(block*1000+m*10+s)+0.25)
			}
		}
		rows = append(rows, row)
	}
	rows = append(rows, []any{nil, "Fonte: FipeZap"})

	return Sheet{Name: name, Rows: rows}
}

// Transport is an http.RoundTripper serving fixed responses and counting calls.
type Transport struct {
	mu        sync.Mutex
	responses []Response
	calls     atomic.Int64

	// Gate, when set, blocks every request until it is closed.
	Gate chan struct{}
}

// Response is one canned reply; Err simulates a transport failure.
type Response struct {
	Status int
	Body   []byte
	Err    error
}

// NewTransport serves responses in order, repeating the last one.
func NewTransport(responses ...Response) *Transport {
	return &Transport{responses: responses}
}

// Calls returns how many requests reached the transport.
func (t *Transport) Calls() int {
	return int(t.calls.Load())
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	n := t.calls.Add(1)

	if t.Gate != nil {
		select {
		case <-t.Gate:
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}

	t.mu.Lock()
	if len(t.responses) == 0 {
		t.mu.Unlock()
		return nil, errors.New("ingesttest: no responses configured")
	}
	resp := t.responses[min(int(n)-1, len(t.responses)-1)]
	t.mu.Unlock()

	if resp.Err != nil {
		return nil, resp.Err
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewReader(resp.Body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// Client returns an *http.Client using t.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}
