package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func TestParseDate(t *testing.T) {
	convey.Convey("Given date cells", t, func() {
		jan2008 := time.Date(2008, time.January, 1, 0, 0, 0, 0, time.UTC)

		tests := []struct {
			cell string
			want time.Time
			ok   bool
		}{
			{"39448", jan2008, true},
			{"39448.75", jan2008, true},
			{"2008-01-01", jan2008, true},
			{"2008-01-01 13:45:00", jan2008, true},
			{"01/01/2008", jan2008, true},
			{"15/03/2010", time.Date(2010, time.March, 15, 0, 0, 0, 0, time.UTC), true},
			{"2008/01/01", jan2008, true},
			{"01/2008", jan2008, true},
			{"  2008-01  ", jan2008, true},
			{"", time.Time{}, false},
			{"   ", time.Time{}, false},
			{"Fonte: FipeZap", time.Time{}, false},
			{"-3", time.Time{}, false},
			{"0", time.Time{}, false},
			{"NaN", time.Time{}, false},
			{"99999999", time.Time{}, false},
		}

		for _, tt := range tests {
			got, ok := ParseDate(tt.cell, false)
			convey.So(ok, convey.ShouldEqual, tt.ok)
			if tt.ok {
				convey.So(got.Equal(tt.want), convey.ShouldBeTrue)
			}
		}

		convey.Convey("When the workbook uses the 1904 date system", func() {
			got, ok := ParseDate("37986", true)

			convey.Convey("Then serials are offset from 1904", func() {
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(got.Equal(jan2008), convey.ShouldBeTrue)
			})
		})
	})
}

func TestParseDecimal(t *testing.T) {
	convey.Convey("Given numeric cells", t, func() {
		convey.So(ParseDecimal("1010.25").Decimal.String(), convey.ShouldEqual, "1010.25")
		convey.So(ParseDecimal("-0.37").Valid, convey.ShouldBeTrue)
		convey.So(ParseDecimal("0.1234567890123456789").Decimal.String(), convey.ShouldEqual, "0.1234567890123456789")
		convey.So(ParseDecimal("").Valid, convey.ShouldBeFalse)
		convey.So(ParseDecimal("n.d.").Valid, convey.ShouldBeFalse)
	})
}

func TestUniqueLabels(t *testing.T) {
	convey.Convey("Given header labels", t, func() {
		convey.Convey("When they are already unique", func() {
			got := uniqueLabels([]string{"Data", "Total", "1 Dormitório"})

			convey.Convey("Then they are unchanged", func() {
				convey.So(got, convey.ShouldResemble, []string{"Data", "Total", "1 Dormitório"})
			})
		})

		convey.Convey("When labels repeat across blocks", func() {
			got := uniqueLabels([]string{"Data", "Total", "Total", " Total ", "Total.1"})

			convey.Convey("Then repeats get numeric suffixes", func() {
				convey.So(got, convey.ShouldResemble, []string{"Data", "Total", "Total.1", "Total.2", "Total.1.1"})
			})
		})

		convey.Convey("When labels are blank", func() {
			got := uniqueLabels([]string{"", "Data", ""})

			convey.Convey("Then they are named after their index", func() {
				convey.So(got, convey.ShouldResemble, []string{"Unnamed: 0", "Data", "Unnamed: 2"})
			})
		})
	})
}

func TestParseSheet(t *testing.T) {
	convey.Convey("Given sheet rows", t, func() {
		rows := [][]string{
			{"title"},
			{},
			{"", "", "Número-Índice"},
			{"", "Data", "Total", "Total"},
			{"", "39448", "100", "101", "extra"},
			{"", "39479", "102"},
		}

		convey.Convey("When the header is on row 4", func() {
			table, err := parseSheet(rows, "Curitiba", 4)

			convey.Convey("Then rows below the header are kept positionally", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(table.Labels, convey.ShouldResemble, []string{"Unnamed: 0", "Data", "Total", "Total.1", "Unnamed: 4"})
				convey.So(len(table.Rows), convey.ShouldEqual, 2)
				convey.So(table.FirstRow, convey.ShouldEqual, 5)
				convey.So(table.Cell(1, 2), convey.ShouldEqual, "102")
				convey.So(table.Cell(1, 3), convey.ShouldEqual, "")
				convey.So(table.Cell(7, 0), convey.ShouldEqual, "")
			})
		})

		convey.Convey("When the sheet is shorter than the header offset", func() {
			_, err := parseSheet(rows[:2], "Curitiba", 4)

			convey.Convey("Then it is a format error", func() {
				convey.So(errors.Is(err, ErrFormat), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "header row 4 absent")
			})
		})

		convey.Convey("When the header row is blank", func() {
			_, err := parseSheet(rows, "Curitiba", 2)

			convey.Convey("Then it is a format error", func() {
				convey.So(errors.Is(err, ErrFormat), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "header row 2 is empty")
			})
		})
	})
}
