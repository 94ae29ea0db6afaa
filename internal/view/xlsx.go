package view

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// SheetName is the worksheet cards are exported to.
const SheetName = "Results"

var xlsxHeader = []string{"Query", "ID", "Salt", "Forms", "Form", "Strength", "Packaging", "Lowest Price", "Label"}

// NewWorkbook builds a single-sheet workbook with one row per card. The
// price cell is left empty when a card has no price.
func NewWorkbook(results []QueryResult) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range xlsxHeader {
		header.AddCell().SetString(h)
	}

	for _, res := range results {
		for _, c := range res.Cards {
			addCardRow(sheet, res.Query, c)
		}
	}
	return f, nil
}

func addCardRow(sheet *xlsx.Sheet, query string, c Card) {
	row := sheet.AddRow()
	forms := make([]string, 0, len(c.Forms))
	for _, fc := range c.Forms {
		forms = append(forms, fc.Value)
	}
	for _, v := range []string{query, c.ID, c.Salt, strings.Join(forms, ", "), c.Form, c.Strength, c.Packaging} {
		row.AddCell().SetString(v)
	}
	price := row.AddCell()
	if c.Price != nil {
		price.SetFloat(*c.Price)
	}
	row.AddCell().SetString(c.PriceLabel)
}

// WriteXLSX saves results to a workbook at path.
func WriteXLSX(path string, results []QueryResult) error {
	f, err := NewWorkbook(results)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Save(path), "xlsx: save file")
}

// EncodeXLSX streams the workbook to out.
func EncodeXLSX(out io.Writer, results []QueryResult) error {
	f, err := NewWorkbook(results)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(out), "xlsx: write")
}
