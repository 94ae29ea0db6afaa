package view

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/medsearch/internal/model"
	"github.com/sells-group/medsearch/internal/selection"
)

const fixture = `{"data":{"saltSuggestions":[
	{"id":"1","salt":"Paracetamol","available_forms":["tablet","syrup"],"salt_forms_json":{
		"tablet":{
			"500mg":{"strip of 10":[{"selling_price":12.5},{"selling_price":9}],"strip of 15":[{"selling_price":null}]},
			"650mg":{}
		},
		"syrup":{"120mg/5ml":{"bottle":[{"selling_price":30}]}}
	}},
	{"id":"2","salt":"Ibuprofen","available_forms":["gel"],"salt_forms_json":{"gel":{"1%":{"tube":[{"selling_price":null}]}}}},
	{"id":"3","salt":"Aspirin","available_forms":[],"salt_forms_json":{}}
]}}`

func fixtureSnapshot(t *testing.T) selection.Snapshot {
	t.Helper()
	results, err := model.ParseSearchResults([]byte(fixture))
	require.NoError(t, err)
	st := selection.NewState()
	st.Replace(results)
	return st.Snapshot()
}

func rupees() *PriceFormatter { return NewPriceFormatter("₹", "en-IN") }

func values(cs []Choice) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Value)
	}
	return out
}

func selected(cs []Choice) string {
	for _, c := range cs {
		if c.Selected {
			return c.Value
		}
	}
	return ""
}

func TestPriceFormatter(t *testing.T) {
	t.Parallel()

	f := rupees()
	nine, half := 9.0, 12.5
	assert.Equal(t, "From ₹9", f.Label(&nine))
	assert.Equal(t, "From ₹12.5", f.Label(&half))
	assert.Equal(t, NoStoresLabel, f.Label(nil))

	us := NewPriceFormatter("$", "en-US")
	assert.Equal(t, "$1,234.5", us.Amount(1234.5))

	fallback := NewPriceFormatter("$", "not a locale!")
	assert.Equal(t, "$9", fallback.Amount(9))
}

func TestBuild_DefaultCards(t *testing.T) {
	t.Parallel()

	cards := Build(fixtureSnapshot(t), rupees())
	require.Len(t, cards, 3)

	para := cards[0]
	assert.Equal(t, "Paracetamol", para.Salt)
	assert.Equal(t, []string{"tablet", "syrup"}, values(para.Forms))
	assert.Equal(t, "tablet", selected(para.Forms))
	assert.Equal(t, []string{"500mg", "650mg"}, values(para.Strengths))
	assert.Equal(t, "500mg", selected(para.Strengths))
	assert.Equal(t, []string{"strip of 10", "strip of 15"}, values(para.Packagings))
	assert.Equal(t, "strip of 10", selected(para.Packagings))
	require.NotNil(t, para.Price)
	assert.InDelta(t, 9.0, *para.Price, 0.0001)
	assert.Equal(t, "From ₹9", para.PriceLabel)

	ibu := cards[1]
	assert.Equal(t, "tube", ibu.Packaging)
	assert.Nil(t, ibu.Price)
	assert.Equal(t, NoStoresLabel, ibu.PriceLabel)

	asp := cards[2]
	assert.Empty(t, asp.Forms)
	assert.Empty(t, asp.Strengths)
	assert.Empty(t, asp.Packagings)
	assert.Empty(t, asp.Form)
	assert.Equal(t, NoStoresLabel, asp.PriceLabel)
}

func TestBuild_FormWithoutStrengthHidesPackagings(t *testing.T) {
	t.Parallel()

	snap := fixtureSnapshot(t)
	snap.Selections["Paracetamol"] = selection.Selection{Form: "tablet"}

	cards := Build(snap, rupees())
	para := cards[0]
	assert.Equal(t, []string{"500mg", "650mg"}, values(para.Strengths))
	assert.Empty(t, selected(para.Strengths))
	assert.Empty(t, para.Packagings)
	assert.Equal(t, NoStoresLabel, para.PriceLabel)
}

func TestBuild_StaleSelectionRendersNoOptions(t *testing.T) {
	t.Parallel()

	snap := fixtureSnapshot(t)
	snap.Selections["Ibuprofen"] = selection.Selection{Form: "spray", Strength: "5%", Packaging: "can"}

	ibu := Build(snap, rupees())[1]
	assert.Empty(t, selected(ibu.Forms))
	assert.Empty(t, ibu.Strengths)
	assert.Empty(t, ibu.Packagings)
}

func fixtureResults(t *testing.T) []QueryResult {
	t.Helper()
	return []QueryResult{{Query: "para", Outcome: "applied", Cards: Build(fixtureSnapshot(t), rupees())}}
}

func TestWriteText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, fixtureResults(t)))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "== para ==\n"))
	assert.Contains(t, out, "Paracetamol")
	assert.Contains(t, out, "[tablet]  syrup")
	assert.Contains(t, out, "[500mg]  650mg")
	assert.Contains(t, out, "[strip of 10]  strip of 15")
	assert.Contains(t, out, "From ₹9")
	assert.Equal(t, 2, strings.Count(out, NoStoresLabel))
	assert.Equal(t, 2, strings.Count(out, "Strength"))
}

func TestWriteText_NoCards(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, []QueryResult{{Query: "zzz", Outcome: "applied"}}))
	assert.Equal(t, "== zzz ==\nNo results.\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, fixtureResults(t)))

	var decoded []struct {
		Query   string           `json:"query"`
		Outcome string           `json:"outcome"`
		Cards   []map[string]any `json:"cards"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "para", decoded[0].Query)
	assert.Equal(t, "applied", decoded[0].Outcome)
	cards := decoded[0].Cards
	require.Len(t, cards, 3)
	assert.InDelta(t, 9.0, cards[0]["price"], 0.0001)
	assert.Nil(t, cards[1]["price"])
	assert.Equal(t, NoStoresLabel, cards[1]["price_label"])
}

func TestWriteYAML(t *testing.T) {
	t.Parallel()

	results := fixtureResults(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatYAML, results))

	var decoded []QueryResult
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, results, decoded)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("csv")
	assert.Error(t, err)
}

func TestWriteXLSX(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cards.xlsx")
	require.NoError(t, WriteXLSX(path, fixtureResults(t)))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet[SheetName]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 4)

	assert.Equal(t, "Salt", sheet.Rows[0].Cells[2].String())

	para := sheet.Rows[1]
	assert.Equal(t, "para", para.Cells[0].String())
	assert.Equal(t, "Paracetamol", para.Cells[2].String())
	assert.Equal(t, "tablet, syrup", para.Cells[3].String())
	assert.Equal(t, "strip of 10", para.Cells[6].String())
	price, err := para.Cells[7].Float()
	require.NoError(t, err)
	assert.InDelta(t, 9.0, price, 0.0001)

	ibu := sheet.Rows[2]
	assert.Empty(t, ibu.Cells[7].String())
	assert.Equal(t, NoStoresLabel, ibu.Cells[8].String())
}

func TestEncodeXLSX(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, EncodeXLSX(&buf, fixtureResults(t)))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	assert.Equal(t, SheetName, f.Sheets[0].Name)
}
