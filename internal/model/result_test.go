package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const sampleResponse = `{
  "data": {
    "saltSuggestions": [
      {
        "id": 101,
        "salt": "Paracetamol (500mg)",
        "available_forms": ["tablet", "syrup"],
        "salt_forms_json": {
          "tablet": {
            "650mg": {"strip of 15": [{"selling_price": 30, "pharmacy_id": 2}]},
            "500mg": {
              "strip of 10": [{"selling_price": 12}, {"selling_price": 9}],
              "bottle of 100": null
            }
          },
          "syrup": {
            "120mg/5ml": {"bottle of 60 ml": [{"selling_price": null}, null]}
          }
        }
      },
      {
        "id": "abc",
        "salt": "Ibuprofen",
        "available_forms": []
      }
    ]
  }
}`

func TestParseSearchResults_PreservesPayloadOrder(t *testing.T) {
	t.Parallel()

	results, err := ParseSearchResults([]byte(sampleResponse))
	require.NoError(t, err)
	require.Len(t, results, 2)

	r := results[0]
	assert.Equal(t, "101", r.ID)
	assert.Equal(t, "Paracetamol (500mg)", r.Salt)
	assert.Equal(t, []string{"tablet", "syrup"}, r.AvailableForms)
	assert.Equal(t, []string{"tablet", "syrup"}, r.SaltForms.Keys())

	strengths, ok := r.Strengths("tablet")
	require.True(t, ok)
	// Not sorted: 650mg arrives before 500mg.
	assert.Equal(t, []string{"650mg", "500mg"}, strengths.Keys())

	packagings, ok := r.Packagings("tablet", "500mg")
	require.True(t, ok)
	assert.Equal(t, []string{"strip of 10", "bottle of 100"}, packagings.Keys())
}

func TestParseOffers_Falsy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw   string
		empty bool
	}{
		{`null`, true},
		{`false`, true},
		{`0`, true},
		{`""`, true},
		{`"not-a-list"`, false},
		{`1`, false},
		{`{}`, false},
		{`[]`, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.empty, parseOffers(gjson.Parse(tt.raw)).Empty)
		})
	}
}

func TestParseSearchResults_Offers(t *testing.T) {
	t.Parallel()

	results, err := ParseSearchResults([]byte(sampleResponse))
	require.NoError(t, err)
	r := results[0]

	offers, ok := r.Offers("tablet", "500mg", "strip of 10")
	require.True(t, ok)
	require.True(t, offers.IsSequence)
	require.Len(t, offers.Offers, 2)
	require.NotNil(t, offers.Offers[0].SellingPrice)
	assert.InDelta(t, 12.0, *offers.Offers[0].SellingPrice, 0.0001)

	_, ok = r.Offers("tablet", "500mg", "bottle of 100")
	assert.False(t, ok, "null offers do not resolve")
	packagings, ok := r.Packagings("tablet", "500mg")
	require.True(t, ok)
	nullOffers, ok := packagings.Get("bottle of 100")
	require.True(t, ok)
	assert.True(t, nullOffers.Empty)
	assert.False(t, nullOffers.IsSequence)

	nullPrices, ok := r.Offers("syrup", "120mg/5ml", "bottle of 60 ml")
	require.True(t, ok)
	require.Len(t, nullPrices.Offers, 2)
	assert.Nil(t, nullPrices.Offers[0].SellingPrice)
	assert.Nil(t, nullPrices.Offers[1].SellingPrice)

	_, ok = r.Offers("tablet", "1g", "strip of 10")
	assert.False(t, ok)
}

func TestParseSearchResults_MissingFields(t *testing.T) {
	t.Parallel()

	results, err := ParseSearchResults([]byte(sampleResponse))
	require.NoError(t, err)

	r := results[1]
	assert.Equal(t, "abc", r.ID)
	assert.Empty(t, r.AvailableForms)
	assert.Equal(t, 0, r.SaltForms.Len())
}

func TestParseSearchResults_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing data", `{"status":"ok"}`},
		{"suggestions not array", `{"data":{"saltSuggestions":{}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseSearchResults([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestParseSearchResults_Empty(t *testing.T) {
	t.Parallel()

	results, err := ParseSearchResults([]byte(`{"data":{"saltSuggestions":[]}}`))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchResult_JSONRoundTripKeepsOrder(t *testing.T) {
	t.Parallel()

	in := `{"id":"7","salt":"X","available_forms":["tablet"],"salt_forms_json":{"tablet":{"b":{"z":[{"selling_price":3,"mrp":4}],"a":"oops"},"a":{}}}}`

	var r SearchResult
	require.NoError(t, json.Unmarshal([]byte(in), &r))

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
	// JSONEq ignores order, so check it explicitly.
	assert.Contains(t, string(out), `"tablet":{"b":{"z":[{"selling_price":3,"mrp":4}],"a":"oops"},"a":{}}`)
}

func TestSearchResult_HasForm(t *testing.T) {
	t.Parallel()

	r := SearchResult{AvailableForms: []string{"tablet", "syrup"}}
	assert.True(t, r.HasForm("syrup"))
	assert.False(t, r.HasForm("injection"))
}

func TestOrdered_FirstAndGet(t *testing.T) {
	t.Parallel()

	o := Ordered[int]{{Key: "b", Value: 2}, {Key: "a", Value: 1}}

	first, ok := o.First()
	require.True(t, ok)
	assert.Equal(t, "b", first.Key)

	v, ok := o.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.False(t, o.Has("c"))

	var empty Ordered[int]
	_, ok = empty.First()
	assert.False(t, ok)
}

func TestOrdered_SetKeepsPositionTakesLastValue(t *testing.T) {
	t.Parallel()

	var o Ordered[int]
	o.Set("b", 1)
	o.Set("a", 2)
	o.Set("b", 3)

	assert.Equal(t, []string{"b", "a"}, o.Keys())
	v, ok := o.Get("b")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestParseSearchResults_DuplicateKeysLastWins(t *testing.T) {
	t.Parallel()

	body := `{"data":{"saltSuggestions":[{"salt":"X","available_forms":["tablet"],"salt_forms_json":{"tablet":{
		"500mg":{"strip of 10":[{"selling_price":12}]},
		"250mg":{"strip of 10":[{"selling_price":5}]},
		"500mg":{"strip of 10":[{"selling_price":9}]}
	}}}]}}`

	results, err := ParseSearchResults([]byte(body))
	require.NoError(t, err)
	strengths, ok := results[0].Strengths("tablet")
	require.True(t, ok)
	assert.Equal(t, []string{"500mg", "250mg"}, strengths.Keys())

	offers, ok := results[0].Offers("tablet", "500mg", "strip of 10")
	require.True(t, ok)
	require.Len(t, offers.Offers, 1)
	assert.InDelta(t, 9.0, *offers.Offers[0].SellingPrice, 0.0001)
}

func TestSnapshot_Results(t *testing.T) {
	t.Parallel()

	s := Snapshot{Query: "para", Body: []byte(sampleResponse)}
	results, err := s.Results()
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
