package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
)

// Offer is one priced listing for a form/strength/packaging combination.
type Offer struct {
	// SellingPrice is nil when the seller publishes no price.
	SellingPrice *float64
	// Raw is the upstream object, kept so unused fields survive re-encoding.
	Raw json.RawMessage
}

// MarshalJSON re-emits the upstream object when available.
func (o Offer) MarshalJSON() ([]byte, error) {
	if len(o.Raw) > 0 {
		return o.Raw, nil
	}
	return json.Marshal(struct {
		SellingPrice *float64 `json:"selling_price"`
	}{o.SellingPrice})
}

// PackagingOffers is the value stored under a packaging key.
type PackagingOffers struct {
	Offers []Offer
	// IsSequence is false when the upstream value was not a JSON array.
	IsSequence bool
	// Empty is set for null, false, 0 and "" values, which count as no
	// offers at all.
	Empty bool
	Raw   json.RawMessage
}

// MarshalJSON writes the offer list, or the original non-array value.
func (p PackagingOffers) MarshalJSON() ([]byte, error) {
	if !p.IsSequence {
		if len(p.Raw) > 0 {
			return p.Raw, nil
		}
		return []byte("null"), nil
	}
	if p.Offers == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p.Offers)
}

// Packagings maps packaging name to its offers.
type Packagings = Ordered[PackagingOffers]

// Strengths maps strength to its packagings.
type Strengths = Ordered[Packagings]

// SaltForms maps dosage form to its strengths.
type SaltForms = Ordered[Strengths]

// SearchResult is one salt suggestion returned by the search API.
type SearchResult struct {
	ID             string    `json:"id"`
	Salt           string    `json:"salt"`
	AvailableForms []string  `json:"available_forms"`
	SaltForms      SaltForms `json:"salt_forms_json"`
}

// UnmarshalJSON decodes a single result, preserving key order.
func (r *SearchResult) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return eris.New("model: invalid search result json")
	}
	*r = parseResult(gjson.ParseBytes(data))
	return nil
}

// ParseSearchResults decodes a search response body of the form
// {"data":{"saltSuggestions":[...]}}.
func ParseSearchResults(body []byte) ([]SearchResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, eris.New("model: invalid search response json")
	}
	suggestions := gjson.GetBytes(body, "data.saltSuggestions")
	if !suggestions.IsArray() {
		return nil, eris.New("model: search response has no data.saltSuggestions array")
	}

	results := make([]SearchResult, 0, len(suggestions.Array()))
	suggestions.ForEach(func(_, v gjson.Result) bool {
		results = append(results, parseResult(v))
		return true
	})
	return results, nil
}

func parseResult(v gjson.Result) SearchResult {
	r := SearchResult{
		ID:             v.Get("id").String(),
		Salt:           v.Get("salt").String(),
		AvailableForms: []string{},
	}

	if forms := v.Get("available_forms"); forms.IsArray() {
		forms.ForEach(func(_, f gjson.Result) bool {
			r.AvailableForms = append(r.AvailableForms, f.String())
			return true
		})
	}

	if forms := v.Get("salt_forms_json"); forms.IsObject() {
		forms.ForEach(func(form, strengths gjson.Result) bool {
			r.SaltForms.Set(form.String(), parseStrengths(strengths))
			return true
		})
	}
	return r
}

// HasForm reports whether form is one of the result's available forms.
func (r *SearchResult) HasForm(form string) bool {
	for _, f := range r.AvailableForms {
		if f == form {
			return true
		}
	}
	return false
}

// Strengths returns the strengths listed under form.
func (r *SearchResult) Strengths(form string) (Strengths, bool) {
	return r.SaltForms.Get(form)
}

// Packagings returns the packagings listed under form and strength.
func (r *SearchResult) Packagings(form, strength string) (Packagings, bool) {
	strengths, ok := r.SaltForms.Get(form)
	if !ok {
		return nil, false
	}
	return strengths.Get(strength)
}

// Offers returns the value stored at form/strength/packaging. An Empty value
// does not resolve.
func (r *SearchResult) Offers(form, strength, packaging string) (PackagingOffers, bool) {
	packagings, ok := r.Packagings(form, strength)
	if !ok {
		return PackagingOffers{}, false
	}
	po, ok := packagings.Get(packaging)
	if !ok || po.Empty {
		return PackagingOffers{}, false
	}
	return po, true
}

func parseStrengths(v gjson.Result) Strengths {
	var out Strengths
	if !v.IsObject() {
		return out
	}
	v.ForEach(func(strength, packagings gjson.Result) bool {
		out.Set(strength.String(), parsePackagings(packagings))
		return true
	})
	return out
}

func parsePackagings(v gjson.Result) Packagings {
	var out Packagings
	if !v.IsObject() {
		return out
	}
	v.ForEach(func(packaging, offers gjson.Result) bool {
		out.Set(packaging.String(), parseOffers(offers))
		return true
	})
	return out
}

func parseOffers(v gjson.Result) PackagingOffers {
	if !v.IsArray() {
		return PackagingOffers{Raw: json.RawMessage(v.Raw), Empty: isFalsy(v)}
	}
	po := PackagingOffers{IsSequence: true, Offers: []Offer{}}
	v.ForEach(func(_, item gjson.Result) bool {
		offer := Offer{Raw: json.RawMessage(item.Raw)}
		if price := item.Get("selling_price"); item.IsObject() && price.Type == gjson.Number {
			p := price.Float()
			offer.SellingPrice = &p
		}
		po.Offers = append(po.Offers, offer)
		return true
	})
	return po
}

func isFalsy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return true
	case gjson.Number:
		return v.Num == 0
	case gjson.String:
		return v.Str == ""
	default:
		return false
	}
}
