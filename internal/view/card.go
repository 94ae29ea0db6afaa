// Package view turns selection state into renderable cards and writes them
// as text, JSON, YAML or XLSX.
package view

import (
	"github.com/sells-group/medsearch/internal/model"
	"github.com/sells-group/medsearch/internal/selection"
)

// Choice is one selectable option on a card.
type Choice struct {
	Value    string `json:"value" yaml:"value"`
	Selected bool   `json:"selected" yaml:"selected"`
}

// Card is the rendered form of one search result.
type Card struct {
	ID         string   `json:"id" yaml:"id"`
	Salt       string   `json:"salt" yaml:"salt"`
	Forms      []Choice `json:"forms" yaml:"forms"`
	Strengths  []Choice `json:"strengths" yaml:"strengths"`
	Packagings []Choice `json:"packagings" yaml:"packagings"`
	Form       string   `json:"form,omitempty" yaml:"form,omitempty"`
	Strength   string   `json:"strength,omitempty" yaml:"strength,omitempty"`
	Packaging  string   `json:"packaging,omitempty" yaml:"packaging,omitempty"`
	Price      *float64 `json:"price" yaml:"price"`
	PriceLabel string   `json:"price_label" yaml:"price_label"`
}

// Build produces one card per result, in result order. Strengths are listed
// only for the selected form and packagings only for the selected strength.
func Build(snap selection.Snapshot, prices *PriceFormatter) []Card {
	cards := make([]Card, 0, len(snap.Results))
	for i := range snap.Results {
		r := &snap.Results[i]
		sel, _ := snap.Selection(r.Salt)
		cards = append(cards, buildCard(r, sel, prices))
	}
	return cards
}

func buildCard(r *model.SearchResult, sel selection.Selection, prices *PriceFormatter) Card {
	card := Card{
		ID:         r.ID,
		Salt:       r.Salt,
		Forms:      choices(r.AvailableForms, sel.Form),
		Strengths:  []Choice{},
		Packagings: []Choice{},
		Form:       sel.Form,
		Strength:   sel.Strength,
		Packaging:  sel.Packaging,
		Price:      sel.Price,
		PriceLabel: prices.Label(sel.Price),
	}

	if sel.Form == "" {
		return card
	}
	if strengths, ok := r.Strengths(sel.Form); ok {
		card.Strengths = choices(strengths.Keys(), sel.Strength)
	}
	if sel.Strength == "" {
		return card
	}
	if packagings, ok := r.Packagings(sel.Form, sel.Strength); ok {
		card.Packagings = choices(packagings.Keys(), sel.Packaging)
	}
	return card
}

func choices(values []string, selected string) []Choice {
	out := make([]Choice, 0, len(values))
	for _, v := range values {
		out = append(out, Choice{Value: v, Selected: v == selected})
	}
	return out
}
