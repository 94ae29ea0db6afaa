package selection

import "github.com/sells-group/medsearch/internal/model"

// DefaultSelection picks the first available form, then the first strength
// and first packaging listed under it, in payload order. It reports false
// when any step of that chain is empty.
func DefaultSelection(r *model.SearchResult) (Selection, bool) {
	if r == nil || len(r.AvailableForms) == 0 {
		return Selection{}, false
	}
	return deriveFromForm(r, r.AvailableForms[0])
}

func deriveFromForm(r *model.SearchResult, form string) (Selection, bool) {
	strengths, ok := r.Strengths(form)
	if !ok {
		return Selection{}, false
	}
	first, ok := strengths.First()
	if !ok {
		return Selection{}, false
	}
	return deriveFromStrength(r, form, first.Key)
}

func deriveFromStrength(r *model.SearchResult, form, strength string) (Selection, bool) {
	packagings, ok := r.Packagings(form, strength)
	if !ok {
		return Selection{}, false
	}
	first, ok := packagings.First()
	if !ok {
		return Selection{}, false
	}
	return Selection{
		Form:      form,
		Strength:  strength,
		Packaging: first.Key,
		Price:     LowestPrice(r, form, strength, first.Key),
	}, true
}
