package selection

import "github.com/sells-group/medsearch/internal/model"

// LowestPrice returns the minimum non-nil selling price among the offers at
// form/strength/packaging. It returns nil when the path does not resolve to
// an offer list or when no offer carries a price.
func LowestPrice(r *model.SearchResult, form, strength, packaging string) *float64 {
	if r == nil {
		return nil
	}
	offers, ok := r.Offers(form, strength, packaging)
	if !ok || !offers.IsSequence {
		return nil
	}

	var lowest *float64
	for _, o := range offers.Offers {
		if o.SellingPrice == nil {
			continue
		}
		if lowest == nil || *o.SellingPrice < *lowest {
			p := *o.SellingPrice
			lowest = &p
		}
	}
	return lowest
}
