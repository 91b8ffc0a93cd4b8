package engine

import (
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/errs"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/headers"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/normalize"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/policy"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/types"
)

// ListPromotions returns the distinct promotion names of a campaign list,
// in order of first appearance. Front-ends offer these as the choices for
// Request.PromoName.
func ListPromotions(p *policy.Policy, rows [][]string, source string) ([]string, error) {
	ds, err := normalize.Promotion(rows, p.PromotionHeaderRow)
	if err != nil {
		return nil, errs.NewSourceError("read", source, err)
	}

	want := p.PromotionHeader(types.FieldPromoName)
	m, ok := headers.Resolve(ds.Headers, want)
	if !ok {
		return nil, errs.NewMissingFieldError("promotion", string(types.FieldPromoName), want)
	}
	return ds.Distinct(m.Header), nil
}
