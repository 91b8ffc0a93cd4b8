package policy

import (
	"fmt"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/config"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/normalize"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/types"
)

// Common campaign list headers.
const (
	promoNameHeader       = "Promo Name (Scheme)"
	discountedPriceHeader = "Discounted Price/ASP (VATIN)"
)

var defaultSheets = Sheets{
	Eligible:   "Good for upload",
	Escalation: "Platform",
	Unaffected: "Brand",
}

func promoFields(key string, extra ...types.FieldSpec) []types.FieldSpec {
	fields := []types.FieldSpec{
		{Field: types.FieldKey, Header: key},
		{Field: types.FieldPromoName, Header: promoNameHeader},
		{Field: types.FieldDiscountedPrice, Header: discountedPriceHeader},
	}
	return append(fields, extra...)
}

// Builtin returns the six built-in policies, freshly allocated.
func Builtin() []*Policy {
	return []*Policy{
		{
			Platform:           Lazada,
			Mode:               Regular,
			Rule:               RecommendedFloor,
			PromotionSheet:     "Lzd | Campaign List",
			PromotionHeaderRow: normalize.PromotionHeaderRow,
			TargetFields: []types.FieldSpec{
				{Field: types.FieldKey, Header: "Shop Sku", Text: true},
				{Field: types.FieldPrice, Header: "Campaign Price"},
				{Field: types.FieldRecommendedPrice, Header: "Recommended Price"},
			},
			PromotionFields: promoFields("SHOP SKU"),
			EmitUnaffected:  true,
			Sheets:          defaultSheets,
		},
		{
			Platform:           Lazada,
			Mode:               Manual,
			Rule:               ScheduledOverride,
			PromotionSheet:     "Lzd | Campaign List",
			PromotionHeaderRow: normalize.PromotionHeaderRow,
			TargetLayout:       normalize.Layout{HeaderRow: 0, DataStartRow: 4},
			TargetFields: []types.FieldSpec{
				{Field: types.FieldKey, Header: "Shop SKU", Text: true},
				{Field: types.FieldPrice, Header: "SpecialPrice"},
				{Field: types.FieldWindowStart, Header: "SpecialPrice Start", Text: true},
				{Field: types.FieldWindowEnd, Header: "SpecialPrice End", Text: true},
			},
			PromotionFields: promoFields("SHOP SKU",
				types.FieldSpec{Field: types.FieldScheduleStartDate, Header: "Date Start"},
				types.FieldSpec{Field: types.FieldScheduleEndDate, Header: "Date End"},
				types.FieldSpec{Field: types.FieldScheduleStartTime, Header: "Time Start"},
				types.FieldSpec{Field: types.FieldScheduleEndTime, Header: "Time End"},
			),
			Sheets: defaultSheets,
		},
		{
			Platform:           Shopee,
			Mode:               Regular,
			Rule:               AcceptPromotional,
			PromotionSheet:     "Shp | Campaign List",
			PromotionHeaderRow: normalize.PromotionHeaderRow,
			TargetFields: []types.FieldSpec{
				{Field: types.FieldKey, Header: "Variation ID", Text: true},
				{Field: types.FieldPrice, Header: "Campaign Price"},
				{Field: types.FieldRecommendedPrice, Header: "Recommended Campaign Price"},
			},
			PromotionFields: promoFields("Variation ID"),
			EmitUnaffected:  true,
			Sheets:          Sheets{Eligible: "Sheet1", Escalation: "Platform", Unaffected: "Brand"},
		},
		{
			Platform:           Shopee,
			Mode:               Manual,
			Rule:               AcceptPromotional,
			PromotionSheet:     "Shp | Campaign List",
			PromotionHeaderRow: normalize.PromotionHeaderRow,
			TargetFields: []types.FieldSpec{
				{Field: types.FieldKey, Header: "Variation ID", Text: true},
				{Field: types.FieldProductID, Header: "Product ID", Text: true},
				{Field: types.FieldPrice, Header: "Discount price"},
			},
			PromotionFields: promoFields("Variation ID",
				types.FieldSpec{Field: types.FieldProductID, Header: "Product ID"},
			),
			AppendUnmatched: true,
			Sheets:          Sheets{Eligible: "Sheet1", Escalation: "Platform"},
		},
		{
			Platform:           TikTok,
			Mode:               Regular,
			Rule:               AcceptPromotional,
			PromotionSheet:     "TikTok | Campaign List",
			PromotionHeaderRow: normalize.PromotionHeaderRow,
			TargetLayout:       normalize.Layout{HeaderRow: 1},
			TargetFields: []types.FieldSpec{
				{Field: types.FieldKey, Header: "SKU ID", Text: true},
				{Field: types.FieldProductID, Header: "Product ID", Text: true},
				{Field: types.FieldPrice, Header: "Campaign price"},
			},
			PromotionFields: promoFields("SKU ID",
				types.FieldSpec{Field: types.FieldProductID, Header: "Product Id"},
			),
			Sheets: defaultSheets,
		},
		{
			Platform:           TikTok,
			Mode:               Manual,
			Rule:               AcceptPromotional,
			PromotionSheet:     "TikTok | Campaign List",
			PromotionHeaderRow: normalize.PromotionHeaderRow,
			FixedColumns:       []string{"Product_id (required)", "SKU_id (required)", "Deal Price (required)"},
			TargetFields: []types.FieldSpec{
				{Field: types.FieldKey, Header: "SKU_id (required)", Text: true},
				{Field: types.FieldProductID, Header: "Product_id (required)", Text: true},
				{Field: types.FieldPrice, Header: "Deal Price (required)"},
			},
			PromotionFields: promoFields("SKU ID",
				types.FieldSpec{Field: types.FieldProductID, Header: "Product Id"},
			),
			AppendUnmatched: true,
			Sheets:          defaultSheets,
		},
	}
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry resolves a platform and mode to a policy.
type Registry struct {
	policies map[string]*Policy
}

// NewRegistry returns a registry holding the built-in policies.
func NewRegistry() *Registry {
	r := &Registry{policies: make(map[string]*Policy)}
	for _, p := range Builtin() {
		r.policies[p.Name()] = p
	}
	return r
}

// Lookup returns a copy of the policy for platform and mode, so callers may
// not alter the registry.
func (r *Registry) Lookup(platform Platform, mode Mode) (*Policy, error) {
	p, ok := r.policies[string(platform)+"/"+string(mode)]
	if !ok {
		return nil, fmt.Errorf("no policy for %s/%s", platform, mode)
	}
	return p.clone(), nil
}

// Apply layers override files on top of the built-in policies.
func (r *Registry) Apply(overrides map[string]*config.PlatformConfig) error {
	for key, o := range overrides {
		p, ok := r.policies[key]
		if !ok {
			return fmt.Errorf("%s: no policy for %s", o.SourceFile, key)
		}
		if err := p.apply(o); err != nil {
			return fmt.Errorf("%s: %w", o.SourceFile, err)
		}
	}
	return nil
}

func (p *Policy) apply(o *config.PlatformConfig) error {
	if o.PromotionSheet != "" {
		p.PromotionSheet = o.PromotionSheet
	}
	if o.PromotionHeaderRow != nil {
		p.PromotionHeaderRow = *o.PromotionHeaderRow
	}
	if o.Target.HeaderRow != nil {
		p.TargetLayout.HeaderRow = *o.Target.HeaderRow
	}
	if o.Target.DataStartRow != nil {
		p.TargetLayout.DataStartRow = *o.Target.DataStartRow
	}
	if err := overrideHeaders(p.TargetFields, o.TargetFields); err != nil {
		return fmt.Errorf("target_fields: %w", err)
	}
	if err := overrideHeaders(p.PromotionFields, o.PromotionFields); err != nil {
		return fmt.Errorf("promotion_fields: %w", err)
	}
	if o.Sheets.Eligible != "" {
		p.Sheets.Eligible = o.Sheets.Eligible
	}
	if o.Sheets.Escalation != "" {
		p.Sheets.Escalation = o.Sheets.Escalation
	}
	if o.Sheets.Unaffected != "" {
		p.Sheets.Unaffected = o.Sheets.Unaffected
	}
	return nil
}

func overrideHeaders(specs []types.FieldSpec, headers map[string]string) error {
	for name, header := range headers {
		found := false
		for i := range specs {
			if string(specs[i].Field) == name {
				specs[i].Header = header
				found = true
			}
		}
		if !found {
			return fmt.Errorf("field %q is not used by this policy", name)
		}
	}
	return nil
}

func (p *Policy) clone() *Policy {
	c := *p
	c.TargetFields = append([]types.FieldSpec(nil), p.TargetFields...)
	c.PromotionFields = append([]types.FieldSpec(nil), p.PromotionFields...)
	c.FixedColumns = append([]string(nil), p.FixedColumns...)
	return &c
}
