// =============================================================================
// GDEC Price Checker - Platform Policies
// =============================================================================
//
// A Policy captures everything that differs between marketplaces and between
// the automatic ("regular") and manual upload flows: where the sheets are,
// which headers to look for, how a matched pair is judged and which output
// partitions exist.
//
// RULES:
//   RecommendedFloor    - accept at the promotional price only when the
//                         target's recommended price is at least as high
//   AcceptPromotional   - accept every match at the promotional price
//   ScheduledOverride   - accept every match, writing the promotional price
//                         and the promotion's start/end window
//
// =============================================================================

package policy

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/errs"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/normalize"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/types"
)

// Platform is a marketplace.
type Platform string

const (
	Lazada Platform = "lazada"
	Shopee Platform = "shopee"
	TikTok Platform = "tiktok"
)

// Mode selects the automatic or manual upload flow.
type Mode string

const (
	Regular Mode = "regular"
	Manual  Mode = "manual"
)

// ParsePlatform accepts a platform name in any case.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case Lazada, Shopee, TikTok:
		return p, nil
	}
	return "", fmt.Errorf("unknown platform %q (want lazada, shopee or tiktok)", s)
}

// ParseMode accepts a mode name in any case; "" is Regular.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", "auto", "automatic", Regular:
		return Regular, nil
	case Manual:
		return Manual, nil
	}
	return "", fmt.Errorf("unknown mode %q (want regular or manual)", s)
}

// Rule selects how a matched pair is compared.
type Rule int

const (
	RecommendedFloor Rule = iota
	AcceptPromotional
	ScheduledOverride
)

// Escalation reasons.
const (
	ReasonBelowRecommended = "does not meet recommended price"
	ReasonInvalidPrice     = "invalid price format"
	ReasonInvalidSchedule  = "invalid schedule format"
	ReasonNotEligible      = "not eligible"
)

// EscalationReasonHeader is the extra column on the escalation sheet.
const EscalationReasonHeader = "Escalation Reason"

// Sheets names the output partitions.
type Sheets struct {
	Eligible   string
	Escalation string
	Unaffected string
}

// Policy is the behaviour of one platform/mode pair.
type Policy struct {
	Platform Platform
	Mode     Mode
	Rule     Rule

	// PromotionSheet is the campaign list sheet in the promotion workbook.
	PromotionSheet     string
	PromotionHeaderRow int

	// TargetLayout locates the header of the first sheet of the target.
	TargetLayout normalize.Layout

	// FixedColumns, when set, replaces the first len(FixedColumns) target
	// headers verbatim and drops the rest. Fewer columns is InvalidSchema.
	FixedColumns []string

	TargetFields    []types.FieldSpec
	PromotionFields []types.FieldSpec

	// AppendUnmatched appends selected promotion rows with no target
	// counterpart to the eligible sheet instead of escalating them.
	AppendUnmatched bool

	// EmitUnaffected adds a sheet for target rows with no promotion match.
	EmitUnaffected bool

	Sheets Sheets
}

// Name is "platform/mode".
func (p *Policy) Name() string {
	return string(p.Platform) + "/" + string(p.Mode)
}

// TargetHeader returns the configured header text for a target field.
func (p *Policy) TargetHeader(f types.Field) string {
	return headerFor(p.TargetFields, f)
}

// PromotionHeader returns the configured header text for a promotion field.
func (p *Policy) PromotionHeader(f types.Field) string {
	return headerFor(p.PromotionFields, f)
}

func headerFor(specs []types.FieldSpec, f types.Field) string {
	for _, s := range specs {
		if s.Field == f {
			return s.Header
		}
	}
	return ""
}

// =============================================================================
// COMPARISON
// =============================================================================

// Outcome is the verdict on one matched target/promotion pair.
type Outcome struct {
	Accepted bool
	Reason   string

	// Price is the promotional price to report (escalation rows included).
	Price string

	// Assign holds the values written into the target row on acceptance.
	Assign map[types.Field]string

	// Err is set when the row is escalated because a price did not parse.
	Err *errs.PriceError
}

// Compare judges a matched pair.
//
// PARAMETERS:
//   - target: the target record; its row carries the recommended price
//   - promo: the promotion record with its coerced promotional price
//   - tm, pm: resolved header mappings for each side
func (p *Policy) Compare(target, promo types.Record, tm, pm types.Mapping) Outcome {
	price := normalize.FormatPrice(promo.Price)
	if !promo.Price.Valid {
		raw := promo.Row.Get(pm.Header(types.FieldDiscountedPrice))
		return Outcome{
			Reason: ReasonInvalidPrice,
			Price:  raw,
			Err:    &errs.PriceError{Key: promo.Key, Value: raw, Row: promo.Row.Number},
		}
	}

	switch p.Rule {
	case RecommendedFloor:
		raw := target.Row.Get(tm.Header(types.FieldRecommendedPrice))
		recommended := normalize.CleanPrice(raw)
		if !recommended.Valid {
			return Outcome{
				Reason: ReasonInvalidPrice,
				Price:  price,
				Err:    &errs.PriceError{Key: target.Key, Value: raw, Row: target.Row.Number},
			}
		}
		if recommended.Decimal.LessThan(promo.Price.Decimal) {
			return Outcome{Reason: ReasonBelowRecommended, Price: price}
		}
		return accept(promo.Price.Decimal)

	case ScheduledOverride:
		start, err := normalize.FormatWindow(
			promo.Row.Get(pm.Header(types.FieldScheduleStartDate)),
			promo.Row.Get(pm.Header(types.FieldScheduleStartTime)))
		if err != nil {
			return Outcome{Reason: ReasonInvalidSchedule, Price: price}
		}
		end, err := normalize.FormatWindow(
			promo.Row.Get(pm.Header(types.FieldScheduleEndDate)),
			promo.Row.Get(pm.Header(types.FieldScheduleEndTime)))
		if err != nil {
			return Outcome{Reason: ReasonInvalidSchedule, Price: price}
		}
		out := accept(promo.Price.Decimal)
		out.Assign[types.FieldWindowStart] = start
		out.Assign[types.FieldWindowEnd] = end
		return out

	default:
		return accept(promo.Price.Decimal)
	}
}

func accept(price decimal.Decimal) Outcome {
	s := price.String()
	return Outcome{
		Accepted: true,
		Price:    s,
		Assign:   map[types.Field]string{types.FieldPrice: s},
	}
}
