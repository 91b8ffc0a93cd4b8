// =============================================================================
// GDEC Price Checker - Reconciliation Engine
// =============================================================================
//
// The engine reconciles a marketplace target dataset against the selected
// promotion of a brand's campaign list and partitions the result into the
// sheets a seller uploads or follows up on.
//
// STATES:
//   Start -> ResolveHeaders -> NormalizePromotion -> FilterByPromotionName
//         -> MatchAndClassify -> Emit -> Done
//   Any terminal error moves the run to Failed and no partitions are
//   returned.
//
// An Engine holds no per-run state; Run may be called concurrently.
//
// =============================================================================

package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/errs"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/headers"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/normalize"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/policy"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/types"
)

// State is a stage of a run.
type State string

const (
	StateStart                 State = "start"
	StateResolveHeaders        State = "resolve_headers"
	StateNormalizePromotion    State = "normalize_promotion"
	StateFilterByPromotionName State = "filter_by_promotion_name"
	StateMatchAndClassify      State = "match_and_classify"
	StateEmit                  State = "emit"
	StateDone                  State = "done"
	StateFailed                State = "failed"
)

// Request is the input of one run.
type Request struct {
	Policy *policy.Policy

	// Target is the marketplace export, already laid out by the policy.
	Target *types.Dataset

	// PromotionRows is the raw campaign list sheet.
	PromotionRows   [][]string
	PromotionSource string

	// PromoName selects the promotion to apply.
	PromoName string
}

// Result is the output of a successful run.
type Result struct {
	RunID     string
	Policy    string
	PromoName string

	Partitions []types.Partition
	Stats      types.Stats

	TargetMapping    types.Mapping
	PromotionMapping types.Mapping

	Duration time.Duration
}

// Partition returns the partition with the given disposition, if present.
func (r *Result) Partition(d types.Disposition) (*types.Partition, bool) {
	for i := range r.Partitions {
		if r.Partitions[i].Disposition == d {
			return &r.Partitions[i], true
		}
	}
	return nil, false
}

// Engine runs reconciliations.
type Engine struct {
	logger zerolog.Logger
}

// New creates an engine that logs to logger.
func New(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger}
}

// run carries the working state of one reconciliation.
type run struct {
	req    Request
	policy *policy.Policy
	log    zerolog.Logger
	state  State

	promotion *types.Dataset
	tm, pm    types.Mapping

	targets  []types.Record
	promos   []types.Record
	selected []types.Record

	eligible, escalation, unaffected []types.Row
	stats                            types.Stats
}

// Run executes one reconciliation.
//
// RETURNS:
//   - the partitions and statistics
//   - a terminal error (see package errs); the result is nil in that case
func (e *Engine) Run(req Request) (*Result, error) {
	if req.Policy == nil || req.Target == nil {
		return nil, fmt.Errorf("policy and target are required")
	}

	started := time.Now()
	id := uuid.NewString()
	r := &run{
		req:    req,
		policy: req.Policy,
		state:  StateStart,
		log: e.logger.With().
			Str("run_id", id).
			Str("policy", req.Policy.Name()).
			Str("promotion", req.PromoName).
			Logger(),
	}
	r.stats.TargetRows = len(req.Target.Rows)

	r.log.Info().Str("target", req.Target.Source).Str("promotion_source", req.PromotionSource).Msg("reconciliation started")

	steps := []struct {
		state State
		fn    func() error
	}{
		{StateResolveHeaders, r.resolveHeaders},
		{StateNormalizePromotion, r.normalizePromotion},
		{StateFilterByPromotionName, r.filterByPromotionName},
		{StateMatchAndClassify, r.matchAndClassify},
	}
	for _, step := range steps {
		r.state = step.state
		if err := step.fn(); err != nil {
			r.log.Error().Err(err).Str("stage", string(r.state)).Msg("reconciliation failed")
			r.state = StateFailed
			return nil, err
		}
	}

	r.state = StateEmit
	partitions, err := r.emit()
	if err != nil {
		r.log.Error().Err(err).Str("stage", string(r.state)).Msg("reconciliation failed")
		r.state = StateFailed
		return nil, err
	}
	r.state = StateDone

	result := &Result{
		RunID:            id,
		Policy:           req.Policy.Name(),
		PromoName:        req.PromoName,
		Partitions:       partitions,
		Stats:            r.stats,
		TargetMapping:    r.tm,
		PromotionMapping: r.pm,
		Duration:         time.Since(started),
	}

	r.log.Info().
		Int("eligible", r.stats.Eligible).
		Int("escalated", r.stats.Escalated).
		Int("unaffected", r.stats.Unaffected).
		Int("appended", r.stats.Appended).
		Int("passed_over", r.stats.PassedOver).
		Dur("duration", result.Duration).
		Msg("reconciliation finished")
	return result, nil
}

// =============================================================================
// STEP 1: RESOLVE HEADERS
// =============================================================================

func (r *run) resolveHeaders() error {
	promotion, err := normalize.Promotion(r.req.PromotionRows, r.policy.PromotionHeaderRow)
	if err != nil {
		return errs.NewSourceError("read", r.req.PromotionSource, err)
	}
	promotion.Source = r.req.PromotionSource
	r.promotion = promotion

	tres, err := headers.ResolveAll("target", r.req.Target.Headers, r.policy.TargetFields)
	if err != nil {
		return err
	}
	pres, err := headers.ResolveAll("promotion", promotion.Headers, r.policy.PromotionFields)
	if err != nil {
		return err
	}
	r.tm, r.pm = tres.Mapping, pres.Mapping

	r.logResolution("target", tres)
	r.logResolution("promotion", pres)
	return nil
}

func (r *run) logResolution(dataset string, res *headers.Resolution) {
	for field, m := range res.Fuzzy {
		r.log.Warn().
			Str("dataset", dataset).
			Str("field", string(field)).
			Str("header", m.Header).
			Float64("ratio", m.Ratio).
			Msg("header matched approximately")
	}

	seen := make(map[string]types.Field)
	for field, header := range res.Mapping {
		if other, dup := seen[header]; dup {
			r.log.Warn().
				Str("dataset", dataset).
				Str("header", header).
				Strs("fields", []string{string(other), string(field)}).
				Msg("two fields resolved to the same column")
		}
		seen[header] = field
	}
	r.log.Debug().Str("dataset", dataset).Interface("mapping", res.Mapping).Msg("headers resolved")
}

// =============================================================================
// STEP 2: NORMALIZE PROMOTION
// =============================================================================

func (r *run) normalizePromotion() error {
	r.targets = normalize.Records(r.req.Target, r.tm.Header(types.FieldKey), "")
	r.promos = normalize.Records(r.promotion,
		r.pm.Header(types.FieldKey),
		r.pm.Header(types.FieldDiscountedPrice))
	r.stats.PromotionRows = len(r.promos)
	return nil
}

// =============================================================================
// STEP 3: FILTER BY PROMOTION NAME
// =============================================================================

func (r *run) filterByPromotionName() error {
	nameHeader := r.pm.Header(types.FieldPromoName)
	for _, rec := range r.promos {
		if normalize.SamePromotion(rec.Row.Get(nameHeader), r.req.PromoName) {
			r.selected = append(r.selected, rec)
		}
	}
	r.stats.SelectedRows = len(r.selected)

	if len(r.selected) == 0 {
		return &errs.NoPromotionRowsError{Promotion: r.req.PromoName}
	}
	r.log.Info().Int("rows", len(r.selected)).Msg("promotion rows selected")
	return nil
}

// =============================================================================
// STEP 4: MATCH AND CLASSIFY
// =============================================================================

func (r *run) matchAndClassify() error {
	keyHeader := r.tm.Header(types.FieldKey)
	priceHeader := r.tm.Header(types.FieldPrice)

	// First promotion row per key wins.
	byKey := make(map[string]types.Record, len(r.selected))
	for _, rec := range r.selected {
		if rec.Key == "" {
			continue
		}
		if _, dup := byKey[rec.Key]; dup {
			r.log.Warn().Str("key", rec.Key).Int("row", rec.Row.Number).Msg("duplicate promotion key, first row used")
			continue
		}
		byKey[rec.Key] = rec
	}

	matched := 0
	targetKeys := make(map[string]bool, len(r.targets))
	for _, rec := range r.targets {
		if rec.Key != "" {
			targetKeys[rec.Key] = true
		}

		promo, ok := byKey[rec.Key]
		if !ok || rec.Key == "" {
			r.unmatchedTarget(rec)
			continue
		}

		matched++
		out := r.policy.Compare(rec, promo, r.tm, r.pm)
		if !out.Accepted {
			if out.Err != nil {
				r.log.Warn().Err(out.Err).Msg("price escalated")
			}
			r.escalate(rec.Key, out.Price, out.Reason, rec.Row.Number)
			continue
		}

		row := rec.Row.Clone()
		for field, value := range out.Assign {
			if header := r.tm.Header(field); header != "" {
				row.Fields[header] = value
			}
		}
		r.eligible = append(r.eligible, row)
		r.stats.Eligible++
	}

	if matched == 0 {
		r.log.Warn().Int("target_rows", len(r.targets)).Msg("no target rows match the promotion")
	}

	appended := make(map[string]bool)
	for _, promo := range r.selected {
		if promo.Key != "" && targetKeys[promo.Key] {
			continue
		}

		if !r.policy.AppendUnmatched || promo.Key == "" {
			r.escalate(promo.Key, promotionalPrice(promo, r.pm), policy.ReasonNotEligible, promo.Row.Number)
			continue
		}
		if !promo.Price.Valid {
			raw := promotionalPrice(promo, r.pm)
			r.log.Warn().Err(&errs.PriceError{Key: promo.Key, Value: raw, Row: promo.Row.Number}).Msg("price escalated")
			r.escalate(promo.Key, raw, policy.ReasonInvalidPrice, promo.Row.Number)
			continue
		}
		if appended[promo.Key] {
			continue
		}
		appended[promo.Key] = true

		row := types.Row{Fields: map[string]string{
			keyHeader:   promo.Key,
			priceHeader: normalize.FormatPrice(promo.Price),
		}}
		if h := r.tm.Header(types.FieldProductID); h != "" {
			row.Fields[h] = normalize.Key(promo.Row.Get(r.pm.Header(types.FieldProductID)))
		}
		r.eligible = append(r.eligible, row)
		r.stats.Eligible++
		r.stats.Appended++
	}
	return nil
}

func (r *run) unmatchedTarget(rec types.Record) {
	if r.policy.Mode == policy.Regular && r.policy.EmitUnaffected {
		keyHeader := r.tm.Header(types.FieldKey)
		recHeader := r.tm.Header(types.FieldRecommendedPrice)
		r.unaffected = append(r.unaffected, types.Row{
			Number: rec.Row.Number,
			Fields: map[string]string{
				keyHeader: rec.Key,
				recHeader: rec.Row.Get(recHeader),
			},
		})
		r.stats.Unaffected++
		return
	}
	r.stats.PassedOver++
	r.log.Debug().Str("key", rec.Key).Int("row", rec.Row.Number).Msg("target row has no promotion counterpart")
}

func (r *run) escalate(key, price, reason string, number int) {
	fields := map[string]string{policy.EscalationReasonHeader: reason}
	fields[r.tm.Header(types.FieldKey)] = key
	fields[r.tm.Header(types.FieldPrice)] = price

	r.escalation = append(r.escalation, types.Row{Number: number, Fields: fields})
	r.stats.Escalated++
}

// promotionalPrice renders the promotion's price for a report, falling back
// to the raw cell when it could not be parsed.
func promotionalPrice(promo types.Record, pm types.Mapping) string {
	if promo.Price.Valid {
		return normalize.FormatPrice(promo.Price)
	}
	return promo.Row.Get(pm.Header(types.FieldDiscountedPrice))
}

// =============================================================================
// STEP 5: EMIT
// =============================================================================

func (r *run) emit() ([]types.Partition, error) {
	keyHeader := r.tm.Header(types.FieldKey)

	var textColumns []string
	for _, spec := range r.policy.TargetFields {
		if spec.Text {
			textColumns = append(textColumns, r.tm.Header(spec.Field))
		}
	}

	partitions := []types.Partition{
		{
			Disposition: types.Eligible,
			Name:        r.policy.Sheets.Eligible,
			Headers:     append([]string(nil), r.req.Target.Headers...),
			Rows:        r.eligible,
			TextColumns: textColumns,
			Preamble:    r.req.Target.Preamble,
			Notes:       r.req.Target.Notes,
		},
		{
			Disposition: types.Escalation,
			Name:        r.policy.Sheets.Escalation,
			Headers:     []string{keyHeader, r.tm.Header(types.FieldPrice), policy.EscalationReasonHeader},
			Rows:        r.escalation,
			TextColumns: []string{keyHeader},
		},
	}
	if r.policy.Mode == policy.Regular && r.policy.EmitUnaffected {
		partitions = append(partitions, types.Partition{
			Disposition: types.Unaffected,
			Name:        r.policy.Sheets.Unaffected,
			Headers:     []string{keyHeader, r.tm.Header(types.FieldRecommendedPrice)},
			Rows:        r.unaffected,
			TextColumns: []string{keyHeader},
		})
	}

	names := make(map[string]bool, len(partitions))
	for _, p := range partitions {
		if p.Name == "" {
			return nil, fmt.Errorf("%s sheet has no name", p.Disposition)
		}
		if names[p.Name] {
			return nil, fmt.Errorf("sheet name %q is used twice", p.Name)
		}
		names[p.Name] = true
	}
	return partitions, nil
}
