package engine

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/errs"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/logging"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/normalize"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/policy"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/types"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/validation"
)

// =============================================================================
// FIXTURES
// =============================================================================

func lookup(t *testing.T, platform policy.Platform, mode policy.Mode) *policy.Policy {
	t.Helper()
	p, err := policy.NewRegistry().Lookup(platform, mode)
	require.NoError(t, err)
	return p
}

func table(t *testing.T, layout normalize.Layout, raw ...[]string) *types.Dataset {
	t.Helper()
	ds, err := normalize.Table(raw, layout)
	require.NoError(t, err)
	ds.Source = "target.xlsx"
	return ds
}

// campaignList builds a raw campaign sheet with the header on row 6.
func campaignList(header []string, rows ...[]string) [][]string {
	raw := [][]string{{"Campaign List"}, {}, {"Brand: GDEC"}, {}, {}, header}
	return append(raw, rows...)
}

var lazadaPromoHeader = []string{"Promo Name (Scheme)", "SHOP SKU", "Discounted Price/ASP (VATIN)"}

func lazadaRegularRequest(t *testing.T) Request {
	target := table(t, normalize.Layout{},
		[]string{"Shop Sku", "Product Name", "Campaign Price", "Recommended Price"},
		[]string{"sku-a", "Alpha", "", "100"},
		[]string{"SKU-B", "Beta", "", "80"},
		[]string{"sku-c", "Gamma", "", "N/A"},
		[]string{"sku-d", "Delta", "", "70"},
	)
	promo := campaignList(lazadaPromoHeader,
		[]string{"Mega Sale", "SKU-A", "RM 90"},
		[]string{" mega sale ", "sku-b", "90"},
		[]string{"Mega Sale", "SKU-C", "50"},
		[]string{"Mega Sale", "SKU-E", "40"},
		[]string{"Other", "SKU-D", "10"},
	)
	return Request{
		Policy:          lookup(t, policy.Lazada, policy.Regular),
		Target:          target,
		PromotionRows:   promo,
		PromotionSource: "promo.xlsx",
		PromoName:       "MEGA SALE",
	}
}

func newEngine(t *testing.T) *Engine {
	return New(logging.NewTestLogger(t).Logger)
}

func partition(t *testing.T, res *Result, d types.Disposition) *types.Partition {
	t.Helper()
	p, ok := res.Partition(d)
	require.True(t, ok, "missing %s partition", d)
	return p
}

func column(p *types.Partition, header string) []string {
	var out []string
	for _, row := range p.Rows {
		out = append(out, row.Get(header))
	}
	return out
}

// =============================================================================
// TESTS
// =============================================================================

func TestLazadaRegular(t *testing.T) {
	res, err := newEngine(t).Run(lazadaRegularRequest(t))
	require.NoError(t, err)

	require.Len(t, res.Partitions, 3)
	assert.Equal(t, "Good for upload", res.Partitions[0].Name)
	assert.Equal(t, "Platform", res.Partitions[1].Name)
	assert.Equal(t, "Brand", res.Partitions[2].Name)

	eligible := partition(t, res, types.Eligible)
	require.Len(t, eligible.Rows, 1)
	assert.Equal(t, "sku-a", eligible.Rows[0].Get("Shop Sku"))
	assert.Equal(t, "Alpha", eligible.Rows[0].Get("Product Name"))
	assert.Equal(t, "90", eligible.Rows[0].Get("Campaign Price"))
	assert.Equal(t, []string{"Shop Sku", "Product Name", "Campaign Price", "Recommended Price"}, eligible.Headers)
	assert.Contains(t, eligible.TextColumns, "Shop Sku")

	escalation := partition(t, res, types.Escalation)
	assert.Equal(t, []string{"Shop Sku", "Campaign Price", "Escalation Reason"}, escalation.Headers)
	assert.Equal(t, []string{"SKU-B", "SKU-C", "SKU-E"}, column(escalation, "Shop Sku"))
	assert.Equal(t, []string{"90", "50", "40"}, column(escalation, "Campaign Price"))
	assert.Equal(t, []string{
		policy.ReasonBelowRecommended,
		policy.ReasonInvalidPrice,
		policy.ReasonNotEligible,
	}, column(escalation, "Escalation Reason"))

	unaffected := partition(t, res, types.Unaffected)
	assert.Equal(t, []string{"Shop Sku", "Recommended Price"}, unaffected.Headers)
	require.Len(t, unaffected.Rows, 1)
	assert.Equal(t, "SKU-D", unaffected.Rows[0].Get("Shop Sku"))
	assert.Equal(t, "70", unaffected.Rows[0].Get("Recommended Price"))

	assert.Equal(t, types.Stats{
		TargetRows:    4,
		PromotionRows: 5,
		SelectedRows:  4,
		Eligible:      1,
		Escalated:     3,
		Unaffected:    1,
	}, res.Stats)
	assert.NotEmpty(t, res.RunID)
}

func TestPartitionsAreDisjoint(t *testing.T) {
	res, err := newEngine(t).Run(lazadaRegularRequest(t))
	require.NoError(t, err)

	seen := make(map[string]types.Disposition)
	for _, p := range res.Partitions {
		for _, row := range p.Rows {
			key := normalize.Key(row.Get("Shop Sku"))
			prev, dup := seen[key]
			assert.False(t, dup, "%s in both %s and %s", key, prev, p.Disposition)
			seen[key] = p.Disposition
		}
	}
}

func TestEveryTargetRowLandsSomewhereInRegularMode(t *testing.T) {
	req := lazadaRegularRequest(t)
	res, err := newEngine(t).Run(req)
	require.NoError(t, err)

	placed := make(map[string]bool)
	for _, p := range res.Partitions {
		for _, row := range p.Rows {
			placed[normalize.Key(row.Get("Shop Sku"))] = true
		}
	}
	for _, row := range req.Target.Rows {
		assert.True(t, placed[normalize.Key(row.Get("Shop Sku"))], row.Get("Shop Sku"))
	}
}

func TestRunDoesNotMutateInputs(t *testing.T) {
	req := lazadaRegularRequest(t)
	before := req.Target.Rows[0].Clone()

	_, err := newEngine(t).Run(req)
	require.NoError(t, err)
	assert.Equal(t, before, req.Target.Rows[0])
}

func TestRunIsIdempotent(t *testing.T) {
	e := newEngine(t)
	first, err := e.Run(lazadaRegularRequest(t))
	require.NoError(t, err)
	second, err := e.Run(lazadaRegularRequest(t))
	require.NoError(t, err)

	assert.Equal(t, first.Partitions, second.Partitions)
	assert.Equal(t, first.Stats, second.Stats)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestConcurrentRunsAreIsolated(t *testing.T) {
	e := New(zerolog.Nop())
	want, err := e.Run(lazadaRegularRequest(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := range results {
		req := lazadaRegularRequest(t)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = e.Run(req)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		require.NotNil(t, got)
		assert.Equal(t, want.Partitions, got.Partitions)
	}
}

func TestNoOverlapEscalatesEveryPromotionRow(t *testing.T) {
	req := lazadaRegularRequest(t)
	req.PromotionRows = campaignList(lazadaPromoHeader,
		[]string{"Mega Sale", "SKU-X", "10"},
		[]string{"Mega Sale", "SKU-Y", "11"},
	)

	logger := logging.NewTestLogger(t)
	res, err := New(logger.Logger).Run(req)
	require.NoError(t, err)

	assert.True(t, logger.Contains("no target rows match the promotion"))
	assert.Empty(t, partition(t, res, types.Eligible).Rows)
	escalation := partition(t, res, types.Escalation)
	assert.Equal(t, []string{"SKU-X", "SKU-Y"}, column(escalation, "Shop Sku"))
	assert.Equal(t, []string{policy.ReasonNotEligible, policy.ReasonNotEligible}, column(escalation, "Escalation Reason"))
	assert.Len(t, partition(t, res, types.Unaffected).Rows, 4)
}

func TestNoMatchingPromotionRows(t *testing.T) {
	req := lazadaRegularRequest(t)
	req.PromoName = "Payday"

	res, err := newEngine(t).Run(req)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNoMatchingPromotionRows))
	assert.Contains(t, err.Error(), "Payday")
}

func TestMissingRequiredFieldNamesField(t *testing.T) {
	req := lazadaRegularRequest(t)
	req.Target = table(t, normalize.Layout{},
		[]string{"Shop Sku", "Campaign Price"},
		[]string{"sku-a", ""},
	)

	res, err := newEngine(t).Run(req)
	assert.Nil(t, res)
	var mf *errs.MissingFieldError
	require.True(t, errors.As(err, &mf))
	assert.Equal(t, "target", mf.Dataset)
	assert.Equal(t, string(types.FieldRecommendedPrice), mf.Field)
}

func TestMissingPromotionFieldNamesField(t *testing.T) {
	req := lazadaRegularRequest(t)
	req.PromotionRows = campaignList([]string{"SHOP SKU", "Discounted Price/ASP (VATIN)"},
		[]string{"SKU-A", "90"},
	)

	_, err := newEngine(t).Run(req)
	var mf *errs.MissingFieldError
	require.True(t, errors.As(err, &mf))
	assert.Equal(t, string(types.FieldPromoName), mf.Field)
}

func TestShopeeRegularAcceptsUnconditionally(t *testing.T) {
	target := table(t, normalize.Layout{},
		[]string{"Variation ID", "Recommended Campaign Price", "Campaign Price"},
		[]string{"1001", "5", ""},
		[]string{"1002", "5", ""},
	)
	promo := campaignList([]string{"Promo Name (Scheme)", "Variation ID", "Discounted Price/ASP (VATIN)"},
		[]string{"9.9", "1001", "50"},
	)

	res, err := newEngine(t).Run(Request{
		Policy:        lookup(t, policy.Shopee, policy.Regular),
		Target:        target,
		PromotionRows: promo,
		PromoName:     "9.9",
	})
	require.NoError(t, err)

	eligible := partition(t, res, types.Eligible)
	assert.Equal(t, "Sheet1", eligible.Name)
	require.Len(t, eligible.Rows, 1)
	assert.Equal(t, "50", eligible.Rows[0].Get("Campaign Price"))
	assert.Empty(t, partition(t, res, types.Escalation).Rows)
	assert.Equal(t, []string{"1002"}, column(partition(t, res, types.Unaffected), "Variation ID"))
}

func TestTikTokRegularHasNoUnaffectedSheet(t *testing.T) {
	target := table(t, normalize.Layout{HeaderRow: 1},
		[]string{"Fill in campaign prices"},
		[]string{"Product ID", "SKU ID", "Campaign price"},
		[]string{"P1", "S1", ""},
		[]string{"P2", "S2", ""},
	)
	promo := campaignList([]string{"Promo Name (Scheme)", "Product Id", "SKU ID", "Discounted Price/ASP (VATIN)"},
		[]string{"Flash", "P1", "S1", "12.5"},
	)

	res, err := newEngine(t).Run(Request{
		Policy:        lookup(t, policy.TikTok, policy.Regular),
		Target:        target,
		PromotionRows: promo,
		PromoName:     "flash",
	})
	require.NoError(t, err)

	require.Len(t, res.Partitions, 2)
	eligible := partition(t, res, types.Eligible)
	assert.Equal(t, [][]string{{"Fill in campaign prices"}}, eligible.Preamble)
	require.Len(t, eligible.Rows, 1)
	assert.Equal(t, "12.5", eligible.Rows[0].Get("Campaign price"))
	assert.Equal(t, 1, res.Stats.PassedOver)
}

func TestShopeeManualAppendsUnmatchedPromotions(t *testing.T) {
	target := table(t, normalize.Layout{},
		[]string{"Product ID", "Variation ID", "Discount price"},
		[]string{"P1", "V1", "99"},
		[]string{"P2", "V2", "88"},
	)
	promo := campaignList([]string{"Promo Name (Scheme)", "Product ID", "Variation ID", "Discounted Price/ASP (VATIN)"},
		[]string{"Payday", "P1", "v1", "30"},
		[]string{"Payday", "P3", "V3", "25"},
		[]string{"Payday", "P3", "V3", "20"},
		[]string{"Payday", "P4", "V4", "TBC"},
	)

	res, err := newEngine(t).Run(Request{
		Policy:        lookup(t, policy.Shopee, policy.Manual),
		Target:        target,
		PromotionRows: promo,
		PromoName:     "Payday",
	})
	require.NoError(t, err)
	require.Len(t, res.Partitions, 2)

	eligible := partition(t, res, types.Eligible)
	assert.Equal(t, []string{"V1", "V3"}, column(eligible, "Variation ID"))
	assert.Equal(t, []string{"P1", "P3"}, column(eligible, "Product ID"))
	assert.Equal(t, []string{"30", "25"}, column(eligible, "Discount price"))
	assert.ElementsMatch(t, []string{"Variation ID", "Product ID"}, eligible.TextColumns)

	escalation := partition(t, res, types.Escalation)
	assert.Equal(t, []string{"V4"}, column(escalation, "Variation ID"))
	assert.Equal(t, []string{"TBC"}, column(escalation, "Discount price"))
	assert.Equal(t, []string{policy.ReasonInvalidPrice}, column(escalation, "Escalation Reason"))

	assert.Equal(t, 1, res.Stats.Appended)
	assert.Equal(t, 1, res.Stats.PassedOver)
}

func TestTikTokManualAppendsToFixedColumns(t *testing.T) {
	target := table(t, normalize.Layout{},
		[]string{"Product ID", "SKU", "Deal price", "Stock"},
		[]string{"P1", "S1", "", "5"},
		[]string{"P2", "S2", "", "7"},
	)
	p := lookup(t, policy.TikTok, policy.Manual)
	require.NoError(t, validation.ApplyFixedColumns(target, p.FixedColumns))

	promo := campaignList([]string{"Promo Name (Scheme)", "Product Id", "SKU ID", "Discounted Price/ASP (VATIN)"},
		[]string{"Live", "P1", "s1", "15"},
		[]string{"Live", "P3", "S3", "12"},
		[]string{"Live", "P4", "S4", "N/A"},
	)

	logger := logging.NewTestLogger(t)
	res, err := New(logger.Logger).Run(Request{
		Policy:        p,
		Target:        target,
		PromotionRows: promo,
		PromoName:     "Live",
	})
	require.NoError(t, err)
	require.Len(t, res.Partitions, 2)

	eligible := partition(t, res, types.Eligible)
	assert.Equal(t, []string{"Product_id (required)", "SKU_id (required)", "Deal Price (required)"}, eligible.Headers)
	assert.Equal(t, []string{"S1", "S3"}, column(eligible, "SKU_id (required)"))
	assert.Equal(t, []string{"P1", "P3"}, column(eligible, "Product_id (required)"))
	assert.Equal(t, []string{"15", "12"}, column(eligible, "Deal Price (required)"))

	escalation := partition(t, res, types.Escalation)
	assert.Equal(t, []string{"S4"}, column(escalation, "SKU_id (required)"))
	assert.Equal(t, []string{"N/A"}, column(escalation, "Deal Price (required)"))
	assert.Equal(t, []string{policy.ReasonInvalidPrice}, column(escalation, "Escalation Reason"))
	assert.True(t, logger.Contains(`cannot parse price \"N/A\"`))

	assert.Equal(t, 2, res.Stats.Eligible)
	assert.Equal(t, 1, res.Stats.Appended)
	assert.Equal(t, 1, res.Stats.Escalated)
	assert.Equal(t, 1, res.Stats.PassedOver)
}

func TestLazadaManualWritesWindow(t *testing.T) {
	target := table(t, normalize.Layout{HeaderRow: 0, DataStartRow: 4},
		[]string{"Shop SKU", "SpecialPrice", "SpecialPrice Start", "SpecialPrice End"},
		[]string{"mandatory", "mandatory", "optional", "optional"},
		[]string{"", "", "yyyy-mm-dd hh:mm:ss", "yyyy-mm-dd hh:mm:ss"},
		[]string{"e.g. SKU1", "e.g. 9.9", "", ""},
		[]string{"LZ-1", "", "", ""},
		[]string{"LZ-2", "", "", ""},
	)
	promo := campaignList([]string{
		"Promo Name (Scheme)", "SHOP SKU", "Discounted Price/ASP (VATIN)",
		"Date Start", "Time Start", "Date End", "Time End",
	},
		[]string{"11.11", "lz-1", "19.90", "45413", "0", "45415", "0.999988425925926"},
		[]string{"11.11", "LZ-9", "5", "2024-05-01", "00:00", "2024-05-03", "23:59"},
	)

	res, err := newEngine(t).Run(Request{
		Policy:        lookup(t, policy.Lazada, policy.Manual),
		Target:        target,
		PromotionRows: promo,
		PromoName:     "11.11",
	})
	require.NoError(t, err)
	require.Len(t, res.Partitions, 2)

	eligible := partition(t, res, types.Eligible)
	assert.Len(t, eligible.Notes, 3)
	require.Len(t, eligible.Rows, 1)
	row := eligible.Rows[0]
	assert.Equal(t, "LZ-1", row.Get("Shop SKU"))
	assert.Equal(t, "19.9", row.Get("SpecialPrice"))
	assert.Equal(t, "2024-05-01 00:00:00", row.Get("SpecialPrice Start"))
	assert.Equal(t, "2024-05-03 23:59:59", row.Get("SpecialPrice End"))
	assert.Contains(t, eligible.TextColumns, "SpecialPrice Start")

	escalation := partition(t, res, types.Escalation)
	assert.Equal(t, []string{"LZ-9"}, column(escalation, "Shop SKU"))
	assert.Equal(t, []string{policy.ReasonNotEligible}, column(escalation, "Escalation Reason"))
	assert.Equal(t, 1, res.Stats.PassedOver)
}

func TestDuplicatePromotionKeyFirstRowWins(t *testing.T) {
	req := lazadaRegularRequest(t)
	req.PromotionRows = campaignList(lazadaPromoHeader,
		[]string{"Mega Sale", "SKU-A", "90"},
		[]string{"Mega Sale", "sku-a", "95"},
	)

	res, err := newEngine(t).Run(req)
	require.NoError(t, err)
	eligible := partition(t, res, types.Eligible)
	require.Len(t, eligible.Rows, 1)
	assert.Equal(t, "90", eligible.Rows[0].Get("Campaign Price"))
	assert.Empty(t, partition(t, res, types.Escalation).Rows)
}

func TestDuplicateSheetNamesRejected(t *testing.T) {
	req := lazadaRegularRequest(t)
	req.Policy.Sheets.Unaffected = req.Policy.Sheets.Escalation

	_, err := newEngine(t).Run(req)
	assert.ErrorContains(t, err, "used twice")
}

func TestListPromotions(t *testing.T) {
	rows := campaignList(lazadaPromoHeader,
		[]string{"Mega Sale", "A", "1"},
		[]string{"Payday", "B", "1"},
		[]string{"", "C", "1"},
		[]string{"Mega Sale", "D", "1"},
		[]string{"11.11", "E", "1"},
	)

	names, err := ListPromotions(lookup(t, policy.Lazada, policy.Regular), rows, "promo.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"Mega Sale", "Payday", "11.11"}, names)
}

func TestListPromotionsMissingColumn(t *testing.T) {
	rows := campaignList([]string{"SHOP SKU"}, []string{"A"})

	_, err := ListPromotions(lookup(t, policy.Lazada, policy.Regular), rows, "promo.xlsx")
	assert.True(t, errors.Is(err, errs.ErrMissingRequiredField))
}
