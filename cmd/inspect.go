// =============================================================================
// GDEC Price Checker - Inspect Command
// =============================================================================
//
// Checks that a target export and a campaign list can be reconciled without
// running the reconciliation: every logical field is resolved against the
// headers and fuzzy or missing matches are reported.
//
// COMMAND USAGE:
//   pricecheck inspect --platform lazada --target export.xlsx \
//       --promotion campaign.xlsx
//
// =============================================================================

package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/errs"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/normalize"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/source"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/types"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/validation"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/xlsxparser"
)

var inspectFlags struct {
	platform  string
	mode      string
	manual    bool
	target    string
	promotion string
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Check the headers of a target export and campaign list",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect()
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	f := inspectCmd.Flags()
	f.StringVar(&inspectFlags.platform, "platform", "", "Marketplace: lazada, shopee or tiktok")
	f.StringVar(&inspectFlags.mode, "mode", "regular", "Upload flow: regular or manual")
	f.BoolVar(&inspectFlags.manual, "manual", false, "Shorthand for --mode manual")
	f.StringVar(&inspectFlags.target, "target", "", "Target export (.xlsx or .csv)")
	f.StringVar(&inspectFlags.promotion, "promotion", "", "Campaign list workbook (.xlsx)")

	inspectCmd.MarkFlagRequired("platform")
}

func runInspect() error {
	p, err := lookupPolicy(inspectFlags.platform, inspectFlags.mode, inspectFlags.manual)
	if err != nil {
		return err
	}
	if inspectFlags.target == "" && inspectFlags.promotion == "" {
		return fmt.Errorf("give --target, --promotion or both")
	}

	var reports []*validation.Report

	if inspectFlags.target != "" {
		ds, err := source.LoadTarget(p, inspectFlags.target)
		if err != nil {
			return err
		}
		reports = append(reports, validation.CheckHeaders("target", ds, p.TargetFields))
	}

	if inspectFlags.promotion != "" {
		promo, err := source.LoadPromotion(p, inspectFlags.promotion)
		if err != nil {
			return err
		}
		ds, err := normalize.Promotion(promo.Rows, p.PromotionHeaderRow)
		if err != nil {
			return errs.NewSourceError("read", promo.Source, err)
		}
		reports = append(reports, validation.CheckHeaders("promotion", ds, p.PromotionFields))

		sheets, err := xlsxparser.SheetNames(inspectFlags.promotion)
		if err != nil {
			return err
		}
		printSheets(sheets, promo.Sheet)
	}

	fmt.Printf("=== %s ===\n", p.Name())
	ok := true
	for _, r := range reports {
		fmt.Printf("\n%s columns:\n", r.Dataset)
		printMapping(r.Mapping)
		fmt.Println(validation.FormatIssues(r.Issues))
		ok = ok && r.OK()
	}

	if !ok {
		return fmt.Errorf("required columns are missing")
	}
	return nil
}

// printSheets lists the workbook's sheets, marking the one that was read.
func printSheets(sheets []string, used string) {
	fmt.Println("\npromotion workbook sheets:")
	for _, name := range sheets {
		mark := " "
		if name == used {
			mark = "*"
		}
		fmt.Printf("  %s %s\n", mark, name)
	}
}

func printMapping(m types.Mapping) {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Printf("  %-18s %s\n", f, m[types.Field(f)])
	}
}
