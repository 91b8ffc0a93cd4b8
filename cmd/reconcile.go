// =============================================================================
// GDEC Price Checker - Reconcile Command
// =============================================================================
//
// This file defines the 'reconcile' command, the main command of the CLI. It
// reconciles one or more target exports against a promotion of the brand's
// campaign list.
//
// COMMAND USAGE:
//   pricecheck reconcile --platform lazada --target export.xlsx \
//       --promotion campaign.xlsx --promo "Mega Sale" [flags]
//
// FLAGS:
//   --platform    : lazada, shopee or tiktok
//   --mode        : regular (default) or manual
//   --manual      : shorthand for --mode manual
//   --target      : target export (.xlsx or .csv); repeat for several
//   --promotion   : brand campaign list workbook (.xlsx)
//   --promo       : promotion name to apply
//   --out         : output file (one target) or directory (several)
//   --dry-run     : reconcile and report without writing output files
//   --summary     : write a run summary next to each output
//
// PROCESSING PIPELINE:
//   1. Check the campaign list is readable and load it once
//   2. For each target (concurrently):
//      a. Check the target is readable and the destination writable
//      b. Load the target with the policy's layout
//      c. Run the engine
//      d. Write the workbook atomically
//   3. Print a summary per target
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/engine"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/policy"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/source"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/xlsxwriter"
	"github.com/Charlesssyyy/GDEC-Price-Checker/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var reconcileFlags struct {
	platform  string
	mode      string
	manual    bool
	targets   []string
	promotion string
	promo     string
	out       string
	dryRun    bool
	summary   bool
}

// =============================================================================
// RECONCILE COMMAND DEFINITION
// =============================================================================

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile target exports against a promotion",
	Long: `The reconcile command matches every row of the target export against the
selected promotion of the campaign list and writes a workbook with the
eligible rows (in the target's own layout), the escalations and, in regular
mode, the rows the promotion does not touch.

Several targets can be given; they are reconciled concurrently against the
same campaign list. A failing target does not stop the others.

Nothing is written when a run fails.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runReconcile()
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	f := reconcileCmd.Flags()
	f.StringVar(&reconcileFlags.platform, "platform", "", "Marketplace: lazada, shopee or tiktok")
	f.StringVar(&reconcileFlags.mode, "mode", "regular", "Upload flow: regular or manual")
	f.BoolVar(&reconcileFlags.manual, "manual", false, "Shorthand for --mode manual")
	f.StringSliceVar(&reconcileFlags.targets, "target", nil, "Target export (.xlsx or .csv); may be repeated")
	f.StringVar(&reconcileFlags.promotion, "promotion", "", "Campaign list workbook (.xlsx)")
	f.StringVar(&reconcileFlags.promo, "promo", "", "Promotion name to apply")
	f.StringVarP(&reconcileFlags.out, "out", "o", "", "Output file, or directory when several targets are given")
	f.BoolVar(&reconcileFlags.dryRun, "dry-run", false, "Reconcile without writing output files")
	f.BoolVar(&reconcileFlags.summary, "summary", false, "Write a run summary next to each output")

	reconcileCmd.MarkFlagRequired("platform")
	reconcileCmd.MarkFlagRequired("target")
	reconcileCmd.MarkFlagRequired("promotion")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// targetResult is the outcome of reconciling one target.
type targetResult struct {
	Target string
	Output string
	Result *engine.Result
	Err    error
}

func runReconcile() error {
	flags := reconcileFlags
	startTime := time.Now()

	p, err := lookupPolicy(flags.platform, flags.mode, flags.manual)
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 1: LOAD CAMPAIGN LIST
	// =========================================================================

	if err := utils.CheckReadable(flags.promotion); err != nil {
		return err
	}
	promo, err := source.LoadPromotion(p, flags.promotion)
	if err != nil {
		return err
	}

	if strings.TrimSpace(flags.promo) == "" {
		names, err := engine.ListPromotions(p, promo.Rows, promo.Source)
		if err != nil {
			return err
		}
		return fmt.Errorf("--promo is required; %s offers: %s", filepath.Base(flags.promotion), strings.Join(names, ", "))
	}

	if flags.out != "" && len(flags.targets) > 1 && !flags.dryRun {
		if err := utils.EnsureDir(flags.out); err != nil {
			return err
		}
	}

	outputs, err := planOutputs(p, flags.targets, flags.dryRun)
	if err != nil {
		return err
	}

	fmt.Printf("=== GDEC Price Checker (%s) ===\n", p.Name())
	fmt.Printf("Promotion: %s (%s)\n", flags.promo, filepath.Base(flags.promotion))

	// =========================================================================
	// STEP 2: RECONCILE TARGETS CONCURRENTLY
	// =========================================================================

	var wg sync.WaitGroup
	results := make(chan targetResult, len(flags.targets))

	for _, target := range flags.targets {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			results <- reconcileTarget(p, promo, target, outputs[target])
		}(target)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// =========================================================================
	// STEP 3: COLLECT RESULTS AND PRINT SUMMARY
	// =========================================================================

	var failed []targetResult
	for res := range results {
		if res.Err != nil {
			failed = append(failed, res)
			fmt.Printf("  ✗ %s: %v\n", filepath.Base(res.Target), res.Err)
			continue
		}

		s := res.Result.Stats
		dest := res.Output
		if flags.dryRun {
			dest = "(dry run)"
		}
		fmt.Printf("  ✓ %s -> %s\n", filepath.Base(res.Target), dest)
		fmt.Printf("      eligible %d, escalated %d, unaffected %d, appended %d, passed over %d (run %s)\n",
			s.Eligible, s.Escalated, s.Unaffected, s.Appended, s.PassedOver, res.Result.RunID)
	}

	fmt.Printf("\nTime elapsed: %s\n", time.Since(startTime).Round(time.Millisecond))

	switch {
	case len(failed) == 0:
		return nil
	case len(flags.targets) == 1:
		return failed[0].Err
	default:
		return fmt.Errorf("%d of %d target(s) failed", len(failed), len(flags.targets))
	}
}

// reconcileTarget runs one target end to end.
func reconcileTarget(p *policy.Policy, promo *source.Promotion, target, output string) targetResult {
	res := targetResult{Target: target, Output: output}
	log := logger.With().Str("target", target).Logger()
	started := time.Now()

	if err := utils.CheckReadable(target); err != nil {
		res.Err = err
		return res
	}
	if !reconcileFlags.dryRun {
		if err := utils.CheckWritable(output); err != nil {
			res.Err = err
			return res
		}
	}

	ds, err := source.LoadTarget(p, target)
	if err != nil {
		res.Err = err
		return res
	}

	result, err := engine.New(log).Run(engine.Request{
		Policy:          p,
		Target:          ds,
		PromotionRows:   promo.Rows,
		PromotionSource: promo.Source,
		PromoName:       reconcileFlags.promo,
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.Result = result

	if reconcileFlags.dryRun {
		return res
	}
	if err := xlsxwriter.SaveFile(output, result.Partitions); err != nil {
		res.Err = err
		return res
	}
	log.Info().Str("output", output).Msg("workbook written")

	if reconcileFlags.summary {
		path, err := utils.WriteSummary(utils.RunSummary{
			RunID:     result.RunID,
			Policy:    result.Policy,
			PromoName: result.PromoName,
			Target:    target,
			Promotion: promo.Source,
			Output:    output,
			StartTime: started,
			EndTime:   time.Now(),
			Stats:     result.Stats,
		}, filepath.Dir(output))
		if err != nil {
			log.Warn().Err(err).Msg("failed to write run summary")
		} else {
			log.Debug().Str("summary", path).Msg("run summary written")
		}
	}
	return res
}

// planOutputs decides every destination up front. Two targets writing the
// same workbook would race on the rename, so that is refused unless nothing
// is written.
func planOutputs(p *policy.Policy, targets []string, dryRun bool) (map[string]string, error) {
	outputs := make(map[string]string, len(targets))
	claimed := make(map[string]string, len(targets))

	for _, target := range targets {
		if _, ok := outputs[target]; ok {
			return nil, fmt.Errorf("target %s is given more than once", target)
		}
		output := outputPath(p, target, len(targets))
		outputs[target] = output
		if dryRun {
			continue
		}

		key := strings.ToLower(filepath.Clean(output))
		if other, ok := claimed[key]; ok {
			return nil, fmt.Errorf("targets %s and %s would both be written to %s; add {uuid} to output_name_format or reconcile them separately",
				other, target, output)
		}
		claimed[key] = target
	}
	return outputs, nil
}

// outputPath decides where the workbook for target goes.
func outputPath(p *policy.Policy, target string, targets int) string {
	name := utils.OutputFileName(appConfig.OutputNameFormat, map[string]string{
		"original": target,
		"platform": string(p.Platform),
		"mode":     string(p.Mode),
	})

	switch out := reconcileFlags.out; {
	case out == "":
		return filepath.Join(appConfig.OutputDir, name)
	case targets > 1:
		return filepath.Join(out, name)
	default:
		return out
	}
}
