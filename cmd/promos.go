// =============================================================================
// GDEC Price Checker - Promos Command
// =============================================================================
//
// Lists the promotion names of a campaign list, in the order they first
// appear, so the right --promo value can be picked.
//
// COMMAND USAGE:
//   pricecheck promos --platform shopee --promotion campaign.xlsx
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/engine"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/source"
	"github.com/Charlesssyyy/GDEC-Price-Checker/pkg/utils"
)

var promosFlags struct {
	platform  string
	mode      string
	promotion string
}

var promosCmd = &cobra.Command{
	Use:   "promos",
	Short: "List the promotions of a campaign list",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPromos()
	},
}

func init() {
	rootCmd.AddCommand(promosCmd)

	f := promosCmd.Flags()
	f.StringVar(&promosFlags.platform, "platform", "", "Marketplace: lazada, shopee or tiktok")
	f.StringVar(&promosFlags.mode, "mode", "regular", "Upload flow: regular or manual")
	f.StringVar(&promosFlags.promotion, "promotion", "", "Campaign list workbook (.xlsx)")

	promosCmd.MarkFlagRequired("platform")
	promosCmd.MarkFlagRequired("promotion")
}

func runPromos() error {
	p, err := lookupPolicy(promosFlags.platform, promosFlags.mode, false)
	if err != nil {
		return err
	}
	if err := utils.CheckReadable(promosFlags.promotion); err != nil {
		return err
	}

	promo, err := source.LoadPromotion(p, promosFlags.promotion)
	if err != nil {
		return err
	}
	names, err := engine.ListPromotions(p, promo.Rows, promo.Source)
	if err != nil {
		return err
	}

	if len(names) == 0 {
		fmt.Printf("No promotions found in %q.\n", promo.Sheet)
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
