// =============================================================================
// GDEC Price Checker - Main Entry Point
// =============================================================================
//
// USAGE:
//   pricecheck reconcile   - Reconcile target exports against a promotion
//   pricecheck promos      - List the promotions of a campaign list
//   pricecheck inspect     - Check headers without reconciling
//   pricecheck serve       - Serve reconciliation over HTTP
//   pricecheck version     - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Reconciliation engine, readers, writers, policies
//   - pkg/           : Shared file utilities
//   - configs/       : Optional platform override files
//
// =============================================================================

package main

import (
	"github.com/Charlesssyyy/GDEC-Price-Checker/cmd"
)

func main() {
	cmd.Execute()
}
