// =============================================================================
// DWG Batch Duplicator - Main Entry Point
// =============================================================================
//
// This is the main entry point for the dwgdup CLI. It delegates command
// execution to the cmd package.
//
// USAGE:
//   dwgdup process       - Duplicate every drawing in the drawing list
//   dwgdup validate      - Check the drawing list without opening AutoCAD
//   dwgdup version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Loading, validation, automation and duplication logic
//   - pkg/           : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/dwg-batch-duplicator/cmd"
)

func main() {
	cmd.Execute()
}
