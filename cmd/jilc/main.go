// Command jilc is the CLI front end around package jil (SPEC_FULL.md
// "ambient stack: CLI front end", out-of-core per spec.md §1 but
// carried the way the teacher's cmd_local/compile and cmd_local/link
// main.go wrap their own libraries). It is built on cobra rather than
// the teacher's bare architecture-dispatch switch, grounded instead on
// a multi-subcommand cobra tree, the idiom this module's DOMAIN STACK
// adopts for `compile`, `run`, `export-types`, and `profile`.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("jilc: ")

	root := &cobra.Command{
		Use:   "jilc",
		Short: "Compiler front end for JewelScript-style translation units",
	}
	root.AddCommand(newCompileCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newExportTypesCmd())
	root.AddCommand(newProfileCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
