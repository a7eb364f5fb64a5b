package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	jil "github.com/jewelscript-go/jilc"
)

func newRunCmd() *cobra.Command {
	flags := &sessionFlags{}
	var eval string
	cmd := &cobra.Command{
		Use:   "run [files...]",
		Short: "Compile, link, and prepare a session for the VM to run",
		Long: "Compiles the given files (and, with --eval, an additional inline\n" +
			"snippet via compile-and-run) and links the session. Actually\n" +
			"invoking the linked code is the embedding VM's responsibility\n" +
			"(out of scope, spec.md §1) -- this command only gets a session\n" +
			"to the point where a VM could run it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openSession(flags)
			if err != nil {
				return err
			}
			defer jil.Free(h)

			for _, path := range args {
				if err := jil.CompileFile(h, path); err != nil {
					printDiagnostics(h)
					return err
				}
			}
			if eval != "" {
				if err := jil.CompileAndRun(h, eval); err != nil {
					printDiagnostics(h)
					return err
				}
			} else if err := jil.Link(h); err != nil {
				printDiagnostics(h)
				return err
			}
			printDiagnostics(h)
			fmt.Fprintln(os.Stdout, "linked: ready for the VM to run")
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&eval, "eval", "", "inline statement text to wrap and compile via compile-and-run")
	return cmd
}
