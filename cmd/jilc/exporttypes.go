package main

import (
	"fmt"

	"github.com/spf13/cobra"

	jil "github.com/jewelscript-go/jilc"
)

func newExportTypesCmd() *cobra.Command {
	flags := &sessionFlags{}
	cmd := &cobra.Command{
		Use:   "export-types [files...]",
		Short: "Compile, link, and dump the type registry as XML",
		Args:  cobra.MinimumNArgs(1),
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
			if err := jil.Link(h); err != nil {
				printDiagnostics(h)
				return err
			}
			xmlText, err := jil.ExportTypeInfo(h)
			if err != nil {
				return err
			}
			fmt.Println(xmlText)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
