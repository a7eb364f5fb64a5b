package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/google/pprof/profile"
	"github.com/spf13/cobra"
)

// funcTotal accumulates one sample value type's total across every
// sample location attributed to a function, keyed by function name.
type funcTotal struct {
	name  string
	total int64
}

func newProfileCmd() *cobra.Command {
	var top int
	var sampleType string
	cmd := &cobra.Command{
		Use:   "profile <profile.pb.gz>",
		Short: "Summarize a captured runtime/pprof CPU profile",
		Long: "Reads a profile captured by runtime/pprof and prints the top-N\n" +
			"functions by total sample value, the CLI-side half of the\n" +
			"google/pprof workflow the real Go toolchain's -cpuprofile output\n" +
			"is normally fed into. The compiler does not capture profiles\n" +
			"itself; verbose=on only sets a session option.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("profile: %w", err)
			}
			defer f.Close()

			prof, err := profile.Parse(f)
			if err != nil {
				return fmt.Errorf("profile: parse %s: %w", args[0], err)
			}
			return printTopFunctions(prof, sampleType, top)
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "number of functions to print")
	cmd.Flags().StringVar(&sampleType, "sample-type", "", "sample type to sum (default: the profile's first)")
	return cmd
}

func printTopFunctions(prof *profile.Profile, sampleType string, top int) error {
	idx := 0
	if sampleType != "" {
		idx = -1
		for i, st := range prof.SampleType {
			if st.Type == sampleType {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("profile: unknown sample type %q", sampleType)
		}
	}
	if len(prof.SampleType) == 0 {
		return fmt.Errorf("profile: no sample types in profile")
	}

	totals := map[string]int64{}
	for _, s := range prof.Sample {
		if idx >= len(s.Value) {
			continue
		}
		for _, loc := range s.Location {
			for _, line := range loc.Line {
				if line.Function == nil {
					continue
				}
				totals[line.Function.Name] += s.Value[idx]
			}
		}
	}

	ranked := make([]funcTotal, 0, len(totals))
	for name, total := range totals {
		ranked = append(ranked, funcTotal{name: name, total: total})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].total != ranked[j].total {
			return ranked[i].total > ranked[j].total
		}
		return ranked[i].name < ranked[j].name
	})

	unit := prof.SampleType[idx].Unit
	if top > len(ranked) {
		top = len(ranked)
	}
	for _, r := range ranked[:top] {
		fmt.Printf("%10d %s  %s\n", r.total, unit, r.name)
	}
	return nil
}
