package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/storm-radar/internal/sites"
)

var errValidationFailed = errors.New("validation failed")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a radar site dataset",
	Long:  "Check coordinate ranges, ids and duplicates of a site dataset, phase by phase. Without --file the compiled-in dataset is checked.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("file")
		if !validateDataset(cmd.OutOrStdout(), path) {
			return errValidationFailed
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().String("file", "", "path to a JSON site dataset")
	rootCmd.AddCommand(validateCmd)
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// validateDataset prints a phase report and reports whether every phase passed.
func validateDataset(w io.Writer, path string) bool {
	source := path
	if source == "" {
		source = "embedded dataset"
	}
	fmt.Fprintf(w, "=== Radar Site Dataset Validation (%s) ===\n\n", source)

	decoded := &phase{name: "Phase 1: decode dataset"}
	fields := &phase{name: "Phase 2: entry fields and ranges"}
	unique := &phase{name: "Phase 3: unique site ids"}
	resolver := &phase{name: "Phase 4: nearest-site self check"}
	phases := []*phase{decoded, fields, unique, resolver}

	var (
		count    int
		problems []string
		err      error
	)
	if path == "" {
		count, problems, err = sites.ValidateEmbedded()
	} else {
		count, problems, err = sites.ValidateFile(path)
	}
	switch {
	case err != nil:
		decoded.errorf("%v", err)
	case count == 0:
		decoded.errorf("dataset has no entries")
	}

	for _, p := range problems {
		if strings.Contains(p, "duplicate id") {
			unique.errorf("%s", p)
		} else {
			fields.errorf("%s", p)
		}
	}

	if decoded.passed() && fields.passed() && unique.passed() {
		checkResolver(resolver, path)
	} else {
		resolver.errorf("skipped: earlier phases failed")
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}
	fmt.Fprintf(w, "\nEntries: %d\n", count)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return true
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return false
}

// checkResolver asserts that every site resolves to a site at its own location.
func checkResolver(p *phase, path string) {
	var (
		registry *sites.Registry
		err      error
	)
	if path == "" {
		registry, err = sites.Default()
	} else {
		registry, err = sites.LoadFile(path)
	}
	if err != nil {
		p.errorf("load registry: %v", err)
		return
	}
	for _, s := range registry.Sites() {
		res, ok := registry.Nearest(s.Point(), sites.Options{})
		if !ok {
			p.errorf("%s: no nearest site at its own location", s.ID)
			continue
		}
		if res.DistanceKm > 0.001 {
			p.errorf("%s: nearest site %s is %.3f km away", s.ID, res.Site.ID, res.DistanceKm)
		}
	}
}
