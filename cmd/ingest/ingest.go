// Package ingest provides the ingest command.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/visorlab/visor/internal/app"
	"github.com/visorlab/visor/internal/conf"
	ingestpkg "github.com/visorlab/visor/internal/ingest"
	"github.com/visorlab/visor/internal/spectrum"
)

// Command creates the ingest command for spreadsheets and zip bundles.
func Command(settings *conf.Settings) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ingest [file.csv|file.xlsx|bundle.zip]...",
		Short: "Ingest spectra from spreadsheets or zip bundles",
		Long: `Ingest reads each file, splits multi-sample sheets, validates every
record, resolves duplicates and stores the records together with their
simulation caches. Bundles may carry one .jpg per spreadsheet.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				var outcomes []report
				failures := 0
				for _, path := range args {
					out := a.Ingest.IngestPath(cmd.Context(), path)
					if out.Status != ingestpkg.StatusAllSucceeded {
						failures++
					}
					outcomes = append(outcomes, newReport(path, out))
				}

				w := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(w)
					enc.SetIndent("", "  ")
					if err := enc.Encode(outcomes); err != nil {
						return err
					}
				} else {
					for _, r := range outcomes {
						r.print(w)
					}
				}

				if failures > 0 {
					return fmt.Errorf("%d of %d uploads had failures", failures, len(args))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print outcomes as JSON")
	return cmd
}

type report struct {
	File      string         `json:"file"`
	TraceID   string         `json:"trace_id"`
	Status    string         `json:"status"`
	Errors    []string       `json:"errors,omitempty"`
	Succeeded []recordReport `json:"succeeded"`
	Failed    []recordReport `json:"failed"`
}

type recordReport struct {
	SampleID string   `json:"sample_id,omitempty"`
	Filename string   `json:"filename"`
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

func newReport(path string, out ingestpkg.Outcome) report {
	r := report{
		File:      path,
		TraceID:   out.TraceID,
		Status:    string(out.Status),
		Succeeded: make([]recordReport, 0, len(out.Succeeded)),
		Failed:    make([]recordReport, 0, len(out.Failed)),
	}
	for _, err := range out.Errors {
		r.Errors = append(r.Errors, err.Error())
	}
	for _, res := range out.Succeeded {
		r.Succeeded = append(r.Succeeded, newRecordReport(res))
	}
	for _, res := range out.Failed {
		r.Failed = append(r.Failed, newRecordReport(res))
	}
	return r
}

func newRecordReport(res spectrum.Result) recordReport {
	rr := recordReport{Filename: res.Filename, Warnings: res.Warnings, Errors: res.ErrorStrings()}
	if res.Record != nil {
		rr.SampleID = res.Record.SampleID
	}
	return rr
}

func (r report) print(w io.Writer) {
	fmt.Fprintf(w, "%s: %s (trace %s)\n", r.File, r.Status, r.TraceID)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
	for _, rec := range r.Succeeded {
		fmt.Fprintf(w, "  stored  %s (%s)\n", rec.SampleID, rec.Filename)
		for _, warn := range rec.Warnings {
			fmt.Fprintf(w, "          warning: %s\n", warn)
		}
	}
	for _, rec := range r.Failed {
		fmt.Fprintf(w, "  failed  %s\n", rec.Filename)
		for _, e := range rec.Errors {
			fmt.Fprintf(w, "          error: %s\n", e)
		}
		for _, warn := range rec.Warnings {
			fmt.Fprintf(w, "          warning: %s\n", warn)
		}
	}
}
