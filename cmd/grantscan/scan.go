package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/grantscan/internal/matchsvc"
	"github.com/hyperengineering/grantscan/internal/report"
	"github.com/hyperengineering/grantscan/internal/types"
	"github.com/hyperengineering/grantscan/internal/validation"
)

var scanAuthenticated bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the current answers and show the matched grants",
	Long: "Submit the questionnaire answers to the matching service and print the " +
		"categorized report. Partial answers are allowed.",
	Args: cobra.NoArgs,
	RunE: runScan,
}

var grantCmd = &cobra.Command{
	Use:   "grant <slug>",
	Short: "Show a grant with its application steps and documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runGrant,
}

func init() {
	scanCmd.Flags().BoolVar(&scanAuthenticated, "auth", false,
		"Scan the profile stored with the signed-in account instead of the local answers")
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := cliApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	p := a.wizard.Snapshot().Profile
	if scanAuthenticated {
		_, err = a.scans.SubmitAuthenticated(ctx)
	} else {
		_, err = a.scans.Submit(ctx, p)
	}
	if err != nil {
		if detail := matchsvc.Detail(err); detail != "" {
			return fmt.Errorf("scan failed: %s", detail)
		}
		return fmt.Errorf("scan failed: %w", err)
	}

	// The CLI owns the only reference to this response.
	results := a.scans.Snapshot().Results
	a.narrative.Fill(ctx, p, results)
	rep := report.Build(results)

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), rep)
	}
	printReport(cmd.OutOrStdout(), rep)
	return nil
}

func printReport(out io.Writer, rep report.Report) {
	fmt.Fprintf(out, "Found %d grants worth up to %s\n", rep.TotalGrantsFound, rep.TotalPotentialText)
	if rep.Summary != "" {
		fmt.Fprintf(out, "\n%s\n", rep.Summary)
	}

	for _, c := range rep.Categories {
		fmt.Fprintf(out, "\n%s %s (%d, %s)\n", c.Icon, c.Label, c.Count, c.TotalText)
		w := newTabWriter(out)
		fmt.Fprintln(w, "  MATCH\tGRANT\tAMOUNT\tSLUG")
		for _, g := range c.Grants {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", g.Badge.Label, g.Name, g.AmountText, orDash(g.Slug))
		}
		w.Flush()
	}

	if s := rep.Savings; s.TotalAnnualSaving > 0 || s.TotalBackdated > 0 {
		fmt.Fprintf(out, "\nEstimated annual saving: %s\n", report.FormatEuro(s.TotalAnnualSaving))
		if n := len(s.BackdatableGrants); n > 0 {
			fmt.Fprintf(out, "Backdatable: %d worth %s\n", n, report.FormatEuro(s.TotalBackdated))
		}
	}
}

func runGrant(cmd *cobra.Command, args []string) error {
	slug := args[0]
	if verr := validation.ValidateSlug("slug", slug); verr != nil {
		return verr
	}

	a, err := cliApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	detail, err := a.service.GrantDetail(cmd.Context(), slug)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, detail)
	}
	printGrant(out, detail)
	return nil
}

func printGrant(out io.Writer, d *types.GrantDetail) {
	g := d.Grant
	fmt.Fprintf(out, "%s\n", g.Name)
	fmt.Fprintf(out, "%s\n\n", strings.Repeat("=", len(g.Name)))
	if g.ShortDescription != "" {
		fmt.Fprintf(out, "%s\n\n", g.ShortDescription)
	}

	w := newTabWriter(out)
	fmt.Fprintf(w, "Category:\t%s\n", report.CategoryLabel(g.Category))
	fmt.Fprintf(w, "Amount:\t%s\n", grantAmount(g))
	fmt.Fprintf(w, "Source:\t%s\n", orDash(g.SourceOrganisation))
	if g.ApplicationURL != nil {
		fmt.Fprintf(w, "Apply:\t%s\n", *g.ApplicationURL)
	}
	if g.ClosingDate != nil {
		fmt.Fprintf(w, "Closes:\t%s\n", *g.ClosingDate)
	}
	w.Flush()

	if len(d.Steps) > 0 {
		fmt.Fprintln(out, "\nHow to apply:")
		for _, s := range d.Steps {
			fmt.Fprintf(out, "  %d. %s\n", s.StepNumber, s.Title)
		}
	}
	if len(d.Documents) > 0 {
		fmt.Fprintln(out, "\nDocuments needed:")
		for _, doc := range d.Documents {
			req := ""
			if doc.IsRequired {
				req = " (required)"
			}
			fmt.Fprintf(out, "  - %s%s\n", doc.DocumentName, req)
		}
	}
}

func grantAmount(g types.Grant) string {
	if g.MaxAmount != nil && *g.MaxAmount > 0 {
		return report.FormatEuro(*g.MaxAmount)
	}
	if g.AmountDescription != nil && *g.AmountDescription != "" {
		return *g.AmountDescription
	}
	return "Variable"
}
