package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/grantscan/internal/report"
	"github.com/hyperengineering/grantscan/internal/types"
	"github.com/hyperengineering/grantscan/internal/validation"
)

var (
	grantsPage     int
	grantsCategory string
)

var grantsCmd = &cobra.Command{
	Use:   "grants",
	Short: "Browse the grant catalogue",
	Long: "List active grants one page at a time, optionally for a single category. " +
		"The subcommands search the catalogue, count grants per category and show recent additions.",
	Args: cobra.NoArgs,
	RunE: runGrantsList,
}

var grantsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search grant names and descriptions",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGrantsSearch,
}

var grantsCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Show how many grants each category holds",
	Args:  cobra.NoArgs,
	RunE:  runGrantsCategories,
}

var grantsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Show grants added in the last 30 days",
	Args:  cobra.NoArgs,
	RunE:  runGrantsNew,
}

func init() {
	grantsCmd.Flags().IntVar(&grantsPage, "page", 1, "Page to show, starting at 1")
	grantsCmd.Flags().StringVar(&grantsCategory, "category", "", "Only grants in this category code (e.g. home_energy)")

	grantsCmd.AddCommand(grantsSearchCmd)
	grantsCmd.AddCommand(grantsCategoriesCmd)
	grantsCmd.AddCommand(grantsNewCmd)
}

func runGrantsList(cmd *cobra.Command, args []string) error {
	if grantsPage < 1 {
		return &validation.ValidationError{Field: "page", Message: "must be a positive integer"}
	}
	if verr := validation.ValidateCategory("category", grantsCategory); verr != nil {
		return verr
	}

	a, err := cliApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	page, err := a.service.ListGrants(cmd.Context(), grantsPage, grantsCategory)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, page)
	}
	if len(page.Grants) == 0 {
		fmt.Fprintln(out, "No grants found.")
		return nil
	}
	printGrantTable(out, page.Grants)

	perPage := max(page.PerPage, 1)
	pages := (page.Total + perPage - 1) / perPage
	fmt.Fprintf(out, "\nPage %d of %d (%d grants)\n", page.Page, max(pages, 1), page.Total)
	return nil
}

func runGrantsSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	if verr := validation.ValidateSearchQuery("query", query); verr != nil {
		return verr
	}

	a, err := cliApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.service.SearchGrants(cmd.Context(), query)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, res)
	}
	if len(res.Results) == 0 {
		fmt.Fprintf(out, "No grants match %q.\n", strings.TrimSpace(query))
		return nil
	}
	printGrantTable(out, res.Results)
	fmt.Fprintf(out, "\n%d results for %q\n", res.Total, strings.TrimSpace(query))
	return nil
}

func runGrantsCategories(cmd *cobra.Command, args []string) error {
	a, err := cliApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cats, err := a.service.Categories(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, cats)
	}

	w := newTabWriter(out)
	fmt.Fprintln(w, "CATEGORY\tCODE\tGRANTS")
	for _, c := range cats {
		fmt.Fprintf(w, "%s %s\t%s\t%d\n", report.CategoryIcon(c.Category), c.Label, c.Category, c.Count)
	}
	return w.Flush()
}

func runGrantsNew(cmd *cobra.Command, args []string) error {
	a, err := cliApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	grants, err := a.service.NewGrants(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, grants)
	}
	if len(grants) == 0 {
		fmt.Fprintln(out, "No grants added in the last 30 days.")
		return nil
	}
	printGrantTable(out, grants)
	return nil
}

func printGrantTable(out io.Writer, grants []types.Grant) {
	w := newTabWriter(out)
	fmt.Fprintln(w, "GRANT\tCATEGORY\tAMOUNT\tSLUG")
	for _, g := range grants {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.Name, report.CategoryLabel(g.Category), grantAmount(g), orDash(g.Slug))
	}
	w.Flush()
}
