package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	exportOut   string
	exportEmail string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download the PDF report for the current answers, or email it",
	Long: "Render the report on the matching service and save it to --out. When an " +
		"archive bucket is configured the report is also uploaded and a download link printed. " +
		"With --email the service delivers the report instead.",
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", ".", "Directory to save the report in")
	exportCmd.Flags().StringVar(&exportEmail, "email", "", "Email the report to this address instead of saving it")
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := cliApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	p := a.wizard.Snapshot().Profile
	out := cmd.OutOrStdout()

	if exportEmail != "" {
		resp, err := a.exporter.Email(ctx, exportEmail, p)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(out, resp)
		}
		msg := resp.Message
		if msg == "" {
			msg = "Report requested"
		}
		fmt.Fprintf(out, "%s (status: %s)\n", msg, resp.Status)
		return nil
	}

	res, err := a.exporter.Save(ctx, p, exportOut)
	if err != nil {
		return err
	}

	if jsonOutput {
		v := map[string]any{
			"path":       res.Path,
			"size_bytes": len(res.Report.Data),
		}
		if res.ArchiveKey != "" {
			v["archive_key"] = res.ArchiveKey
		}
		if res.ArchiveURL != "" {
			v["archive_url"] = res.ArchiveURL
			v["url_expiry"] = res.URLExpiry
		}
		return printJSON(out, v)
	}

	fmt.Fprintf(out, "Saved %s (%s)\n", res.Path, humanize.Bytes(uint64(len(res.Report.Data))))
	if res.ArchiveURL != "" {
		fmt.Fprintf(out, "Download link (expires %s): %s\n",
			humanize.Time(res.URLExpiry), res.ArchiveURL)
	} else if res.ArchiveKey != "" {
		fmt.Fprintf(out, "Archived as %s\n", res.ArchiveKey)
	}
	return nil
}

