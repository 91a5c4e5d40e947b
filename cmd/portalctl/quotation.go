package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"seaprocure/internal/models"
	"seaprocure/internal/quotation"
)

func newQuotationCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "quotation",
		Aliases: []string{"quote"},
		Short:   "Submit, review and export quotations",
	}

	submit := &cobra.Command{
		Use:   "submit <quotation.yaml>",
		Short: "Submit a quotation for an RFQ (vendor portal)",
		Long: `Reads a quotation draft from YAML. Prices and quantities are taken as
typed; blank or invalid numbers count as zero. The total is always
recomputed from the items.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.env()
			if err != nil {
				return err
			}
			d, err := quotation.LoadDraft(args[0])
			if err != nil {
				return err
			}
			q, err := quotation.Submit(cmd.Context(), e.client, e.cache, d)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Submitted %s for %s: %.2f %s\n", q.ID, q.RFQID, q.TotalAmount, q.Currency)
			return nil
		},
	}

	template := &cobra.Command{
		Use:   "template <rfq-id>",
		Short: "Print a quotation draft for an RFQ to fill in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.env()
			if err != nil {
				return err
			}
			rfq, err := e.client.GetRFQ(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeYAML(e.out, quotation.NewDraft(rfq))
		},
	}

	show := &cobra.Command{
		Use:   "show <rfq-id>",
		Short: "Show the quotation for an RFQ",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.env()
			if err != nil {
				return err
			}
			l := e.client.GetQuotationForRFQ(cmd.Context(), args[0])
			switch {
			case l.IsFailed():
				return l.Err
			case l.IsAbsent():
				fmt.Fprintf(e.out, "No quotation for %s yet\n", args[0])
				return nil
			}
			printQuotation(e, l.Value)
			return nil
		},
	}

	finalize := &cobra.Command{
		Use:   "finalize <quotation-id>",
		Short: "Accept a quotation and close its RFQ (tech portal)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.env()
			if err != nil {
				return err
			}
			q, err := e.client.FinalizeQuotation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "%s is %s\n", q.ID, q.Status)
			return nil
		},
	}

	reject := &cobra.Command{
		Use:   "reject <quotation-id>",
		Short: "Reject a quotation (tech portal)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.env()
			if err != nil {
				return err
			}
			q, err := e.client.RejectQuotation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "%s is %s\n", q.ID, q.Status)
			return nil
		},
	}

	var format, output string
	export := &cobra.Command{
		Use:   "export <quotation-id>",
		Short: "Download a quotation as xlsx or csv",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.env()
			if err != nil {
				return err
			}
			data, err := e.client.ExportQuotation(cmd.Context(), args[0], format)
			if err != nil {
				return err
			}
			if output == "" {
				output = args[0] + "." + format
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Wrote %s (%d bytes)\n", output, len(data))
			return nil
		},
	}
	export.Flags().StringVarP(&format, "format", "f", "xlsx", "xlsx or csv")
	export.Flags().StringVarP(&output, "output", "o", "", "output file (default <id>.<format>)")

	cmd.AddCommand(submit, template, show, finalize, reject, export)
	return cmd
}

func printQuotation(e *env, q *models.Quotation) {
	fmt.Fprintf(e.out, "%s  %s\n", q.ID, q.Title)
	fmt.Fprintf(e.out, "RFQ:     %s\n", q.RFQID)
	fmt.Fprintf(e.out, "Vendor:  %s\n", q.VendorID)
	fmt.Fprintf(e.out, "Status:  %s\n", q.Status)
	fmt.Fprintf(e.out, "Total:   %.2f %s\n", q.TotalAmount, q.Currency)
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nDESCRIPTION\tREQUIRED\tOFFERED\tPRICE\tAMOUNT")
	for _, it := range q.Items {
		fmt.Fprintf(tw, "%s\t%g\t%g\t%.2f\t%.2f\n", it.Description, it.RequiredQty, it.OfferedQty, it.QuotedPrice, it.QuotedPrice*it.OfferedQty)
	}
	tw.Flush()
}
