package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"seaprocure/internal/apiclient"
	"seaprocure/internal/models"
	"seaprocure/internal/workflow"
)

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// openUploads opens each path for upload. The returned function closes them.
func openUploads(paths []string) ([]apiclient.Upload, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	var uploads []apiclient.Upload
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		files = append(files, f)
		uploads = append(uploads, apiclient.Upload{Name: filepath.Base(p), Content: f})
	}
	return uploads, closeAll, nil
}

func newBankingCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "banking",
		Short: "Vendor banking details for a finalized quotation",
	}

	var file string
	var docs []string
	submit := &cobra.Command{
		Use:   "submit <quotation-id>",
		Short: "Submit banking details (vendor portal)",
		Long:  `Reads banking details from a YAML file. They cannot be changed once submitted.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.env()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var b models.BankingDetails
			if err := yaml.Unmarshal(data, &b); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			b.QuotationID = args[0]

			uploads, closeAll, err := openUploads(docs)
			if err != nil {
				return err
			}
			defer closeAll()

			saved, err := e.actions.SubmitBankingDetails(cmd.Context(), b, uploads...)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Banking details saved for %s (%d document(s))\n", saved.QuotationID, len(saved.Documents))
			return nil
		},
	}
	submit.Flags().StringVarP(&file, "file", "f", "", "YAML file with the banking details")
	submit.Flags().StringArrayVar(&docs, "doc", nil, "supporting document to attach (repeatable)")
	submit.MarkFlagRequired("file")

	show := &cobra.Command{
		Use:   "show <quotation-id>",
		Short: "Show banking details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.env()
			if err != nil {
				return err
			}
			l := e.client.GetBankingDetails(cmd.Context(), args[0])
			switch {
			case l.IsFailed():
				return l.Err
			case l.IsAbsent():
				fmt.Fprintf(e.out, "No banking details for %s yet\n", args[0])
				return nil
			}
			return writeYAML(e.out, l.Value)
		},
	}

	cmd.AddCommand(submit, show)
	return cmd
}

func newPaymentCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Payment proof and approval",
	}

	var req models.PaymentProofRequest
	var docs []string
	upload := &cobra.Command{
		Use:   "upload <quotation-id>",
		Short: "Upload proof of payment (customer portal)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.env()
			if err != nil {
				return err
			}
			req.QuotationID = args[0]
			uploads, closeAll, err := openUploads(docs)
			if err != nil {
				return err
			}
			defer closeAll()

			p, err := e.actions.UploadPaymentProof(cmd.Context(), req, uploads...)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Payment proof for %s uploaded, status %s\n", p.QuotationID, p.Status)
			return nil
		},
	}
	f := upload.Flags()
	f.Float64Var(&req.Amount, "amount", 0, "amount paid")
	f.StringVar(&req.Currency, "currency", "USD", "currency")
	f.StringVar(&req.PaymentDate, "date", "", "payment date (YYYY-MM-DD)")
	f.StringVar(&req.PaymentMethod, "method", "wire", "payment method")
	f.StringVar(&req.TransactionReference, "ref", "", "bank transaction reference")
	f.StringVar(&req.Notes, "notes", "", "notes for the vendor")
	f.StringArrayVar(&docs, "doc", nil, "payment document to attach (repeatable)")

	show := &cobra.Command{
		Use:   "show <quotation-id>",
		Short: "Show the payment proof",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.env()
			if err != nil {
				return err
			}
			l := e.client.GetPaymentProof(cmd.Context(), args[0])
			switch {
			case l.IsFailed():
				return l.Err
			case l.IsAbsent():
				fmt.Fprintf(e.out, "No payment proof for %s yet\n", args[0])
				return nil
			}
			p := l.Value
			fmt.Fprintf(e.out, "Status:     %s\n", p.Status)
			fmt.Fprintf(e.out, "Amount:     %.2f %s\n", p.Amount, p.Currency)
			fmt.Fprintf(e.out, "Paid:       %s via %s\n", p.PaymentDate, p.PaymentMethod)
			fmt.Fprintf(e.out, "Reference:  %s\n", p.TransactionReference)
			for _, d := range p.Documents {
				fmt.Fprintf(e.out, "Document:   %s  %s (%d bytes)\n", d.ID, d.FileName, d.Size)
			}
			if p.ApprovedAt != nil {
				fmt.Fprintf(e.out, "Approved:   %s by %s\n", *p.ApprovedAt, p.ApprovedBy)
			}
			return nil
		},
	}

	var yes bool
	approve := &cobra.Command{
		Use:   "approve <quotation-id>",
		Short: "Confirm the customer's payment (cannot be undone)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.env()
			if err != nil {
				return err
			}
			var c workflow.Confirmer = stdinConfirmer{e: e}
			if yes {
				c = workflow.AlwaysConfirm
			}
			p, err := e.actions.ApprovePayment(cmd.Context(), args[0], c)
			if errors.Is(err, workflow.ErrNotConfirmed) {
				fmt.Fprintln(e.out, "Cancelled")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Payment for %s approved\n", p.QuotationID)
			return nil
		},
	}
	approve.Flags().BoolVarP(&yes, "yes", "y", false, "approve without asking")

	cmd.AddCommand(upload, show, approve)
	return cmd
}

func newShippingCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shipping",
		Short: "Shipping decision after payment approval",
	}

	var sel models.ShippingOptionRequest
	selectCmd := &cobra.Command{
		Use:   "select <quotation-id>",
		Short: "Choose self or vendor-managed shipping (customer portal)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.env()
			if err != nil {
				return err
			}
			if sel.ShippingOption != models.ShippingSelf {
				sel.AWB, sel.ContactName, sel.ContactPhone, sel.ContactEmail = "", "", "", ""
			}
			p, err := e.actions.SelectShippingOption(cmd.Context(), args[0], sel)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Shipping for %s: %s\n", p.QuotationID, p.ShippingOption)
			return nil
		},
	}
	sf := selectCmd.Flags()
	sf.StringVar(&sel.ShippingOption, "option", "", "self or vendor-managed")
	sf.StringVar(&sel.AWB, "awb", "", "air waybill number (self)")
	sf.StringVar(&sel.ContactName, "contact-name", "", "shipping contact name (self)")
	sf.StringVar(&sel.ContactPhone, "contact-phone", "", "shipping contact phone (self)")
	sf.StringVar(&sel.ContactEmail, "contact-email", "", "shipping contact email (self)")
	selectCmd.MarkFlagRequired("option")

	var vs models.VendorShippingRequest
	vendorCmd := &cobra.Command{
		Use:   "vendor <quotation-id>",
		Short: "Submit AWB and contact for vendor-managed shipping (vendor portal)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.env()
			if err != nil {
				return err
			}
			p, err := e.actions.SubmitVendorShipping(cmd.Context(), args[0], vs)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Shipping details for %s submitted, AWB %s\n", p.QuotationID, p.VendorShippingAWB)
			return nil
		},
	}
	vf := vendorCmd.Flags()
	vf.StringVar(&vs.AWB, "awb", "", "air waybill number")
	vf.StringVar(&vs.ContactName, "contact-name", "", "shipping contact name")
	vf.StringVar(&vs.ContactPhone, "contact-phone", "", "shipping contact phone")
	vf.StringVar(&vs.ContactEmail, "contact-email", "", "shipping contact email")

	cmd.AddCommand(selectCmd, vendorCmd)
	return cmd
}
