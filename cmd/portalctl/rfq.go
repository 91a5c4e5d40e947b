package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"seaprocure/internal/models"
	"seaprocure/internal/poller"
	"seaprocure/internal/websocket"
	"seaprocure/internal/workflow"
)

func newRFQCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rfq",
		Short: "Requests for quotation",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List RFQs visible on the portal",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.env()
			if err != nil {
				return err
			}
			rfqs, err := e.client.ListRFQs(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tVESSEL\tPORT\tSTATUS\tDUE")
			for _, r := range rfqs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Title, r.Vessel, r.SupplyPort, r.Status, r.DueDate)
			}
			return tw.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show <rfq-id>",
		Short: "Show an RFQ and its items",
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
			printRFQ(e, rfq)
			return nil
		},
	}

	create := &cobra.Command{
		Use:   "create <rfq.yaml>",
		Short: "Create an RFQ from a YAML file (tech portal)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.env()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var in rfqFile
			if err := yaml.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			rfq, err := e.client.CreateRFQ(cmd.Context(), in.model())
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Created %s (%s)\n", rfq.ID, rfq.Status)
			return nil
		},
	}

	cmd.AddCommand(list, show, create)
	return cmd
}

// rfqFile is the YAML layout accepted by "rfq create".
type rfqFile struct {
	Title      string `yaml:"title"`
	Vessel     string `yaml:"vessel"`
	SupplyPort string `yaml:"supplyPort"`
	Brand      string `yaml:"brand"`
	Model      string `yaml:"model"`
	Category   string `yaml:"category"`
	DueDate    string `yaml:"dueDate"`
	Status     string `yaml:"status"`
	Items      []struct {
		Description   string  `yaml:"description"`
		Quantity      float64 `yaml:"quantity"`
		Unit          string  `yaml:"unit"`
		PartNumber    string  `yaml:"partNumber"`
		DrawingNumber string  `yaml:"drawingNumber"`
	} `yaml:"items"`
}

func (f rfqFile) model() models.RFQ {
	rfq := models.RFQ{
		Title: f.Title, Vessel: f.Vessel, SupplyPort: f.SupplyPort, Brand: f.Brand,
		Model: f.Model, Category: f.Category, DueDate: f.DueDate, Status: f.Status,
	}
	for _, it := range f.Items {
		rfq.Metadata.Items = append(rfq.Metadata.Items, models.RFQItem{
			Description: it.Description, Quantity: it.Quantity, Unit: it.Unit,
			PartNumber: it.PartNumber, DrawingNumber: it.DrawingNumber,
		})
	}
	return rfq
}

func printRFQ(e *env, rfq *models.RFQ) {
	fmt.Fprintf(e.out, "%s  %s\n", rfq.ID, rfq.Title)
	fmt.Fprintf(e.out, "Status:  %s\n", rfq.Status)
	if rfq.Vessel != "" {
		fmt.Fprintf(e.out, "Vessel:  %s\n", rfq.Vessel)
	}
	fmt.Fprintf(e.out, "Port:    %s\n", rfq.SupplyPort)
	if rfq.Brand != "" || rfq.Model != "" {
		fmt.Fprintf(e.out, "Engine:  %s %s\n", rfq.Brand, rfq.Model)
	}
	if rfq.DueDate != "" {
		fmt.Fprintf(e.out, "Due:     %s\n", rfq.DueDate)
	}
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\n#\tDESCRIPTION\tQTY\tUNIT\tPART")
	for i, it := range rfq.Metadata.Items {
		fmt.Fprintf(tw, "%d\t%s\t%g\t%s\t%s\n", i+1, it.Description, it.Quantity, it.Unit, it.PartNumber)
	}
	tw.Flush()
}

func newStatusCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <rfq-id>",
		Short: "Show the workflow state of an RFQ",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.env()
			if err != nil {
				return err
			}
			snap, err := e.loader.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			state, err := workflow.Derive(snap)
			printState(e, snap, state, err)
			return err
		},
	}
}

func printState(e *env, snap workflow.Snapshot, state workflow.State, err error) {
	fmt.Fprintf(e.out, "RFQ:       %s", snap.RFQ.ID)
	if snap.RFQ.Title != "" {
		fmt.Fprintf(e.out, " (%s)", snap.RFQ.Title)
	}
	fmt.Fprintln(e.out)
	if q := snap.Quotation; q.IsPresent() {
		fmt.Fprintf(e.out, "Quotation: %s  %.2f %s  [%s]\n", q.Value.ID, q.Value.TotalAmount, q.Value.Currency, q.Value.Status)
	}
	if err != nil {
		fmt.Fprintf(e.out, "State:     unavailable (%v)\n", err)
		return
	}
	fmt.Fprintf(e.out, "State:     %s\n", state)
	if p := snap.Proof; p.IsPresent() {
		fmt.Fprintf(e.out, "Payment:   %.2f %s via %s, ref %s\n", p.Value.Amount, p.Value.Currency, p.Value.PaymentMethod, p.Value.TransactionReference)
		if p.Value.ShippingOption != "" {
			fmt.Fprintf(e.out, "Shipping:  %s", p.Value.ShippingOption)
			if awb := firstNonEmpty(p.Value.VendorShippingAWB, p.Value.SelfShippingAWB); awb != "" {
				fmt.Fprintf(e.out, ", AWB %s", awb)
			}
			fmt.Fprintln(e.out)
		}
	}
	if next := state.NextAction(e.cfg.Client.Portal); next != "" {
		fmt.Fprintf(e.out, "Next:      %s\n", next)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func newWatchCmd(o *options) *cobra.Command {
	var interval time.Duration
	var push bool
	cmd := &cobra.Command{
		Use:   "watch <rfq-id>",
		Short: "Follow an RFQ until interrupted",
		Long: `Fetches the RFQ now, then polls while waiting on the other party and
refetches on every change event from the server. Polling stops once a
shipping option is chosen; change events still refresh the view.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.env()
			if err != nil {
				return err
			}
			if interval <= 0 {
				interval = e.cfg.Client.PollInterval
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			panel := poller.NewPanel(e.loader, interval, e.logger)
			if push {
				l := &websocket.Listener{URL: wsURL(e.cfg.Client.BaseURL), Header: http.Header{}, Logger: e.logger}
				go panel.Follow(ctx, l)
			}

			last := workflow.State(-1)
			err = panel.Run(ctx, args[0], func(u poller.Update) {
				if u.Err == nil && u.State == last && u.Trigger == poller.TriggerInterval {
					return
				}
				fmt.Fprintf(e.out, "[%s] %s\n", u.At.Format("15:04:05"), u.Trigger)
				if u.Snapshot.RFQ != nil {
					printState(e, u.Snapshot, u.State, u.Err)
				} else {
					fmt.Fprintf(e.out, "fetch failed: %v\n", u.Err)
				}
				last = u.State
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default from config)")
	cmd.Flags().BoolVar(&push, "push", true, "listen for change events on the server's websocket feed")
	return cmd
}

func wsURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws"
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws"
	}
	return base + "/ws"
}
