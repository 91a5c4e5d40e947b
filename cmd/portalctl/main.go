// Command portalctl drives the procurement workflow from the terminal:
// quotations, banking details, payment approval, shipping and roles.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"seaprocure/internal/apiclient"
	"seaprocure/internal/config"
	"seaprocure/internal/query"
	"seaprocure/internal/workflow"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	portal     string
	baseURL    string
	tokenFile  string
	verbose    bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// env is what a command needs to talk to the API.
type env struct {
	cfg     config.Config
	logger  *slog.Logger
	client  *apiclient.Client
	cache   *query.Cache
	loader  *workflow.Loader
	actions *workflow.Actions
	out     io.Writer
	in      io.Reader
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	o := &options{in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "portalctl",
		Short:         "Maritime procurement portal CLI",
		Long:          `Command line portal for vendors, customers and technical staff: RFQs, quotations, payments and shipping.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "path to YAML config file")
	pf.StringVarP(&o.portal, "portal", "p", "", "portal to act on: vendor, customer or tech")
	pf.StringVar(&o.baseURL, "url", "", "API base URL")
	pf.StringVar(&o.tokenFile, "token-file", "", "where login tokens are kept")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newLoginCmd(o),
		newLogoutCmd(o),
		newRFQCmd(o),
		newStatusCmd(o),
		newWatchCmd(o),
		newQuotationCmd(o),
		newBankingCmd(o),
		newPaymentCmd(o),
		newShippingCmd(o),
		newRolesCmd(o),
	)
	return root
}

// env loads configuration and builds the API client.
func (o *options) env() (*env, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.portal != "" {
		cfg.Client.Portal = o.portal
	}
	if o.baseURL != "" {
		cfg.Client.BaseURL = o.baseURL
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Log.NewLogger(o.errOut)
	tokenFile := o.tokenFile
	if tokenFile == "" {
		tokenFile = portalTokenFile(cfg.Client.TokenFile, cfg.Client.Portal)
	}

	client := apiclient.New(cfg.Client.BaseURL, cfg.Client.Portal, apiclient.NewFileTokenStore(tokenFile),
		apiclient.WithLogger(logger),
		apiclient.WithLoginRequired(func() {
			fmt.Fprintf(o.errOut, "Session expired. Run: portalctl login --portal %s\n", cfg.Client.Portal)
		}),
	)
	client.HTTP.Timeout = cfg.Client.Timeout

	cache := query.NewCache(0)
	return &env{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		cache:   cache,
		loader:  workflow.NewLoader(client, cache),
		actions: workflow.NewActions(client, cache),
		out:     o.out,
		in:      o.in,
	}, nil
}

// portalTokenFile keeps one token file per portal so a user can stay
// logged in to several portals at once.
func portalTokenFile(path, portal string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + portal + ext
}
