package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/internal"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/artifact"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/directory"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/validation"
)

var (
	timeout    time.Duration
	jsonOutput bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "erpctl",
		Short: "Maintenance commands for the ERP WhatsApp dispatcher",
		Long: `erpctl checks the company database and the report files the
dispatcher depends on. It reads the same environment (and .env file) as
the server.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Second, "database timeout")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of a table")

	root.AddCommand(testConnectionCmd())
	root.AddCommand(checkTableCmd())
	root.AddCommand(reportsCmd())
	root.AddCommand(lookupCmd())
	root.AddCommand(companiesCmd())
	return root
}

func openDirectory(cmd *cobra.Command) (*directory.Store, context.Context, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	store, err := internal.OpenDirectory(ctx)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	if store == nil {
		cancel()
		return nil, nil, nil, errors.New("DIRECTORY_DB_DSN is not set")
	}
	return store, ctx, cancel, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func testConnectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Connect to the company database and run a trivial query",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ctx, cancel, err := openDirectory(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer store.Close()

			started := time.Now()
			if err := store.Ping(ctx); err != nil {
				return err
			}
			cfg := store.Config()
			fmt.Fprintf(cmd.OutOrStdout(), "✓ connected (%s) in %s\n", cfg.Driver, time.Since(started).Round(time.Millisecond))
			return nil
		},
	}
}

func checkTableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-table",
		Short: "Verify the company table and its columns are readable",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ctx, cancel, err := openDirectory(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer store.Close()

			if err := store.CheckTable(ctx); err != nil {
				return err
			}
			cfg := store.Config()
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s(%s, %s, %s) is readable\n", cfg.Table, cfg.TaxIDColumn, cfg.DestinationColumn, cfg.NameColumn)
			return nil
		},
	}
}

func reportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reports",
		Short: "List the report files found under REPORTS_BASE_PATH",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listReports(cmd.OutOrStdout(), internal.ArtifactsFromEnv())
		},
	}
}

func listReports(w io.Writer, store *artifact.Store) error {
	reports, err := store.List()
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(w, reports)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CNPJ\tSIZE\tMODIFIED\tPATH")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.TaxID, r.SizeFormatted, r.ModifiedAgo, r.Path)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d report(s) in %s\n", len(reports), store.Base())
	return nil
}

func lookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <cnpj>",
		Short: "Show the WhatsApp destination and report file of a company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taxID, err := validation.ValidateTaxID(args[0])
			if err != nil {
				return err
			}

			store, ctx, cancel, err := openDirectory(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer store.Close()

			company, lookupErr := store.LookupByTaxID(ctx, taxID)
			if lookupErr != nil && !errors.Is(lookupErr, directory.ErrNoDestination) {
				return lookupErr
			}
			return printLookup(cmd.OutOrStdout(), company, lookupErr, internal.ArtifactsFromEnv(), taxID)
		},
	}
}

func printLookup(w io.Writer, company directory.Company, lookupErr error, artifacts *artifact.Store, taxID string) error {
	info, fileErr := artifacts.Info(taxID)
	if jsonOutput {
		out := map[string]interface{}{"empresa": company}
		if fileErr == nil {
			out["arquivo"] = info
		} else {
			out["expectedPath"] = artifacts.Path(taxID)
		}
		return printJSON(w, out)
	}

	fmt.Fprintf(w, "Empresa:  %s\n", company.Name)
	fmt.Fprintf(w, "CNPJ:     %s\n", company.TaxID)
	if lookupErr != nil {
		fmt.Fprintf(w, "Grupo:    ✗ %v\n", lookupErr)
	} else {
		fmt.Fprintf(w, "Grupo:    %s\n", company.Destination)
	}
	if fileErr != nil {
		fmt.Fprintf(w, "Arquivo:  ✗ %v\n", fileErr)
	} else {
		fmt.Fprintf(w, "Arquivo:  %s (%s, %s)\n", info.Path, info.SizeFormatted, info.ModifiedAgo)
	}
	return nil
}

func companiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "companies",
		Short: "List every company with its WhatsApp destination",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ctx, cancel, err := openDirectory(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer store.Close()

			companies, err := store.List(ctx)
			if err != nil {
				return err
			}
			return printCompanies(cmd.OutOrStdout(), companies)
		},
	}
}

func printCompanies(w io.Writer, companies []directory.Company) error {
	if jsonOutput {
		return printJSON(w, companies)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CNPJ\tNAME\tDESTINATION")
	for _, c := range companies {
		dest := c.Destination
		if dest == "" {
			dest = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.TaxID, c.Name, dest)
	}
	return tw.Flush()
}
