package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rawblock/scam-investigator/internal/db"
	"github.com/rawblock/scam-investigator/internal/export"
	"github.com/rawblock/scam-investigator/internal/wallet"
)

func cmdWallet(args []string) error {
	if len(args) < 1 {
		walletUsage()
		return errUsage
	}
	switch args[0] {
	case "validate":
		return cmdWalletValidate(args[1:])
	case "scan":
		return cmdWalletScan(args[1:])
	case "patterns":
		return cmdWalletPatterns(args[1:])
	case "allowlist":
		return cmdWalletAllowlist(args[1:])
	case "export":
		return cmdWalletExport(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown wallet command %q\n\n", args[0])
		walletUsage()
		return errUsage
	}
}

func walletUsage() {
	fmt.Fprint(os.Stderr, `Usage: investigate wallet <command> [flags]

Commands:
  validate <address>   Classify and checksum-validate one address
  scan <file>          Extract addresses from a text file
  patterns             List the recognised address families
  allowlist            Show the (token, network) export allowlist
  export               Export stored wallets (xlsx, csv or json)
`)
}

func cmdWalletValidate(args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: investigate wallet validate <address>")
		return errUsage
	}

	v := wallet.NewValidator()
	m := v.Validate(args[0])
	if m == nil {
		return fmt.Errorf("%q is not a recognised cryptocurrency address", args[0])
	}
	fmt.Printf("%s\n  Chain:   %s\n  Symbol:  %s\n", m.Address, m.Pattern, m.Symbol)
	return nil
}

func cmdWalletScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: investigate wallet scan <file> (use - for stdin)")
		return errUsage
	}

	var data []byte
	var err error
	if fs.Arg(0) == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(fs.Arg(0))
	}
	if err != nil {
		return err
	}

	matches := wallet.NewValidator().ScanText(string(data))
	if len(matches) == 0 {
		fmt.Println("No addresses found.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tSYMBOL\tCHAIN")
	for _, m := range matches {
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.Address, m.Symbol, m.Pattern)
	}
	return w.Flush()
}

func cmdWalletPatterns(args []string) error {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "Usage: investigate wallet patterns")
		return errUsage
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CHAIN\tSYMBOL\tEXAMPLE")
	for _, p := range wallet.NewValidator().Patterns() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Symbol, p.Example)
	}
	return w.Flush()
}

func cmdWalletAllowlist(args []string) error {
	fs := flag.NewFlagSet("allowlist", flag.ContinueOnError)
	file := fs.String("file", "", "allowlist JSON file (default: built-in list)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	al := wallet.LoadAllowlist(*file)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOKEN\tSYMBOL\tNETWORK\tSHORT")
	for _, p := range al.Pairs() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.TokenName, p.TokenSymbol, p.Network, p.NetworkShort)
	}
	return w.Flush()
}

func cmdWalletExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	formatFlag := fs.String("format", "xlsx", "output format: xlsx, csv or json")
	address := fs.String("address", "", "filter by address substring")
	token := fs.String("token", "", "filter by token symbol")
	dedup := fs.Bool("dedup", true, "aggregate duplicates across scans")
	limit := fs.Int("limit", 1000, "maximum rows")
	out := fs.String("o", "", "output file (default: wallets.<format>)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	format, err := export.ParseFormat(*formatFlag)
	if err != nil {
		return err
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, err := openStore(ctx, settings)
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := store.SearchWallets(ctx, db.WalletQuery{
		Address:     *address,
		Token:       *token,
		Deduplicate: *dedup,
		Limit:       *limit,
	})
	if err != nil {
		return err
	}

	path := *out
	if path == "" {
		path = fmt.Sprintf("wallets.%s", format)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.SearchResults(f, rows, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("Exported %d wallets to %s\n", len(rows), path)
	return nil
}
