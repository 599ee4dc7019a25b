// Package export renders harvested wallets for analyst handoff: XLSX
// for case files, CSV for tooling, JSON for pipelines.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rawblock/scam-investigator/internal/db"
	"github.com/rawblock/scam-investigator/pkg/models"
)

// Format selects the output encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ContentType returns the HTTP content type for a format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv"
	default:
		return "application/json"
	}
}

var walletHeader = []string{
	"site_url", "token_name", "token_symbol", "network_name",
	"network_short", "wallet_address", "source", "confidence", "captured_at",
}

func walletRow(w models.WalletEntry) []string {
	captured := ""
	if !w.CapturedAt.IsZero() {
		captured = w.CapturedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		w.SiteURL, w.TokenName, w.TokenSymbol, w.NetworkName,
		w.NetworkShort, w.WalletAddress, string(w.Source),
		strconv.FormatFloat(w.Confidence, 'f', 2, 64), captured,
	}
}

// Wallets writes the entries to w in the requested format.
func Wallets(w io.Writer, entries []models.WalletEntry, format Format) error {
	switch format {
	case FormatXLSX:
		return walletsXLSX(w, entries)
	case FormatCSV:
		return walletsCSV(w, entries)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if entries == nil {
			entries = []models.WalletEntry{}
		}
		return enc.Encode(entries)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func walletsCSV(w io.Writer, entries []models.WalletEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(walletHeader); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write(walletRow(e)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func walletsXLSX(w io.Writer, entries []models.WalletEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Wallets"
	f.SetSheetName(f.GetSheetName(0), sheet)

	for col, name := range walletHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(walletHeader), 1)
		f.SetCellStyle(sheet, "A1", last, bold)
	}

	for i, e := range entries {
		row := walletRow(e)
		for col, val := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			// Confidence stays numeric for spreadsheet filtering.
			if col == 7 {
				if err := f.SetCellValue(sheet, cell, e.Confidence); err != nil {
					return err
				}
				continue
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return err
			}
		}
	}

	// Address column wide enough to read without resizing.
	f.SetColWidth(sheet, "F", "F", 48)
	f.SetColWidth(sheet, "A", "A", 32)

	return f.Write(w)
}

var searchHeader = []string{
	"wallet_address", "token_symbol", "network_short", "source",
	"site_url", "confidence", "first_seen", "last_seen", "seen_count", "scan_id",
}

func searchRow(r db.WalletRow) []string {
	return []string{
		r.WalletAddress, r.TokenSymbol, r.NetworkShort, r.Source,
		r.SiteURL, strconv.FormatFloat(r.Confidence, 'f', 2, 64),
		r.FirstSeenAt.UTC().Format(time.RFC3339),
		r.LastSeenAt.UTC().Format(time.RFC3339),
		strconv.Itoa(r.SeenCount), r.ScanID,
	}
}

// SearchResults writes cross-scan wallet search rows, including the
// seen-count and first/last-seen aggregates, in the requested format.
func SearchResults(w io.Writer, rows []db.WalletRow, format Format) error {
	switch format {
	case FormatXLSX:
		return searchXLSX(w, rows)
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(searchHeader); err != nil {
			return err
		}
		for _, r := range rows {
			if err := cw.Write(searchRow(r)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if rows == nil {
			rows = []db.WalletRow{}
		}
		return enc.Encode(rows)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func searchXLSX(w io.Writer, rows []db.WalletRow) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Wallet Search"
	f.SetSheetName(f.GetSheetName(0), sheet)

	for col, name := range searchHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}
	for i, r := range rows {
		for col, val := range searchRow(r) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			switch col {
			case 5:
				err = f.SetCellValue(sheet, cell, r.Confidence)
			case 8:
				err = f.SetCellValue(sheet, cell, r.SeenCount)
			default:
				err = f.SetCellValue(sheet, cell, val)
			}
			if err != nil {
				return err
			}
		}
	}
	f.SetColWidth(sheet, "A", "A", 48)
	return f.Write(w)
}

// ParseFormat validates a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatXLSX, FormatCSV, FormatJSON:
		return Format(s), nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want xlsx, csv or json)", s)
	}
}
