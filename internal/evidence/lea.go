package evidence

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rawblock/scam-investigator/pkg/models"
)

// ErrNoLEAArtifacts is returned when none of the handoff files exist.
var ErrNoLEAArtifacts = fmt.Errorf("no law-enforcement artifacts present")

// leaFiles are the files included in the handoff package, in order.
var leaFiles = []string{
	"report.pdf",
	"leo_evidence_report.md",
	"stix_bundle.json",
	"evidence.zip",
	"wallet_manifest.json",
}

// StreamLEAPackage writes the law-enforcement handoff ZIP to w: the
// rendered reports, the STIX bundle, the evidence ZIP itself, the
// wallet manifest and a chain_of_custody.json binding them. Missing
// individual files are skipped; only a fully empty package is an error.
func StreamLEAPackage(w io.Writer, dir string, custody *models.ChainOfCustody) error {
	var present []string
	for _, name := range leaFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			present = append(present, name)
		}
	}
	if len(present) == 0 {
		return ErrNoLEAArtifacts
	}

	zw := zip.NewWriter(w)
	for _, name := range present {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			zw.Close()
			return fmt.Errorf("open %s: %w", name, err)
		}
		entry, err := zw.Create(name)
		if err != nil {
			f.Close()
			zw.Close()
			return fmt.Errorf("add %s: %w", name, err)
		}
		if _, err := io.Copy(entry, f); err != nil {
			f.Close()
			zw.Close()
			return fmt.Errorf("stream %s: %w", name, err)
		}
		f.Close()
	}

	if custody != nil {
		data, err := json.MarshalIndent(custody, "", "  ")
		if err != nil {
			zw.Close()
			return err
		}
		entry, err := zw.Create("chain_of_custody.json")
		if err != nil {
			zw.Close()
			return fmt.Errorf("add chain of custody: %w", err)
		}
		if _, err := entry.Write(data); err != nil {
			zw.Close()
			return fmt.Errorf("write chain of custody: %w", err)
		}
	}
	return zw.Close()
}
