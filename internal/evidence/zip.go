package evidence

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rawblock/scam-investigator/pkg/models"
)

const legalNotice = "This evidence package was collected by automated investigation " +
	"tooling. Artifact hashes were computed at collection time; the package hash binds " +
	"the archive contents. Handle according to your organisation's digital evidence policy."

// artifactDescriptions maps well-known evidence filenames to their
// manifest descriptions.
var artifactDescriptions = map[string]string{
	"investigation.json":      "full investigation record",
	"report.md":               "investigation report (markdown)",
	"report.pdf":              "investigation report (PDF)",
	"leo_evidence_report.md":  "law-enforcement evidence report",
	"screenshot.png":          "landing page screenshot",
	"dom.html":                "captured DOM snapshot",
	"network.har":             "network traffic archive",
	"agent_session.har":       "agent interaction traffic archive",
	"stix_bundle.json":        "STIX 2.1 indicator bundle",
	"wallet_manifest.json":    "harvested wallet manifest",
}

func describeArtifact(rel string) string {
	if d, ok := artifactDescriptions[rel]; ok {
		return d
	}
	switch {
	case strings.HasPrefix(rel, "downloads/"):
		return "file downloaded from target site"
	case strings.HasPrefix(rel, "video/"):
		return "session recording clip"
	case strings.HasSuffix(rel, ".png"):
		return "milestone screenshot"
	}
	return "investigation artifact"
}

// zipManifest is the manifest.json embedded in the archive.
type zipManifest struct {
	Artifacts []models.ArtifactRecord `json:"artifacts"`
}

// BuildEvidenceZip archives every regular file under dir (except any
// existing evidence.zip) into <dir>/evidence.zip with an embedded
// manifest.json, verifies the archive, and returns the chain-of-custody
// record including the package's own SHA-256.
func BuildEvidenceZip(dir string, inv *models.Investigation) (*models.ChainOfCustody, error) {
	zipPath := filepath.Join(dir, "evidence.zip")

	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || path == zipPath {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk evidence dir: %w", err)
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no artifacts under %s", dir)
	}

	custody := &models.ChainOfCustody{
		InvestigationID: inv.ID,
		TargetURL:       inv.TargetURL,
		CollectedAt:     time.Now().UTC(),
		Collector:       toolName,
		Method:          "automated",
		HashAlgorithm:   "SHA-256",
		LegalNotice:     legalNotice,
	}

	out, err := os.Create(zipPath)
	if err != nil {
		return nil, fmt.Errorf("create evidence zip: %w", err)
	}
	zw := zip.NewWriter(out)

	for _, path := range files {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		rel = filepath.ToSlash(rel)

		data, err := os.ReadFile(path)
		if err != nil {
			zw.Close()
			out.Close()
			return nil, fmt.Errorf("read artifact %s: %w", rel, err)
		}
		sum := sha256.Sum256(data)

		w, err := zw.Create(rel)
		if err != nil {
			zw.Close()
			out.Close()
			return nil, fmt.Errorf("add %s to zip: %w", rel, err)
		}
		if _, err := w.Write(data); err != nil {
			zw.Close()
			out.Close()
			return nil, fmt.Errorf("write %s to zip: %w", rel, err)
		}

		custody.Artifacts = append(custody.Artifacts, models.ArtifactRecord{
			File:        rel,
			SizeBytes:   int64(len(data)),
			SHA256:      hex.EncodeToString(sum[:]),
			Description: describeArtifact(rel),
		})
		custody.TotalBytes += int64(len(data))
	}
	custody.ArtifactCount = len(custody.Artifacts)

	manifestData, err := json.MarshalIndent(zipManifest{Artifacts: custody.Artifacts}, "", "  ")
	if err != nil {
		zw.Close()
		out.Close()
		return nil, err
	}
	mw, err := zw.Create("manifest.json")
	if err != nil {
		zw.Close()
		out.Close()
		return nil, fmt.Errorf("add manifest to zip: %w", err)
	}
	if _, err := mw.Write(manifestData); err != nil {
		zw.Close()
		out.Close()
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return nil, fmt.Errorf("finalize zip: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}

	if err := verifyZip(zipPath); err != nil {
		return nil, fmt.Errorf("evidence zip failed integrity check: %w", err)
	}

	packageSHA, err := hashFileSHA256(zipPath)
	if err != nil {
		return nil, fmt.Errorf("hash evidence zip: %w", err)
	}
	custody.PackageSHA256 = packageSHA
	return custody, nil
}

// verifyZip re-reads every entry; the zip reader checks each CRC as the
// entry body is consumed.
func verifyZip(path string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("entry %s: %w", f.Name, err)
		}
		if _, err := io.Copy(io.Discard, rc); err != nil {
			rc.Close()
			return fmt.Errorf("entry %s: %w", f.Name, err)
		}
		rc.Close()
	}
	return nil
}

func hashFileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
