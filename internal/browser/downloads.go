package browser

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"

	"github.com/rawblock/scam-investigator/pkg/models"
)

// downloadTracker routes browser downloads into the sandbox directory
// and hashes completed files.
type downloadTracker struct {
	dir       string
	sizeLimit int64

	mu       sync.Mutex
	pending  map[string]pendingDownload
	finished []models.DownloadArtifact
}

type pendingDownload struct {
	filename string
	url      string
}

func newDownloadTracker(ctx context.Context, dir string, sizeLimit int64) (*downloadTracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	t := &downloadTracker{dir: dir, sizeLimit: sizeLimit, pending: map[string]pendingDownload{}}

	if err := chromedp.Run(ctx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(dir).
			WithEventsEnabled(true),
	); err != nil {
		return nil, fmt.Errorf("enable download capture: %w", err)
	}

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *browser.EventDownloadWillBegin:
			t.mu.Lock()
			t.pending[ev.GUID] = pendingDownload{filename: ev.SuggestedFilename, url: ev.URL}
			t.mu.Unlock()
			log.Printf("Download started: %s from %s", ev.SuggestedFilename, ev.URL)
		case *browser.EventDownloadProgress:
			if ev.State == browser.DownloadProgressStateCompleted {
				go t.finish(ev.GUID)
			}
		}
	})
	return t, nil
}

// finish renames the GUID-named file to its suggested name (suffixing
// on collision) and records hashes.
func (t *downloadTracker) finish(guid string) {
	t.mu.Lock()
	pend, ok := t.pending[guid]
	delete(t.pending, guid)
	t.mu.Unlock()
	if !ok {
		return
	}

	src := filepath.Join(t.dir, guid)
	dst := uniquePath(t.dir, sanitizeFilename(pend.filename))
	if err := os.Rename(src, dst); err != nil {
		log.Printf("Download rename failed for %s: %v", guid, err)
		dst = src
	}

	artifact := models.DownloadArtifact{
		SourceURL: pend.url,
		Filename:  filepath.Base(dst),
		Path:      dst,
	}

	if info, err := os.Stat(dst); err == nil {
		artifact.SizeBytes = info.Size()
		if t.sizeLimit > 0 && info.Size() > t.sizeLimit {
			log.Printf("Download %s exceeds hash ceiling (%d bytes), recording unhashed", artifact.Filename, info.Size())
		} else if sha, md5sum, err := HashFile(dst); err == nil {
			artifact.SHA256 = sha
			artifact.MD5 = md5sum
		}
	}

	t.mu.Lock()
	t.finished = append(t.finished, artifact)
	t.mu.Unlock()
	log.Printf("Download captured: %s (%d bytes)", artifact.Filename, artifact.SizeBytes)
}

func (t *downloadTracker) artifacts() []models.DownloadArtifact {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.DownloadArtifact, len(t.finished))
	copy(out, t.finished)
	return out
}

// Downloads returns the artifacts captured so far in this session.
func (d *Driver) Downloads() []models.DownloadArtifact {
	if d.downloads == nil {
		return nil
	}
	return d.downloads.artifacts()
}

// HashFile computes SHA-256 and MD5 in a single read pass.
func HashFile(path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	sha := sha256.New()
	md := md5.New()
	if _, err := io.Copy(io.MultiWriter(sha, md), f); err != nil {
		return "", "", err
	}
	return hex.EncodeToString(sha.Sum(nil)), hex.EncodeToString(md.Sum(nil)), nil
}

// sanitizeFilename strips path separators and control characters from a
// server-suggested filename.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(`<>:"|?*`, r) {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	if out == "" || out == "." || out == ".." {
		return "download.bin"
	}
	return out
}

// uniquePath resolves filename collisions by numeric suffix.
func uniquePath(dir, name string) string {
	candidate := filepath.Join(dir, name)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
