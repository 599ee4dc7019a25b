package browser

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func TestProxyPool_RoundRobin(t *testing.T) {
	pool := NewProxyPool("http://p1:8080, http://p2:8080 ,http://p3:8080", false)
	if pool.Size() != 3 {
		t.Fatalf("expected 3 proxies, got %d", pool.Size())
	}
	got := []string{pool.Next(), pool.Next(), pool.Next(), pool.Next()}
	want := []string{"http://p1:8080", "http://p2:8080", "http://p3:8080", "http://p1:8080"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotation broken at %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestProxyPool_Sticky(t *testing.T) {
	pool := NewProxyPool("http://p1:8080,http://p2:8080", true)
	for i := 0; i < 5; i++ {
		if p := pool.Next(); p != "http://p1:8080" {
			t.Fatalf("sticky pool must pin the first proxy, got %s", p)
		}
	}
}

func TestProxyPool_Empty(t *testing.T) {
	pool := NewProxyPool(" , ,", false)
	if pool.Size() != 0 {
		t.Fatalf("blank entries should be dropped, size=%d", pool.Size())
	}
	if p := pool.Next(); p != "" {
		t.Fatalf("empty pool must return empty string, got %q", p)
	}
}

func TestRandomFingerprint(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	fp := RandomFingerprint(r)
	if fp.UserAgent == "" || fp.Width == 0 || fp.Height == 0 || fp.Timezone == "" {
		t.Fatalf("incomplete fingerprint: %+v", fp)
	}
	// Seeded draws are reproducible.
	fp2 := RandomFingerprint(rand.New(rand.NewSource(7)))
	if fp != fp2 {
		t.Fatalf("same seed produced different fingerprints: %+v vs %+v", fp, fp2)
	}
}

func TestHashFile_SinglePassBothDigests(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.bin")
	payload := []byte("malicious-looking sample payload")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	sha, md, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	wantSHA := sha256.Sum256(payload)
	wantMD := md5.Sum(payload)
	if sha != hex.EncodeToString(wantSHA[:]) {
		t.Fatalf("sha256 mismatch: %s", sha)
	}
	if md != hex.EncodeToString(wantMD[:]) {
		t.Fatalf("md5 mismatch: %s", md)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":            "report.pdf",
		"../../etc/passwd":      "passwd",
		"..\\..\\evil.exe":      "evil.exe",
		"inv<oi>ce:2024?.pdf":   "invoice2024.pdf",
		"":                      "download.bin",
		"..":                    "download.bin",
		"  spaced name.docx  ":  "spaced name.docx",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUniquePath_SuffixesCollisions(t *testing.T) {
	dir := t.TempDir()
	first := uniquePath(dir, "wallet.apk")
	if filepath.Base(first) != "wallet.apk" {
		t.Fatalf("first download should keep its name, got %s", first)
	}
	if err := os.WriteFile(first, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	second := uniquePath(dir, "wallet.apk")
	if filepath.Base(second) != "wallet_1.apk" {
		t.Fatalf("collision should suffix, got %s", second)
	}
	if err := os.WriteFile(second, []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}
	third := uniquePath(dir, "wallet.apk")
	if filepath.Base(third) != "wallet_2.apk" {
		t.Fatalf("second collision should increment, got %s", third)
	}
}
