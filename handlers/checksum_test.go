package handlers

import (
	"os"
	"path/filepath"
	"testing"
)

func TestChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asset.csv")
	if err := os.WriteFile(path, []byte("id,name\n1,alpha\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sum, err := Checksum(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(sum) != checksumLength {
		t.Errorf("expected %d characters, got %q", checksumLength, sum)
	}

	again, err := Checksum(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if again != sum {
		t.Errorf("expected a stable digest, got %q then %q", sum, again)
	}
}

func TestChecksum_ChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	if err := os.WriteFile(a, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}

	sumA, err := Checksum(a)
	if err != nil {
		t.Fatal(err)
	}
	sumB, err := Checksum(b)
	if err != nil {
		t.Fatal(err)
	}
	if sumA == sumB {
		t.Errorf("expected different digests, both were %q", sumA)
	}
}

func TestChecksum_MissingFile(t *testing.T) {
	if _, err := Checksum(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected an error")
	}
}
