package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPrintLogSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gnss.log")
	body := "START\n" +
		"0,$GPTXT,01,01,01,ANTENNA OPEN*25\n" +
		"1000,$GNVTG,0.00,T,,M,0.00,N,0.00,K,A*23\n" +
		"START\n" +
		"5,$GPTXT,01,01,01,ANTENNA OPEN*24\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	var buf bytes.Buffer
	if err := printLogSummary(&buf, path); err != nil {
		t.Fatalf("printLogSummary() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"path: " + path,
		"segments: 2",
		"sentences: 3",
		"bad_checksum: 1",
		"  GPTXT: 2",
		"  open: 1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintLogSummary_Errors(t *testing.T) {
	var buf bytes.Buffer
	if err := printLogSummary(&buf, " "); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if err := printLogSummary(&buf, filepath.Join(t.TempDir(), "missing.log")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
