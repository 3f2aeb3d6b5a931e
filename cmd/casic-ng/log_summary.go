package main

import (
	"fmt"
	"io"
	"strings"

	"casic-ng/internal/nmealog"
)

func printLogSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	recs, err := nmealog.ReadFile(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "path: %s\n", path)
	nmealog.Summarize(recs).Print(w)
	return nil
}
