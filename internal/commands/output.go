package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func watts(w float64) string {
	return humanize.FormatFloat("#,###.#", w) + " W"
}

func btu(b float64) string {
	return humanize.FormatFloat("#,###.", b) + " BTU/hr"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func placed(rackID string, position int) string {
	if rackID == "" || position == 0 {
		return "-"
	}
	return fmt.Sprintf("%s@U%d", rackID, position)
}
