// Package report renders test metrics as markdown tables.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"github.com/cnclabs/ontoem/internal/evaluate"
)

// Header is the column row of both tables.
var Header = []string{"Property", "MR", "MRR", "AUC", "Hits@1", "Hits@3", "Hits@10", "Hits@50", "Hits@100"}

// Keys returns the metric keys of one table, in column order. Filtered
// tables read the "f_" variants.
func Keys(mode evaluate.Mode, filtered bool) []string {
	prefix := string(mode) + "_"
	if filtered {
		prefix += "f_"
	}
	keys := []string{prefix + "mr", prefix + "mrr", prefix + "auc"}
	for _, k := range evaluate.HitsAt {
		keys = append(keys, fmt.Sprintf("%shits@%d", prefix, k))
	}
	return keys
}

// Row formats the "Overall" row of one table. Mean rank is truncated to
// an integer; every other metric gets four decimals.
func Row(metrics evaluate.Metrics, keys []string) ([]string, error) {
	row := []string{"Overall"}
	for _, k := range keys {
		v, ok := metrics[k]
		if !ok {
			return nil, errors.Errorf("metric %s missing", k)
		}
		if strings.HasSuffix(k, "_mr") {
			row = append(row, fmt.Sprintf("%d", int(v)))
		} else {
			row = append(row, fmt.Sprintf("%.4f", v))
		}
	}
	return row, nil
}

// Print writes the raw and the filtered table of the test metrics.
func Print(w io.Writer, metrics evaluate.Metrics) error {
	for i, filtered := range []bool{false, true} {
		row, err := Row(metrics, Keys(evaluate.Test, filtered))
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprint(w, "\n\n")
		}
		table := tablewriter.NewWriter(w)
		table.SetHeader(Header)
		table.SetAutoFormatHeaders(false)
		table.SetAutoWrapText(false)
		table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
		table.SetCenterSeparator("|")
		table.Append(row)
		table.Render()
	}
	return nil
}
