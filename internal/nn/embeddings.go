package nn

import (
	"bufio"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// SaveEmbeddings writes one row per name in the "<n> <dim>" header format
// followed by "name v1 ... vd" lines.
func SaveEmbeddings(filename string, names []string, emb *mat.Dense) error {
	rows, dim := emb.Dims()
	if rows != len(names) {
		return errors.Errorf("%d names for %d embeddings", len(names), rows)
	}

	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to create embedding file")
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%d %d\n", rows, dim)
	for i, name := range names {
		fmt.Fprintf(w, "%s", name)
		for _, x := range emb.RawRowView(i) {
			fmt.Fprintf(w, " %.6f", x)
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}
