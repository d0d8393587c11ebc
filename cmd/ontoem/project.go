package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cnclabs/ontoem/pkg/ontology"
)

var (
	projectInput         string
	projectOutput        string
	projectBidirectional bool
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Export the graph projection of an ontology",
	Long: `Project the taxonomy and existential axioms of an ontology onto a graph
and write it as "head relation tail weight" lines.

  C ⊑ D      becomes  C subClassOf D
  C ⊑ ∃R.D   becomes  C R D

Examples:
  ontoem project --input train.nt --output graph.txt
  ontoem project --input train.nt.gz --output graph.txt --bidirectional`,
	RunE: runProject,
}

func init() {
	projectCmd.Flags().StringVar(&projectInput, "input", "", "N-Triples ontology to project")
	projectCmd.Flags().StringVar(&projectOutput, "output", "", "Graph file to write")
	projectCmd.Flags().BoolVar(&projectBidirectional, "bidirectional", false, "Also emit superClassOf edges")
	projectCmd.MarkFlagRequired("input")
	projectCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(projectCmd)
}

func runProject(cmd *cobra.Command, args []string) error {
	start := time.Now()

	o, err := ontology.Load(projectInput)
	if err != nil {
		return err
	}
	triples := ontology.Project(o, projectBidirectional)

	f, err := os.Create(projectOutput)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", projectOutput)
	}
	defer f.Close()
	if err := ontology.WriteTriples(f, triples); err != nil {
		return errors.Wrapf(err, "failed to write %s", projectOutput)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Statements:\t%s\n", humanize.Comma(int64(o.Statements)))
	fmt.Fprintf(out, "Axioms:\t\t%s (skipped %s)\n", humanize.Comma(int64(len(o.Axioms))), humanize.Comma(int64(o.Skipped)))
	fmt.Fprintf(out, "Edges:\t\t%s\n", humanize.Comma(int64(len(triples))))
	fmt.Fprintf(out, "Done in %.2f seconds\n", time.Since(start).Seconds())
	return f.Close()
}
