package evaluate

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/cnclabs/ontoem/internal/nn"
	"github.com/cnclabs/ontoem/pkg/gci"
)

// prefix is everything in a row but its object.
type prefix struct {
	head, relation int64
}

func prefixOf(row gci.Row) prefix {
	if len(row) == 2 {
		return prefix{head: row[0], relation: -1}
	}
	return prefix{head: row[0], relation: row[1]}
}

// RankEvaluator ranks the object of each query row against every
// candidate put in its place. Lower module scores rank first.
type RankEvaluator struct {
	tag        gci.Tag
	candidates []int64
	queries    map[Mode][]gci.Row
	known      map[prefix]map[int64]bool
	workers    int
}

func newRankEvaluator(tag gci.Tag, candidates []int64, workers int) *RankEvaluator {
	if workers < 1 {
		workers = 1
	}
	return &RankEvaluator{
		tag:        tag,
		candidates: candidates,
		queries:    make(map[Mode][]gci.Row),
		known:      make(map[prefix]map[int64]bool),
		workers:    workers,
	}
}

func (e *RankEvaluator) addKnown(rows []gci.Row) {
	for _, row := range rows {
		p := prefixOf(row)
		if e.known[p] == nil {
			e.known[p] = make(map[int64]bool)
		}
		e.known[p][row.Object()] = true
	}
}

// Queries returns the number of rows ranked in mode.
func (e *RankEvaluator) Queries(mode Mode) int {
	return len(e.queries[mode])
}

// Evaluate ranks every query of mode. Valid mode reports raw ranks; test
// mode adds the filtered "f_" variants.
func (e *RankEvaluator) Evaluate(m nn.Module, mode Mode) (Metrics, error) {
	queries, ok := e.queries[mode]
	if !ok {
		return nil, errors.Errorf("unknown evaluation mode %q", mode)
	}
	if len(queries) == 0 {
		return nil, errors.Errorf("no %s axioms to rank", mode)
	}
	if len(e.candidates) == 0 {
		return nil, errors.New("no evaluation classes")
	}

	raw := make([]float64, len(queries))
	filtered := make([]float64, len(queries))

	workers := e.workers
	if workers > len(queries) {
		workers = len(queries)
	}
	chunkSize := (len(queries) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > len(queries) {
			end = len(queries)
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			r := e.newRanker(m, len(queries[0]))
			for q := start; q < end; q++ {
				raw[q], filtered[q] = r.rank(queries[q])
			}
		}(start, end)
	}
	wg.Wait()

	metrics := make(Metrics)
	e.summarize(metrics, string(mode)+"_", raw)
	if mode == Test {
		e.summarize(metrics, string(mode)+"_f_", filtered)
	}
	return metrics, nil
}

func (e *RankEvaluator) summarize(metrics Metrics, name string, ranks []float64) {
	n := float64(len(e.candidates))
	reciprocal := make([]float64, len(ranks))
	auc := make([]float64, len(ranks))
	for i, r := range ranks {
		reciprocal[i] = 1 / r
		auc[i] = 1
		if n > 1 {
			auc[i] = 1 - (r-1)/(n-1)
		}
	}
	metrics[name+"mr"] = stat.Mean(ranks, nil)
	metrics[name+"mrr"] = stat.Mean(reciprocal, nil)
	metrics[name+"auc"] = stat.Mean(auc, nil)
	for _, k := range HitsAt {
		hits := 0
		for _, r := range ranks {
			if r <= float64(k) {
				hits++
			}
		}
		metrics[fmt.Sprintf("%shits@%d", name, k)] = float64(hits) / float64(len(ranks))
	}
}

// ranker holds the per-worker candidate batch.
type ranker struct {
	e     *RankEvaluator
	m     nn.Module
	batch gci.Batch
}

func (e *RankEvaluator) newRanker(m nn.Module, width int) *ranker {
	flat := make([]int64, len(e.candidates)*width)
	batch := make(gci.Batch, len(e.candidates))
	for i := range batch {
		batch[i] = gci.Row(flat[i*width : (i+1)*width])
	}
	return &ranker{e: e, m: m, batch: batch}
}

// rank returns the raw and filtered rank of the object of row. Ties are
// resolved in favour of the true object.
func (r *ranker) rank(row gci.Row) (float64, float64) {
	last := len(row) - 1
	for i, c := range r.e.candidates {
		copy(r.batch[i], row)
		r.batch[i][last] = c
	}
	scores := r.m.Forward(r.batch, r.e.tag, false)
	truth := r.m.Forward(gci.Batch{row}, r.e.tag, false)[0]

	known := r.e.known[prefixOf(row)]
	raw, filtered := 1, 1
	for i, c := range r.e.candidates {
		if scores[i] >= truth {
			continue
		}
		raw++
		if !known[c] {
			filtered++
		}
	}
	return float64(raw), float64(filtered)
}
