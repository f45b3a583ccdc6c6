// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"gvisor.dev/listguard/listguard/cmd/util"
	"gvisor.dev/listguard/listguard/flag"
	"gvisor.dev/listguard/pkg/corruption"
	"gvisor.dev/listguard/pkg/ilist"
	"gvisor.dev/listguard/pkg/log"
)

// Stress implements subcommands.Command for the "stress" command.
type Stress struct {
	rings        int
	ops          int
	entries      int
	corruptEvery int
	seed         int64
	strict       bool
	metrics      string
}

// Name implements subcommands.Command.Name.
func (*Stress) Name() string {
	return "stress"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Stress) Synopsis() string {
	return "runs random list operations on concurrent rings"
}

// Usage implements subcommands.Command.Usage.
func (*Stress) Usage() string {
	return `stress [flags] - runs -ops random insertions and removals on each of -rings
rings concurrently, sharing one validator. With -corrupt-every, every Nth
operation is a double add or a double remove that must be detected.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Stress) SetFlags(f *flag.FlagSet) {
	f.IntVar(&s.rings, "rings", 4, "number of rings, each driven by its own goroutine.")
	f.IntVar(&s.ops, "ops", 10000, "operations per ring.")
	f.IntVar(&s.entries, "entries", 32, "entries available to each ring.")
	f.IntVar(&s.corruptEvery, "corrupt-every", 0, "inject a corruption every N operations. Zero disables injection.")
	f.Int64Var(&s.seed, "seed", 0, "random seed. Zero uses the current time.")
	f.BoolVar(&s.strict, "strict", false, "exit with failure if any corruption was reported.")
	f.StringVar(&s.metrics, "metrics", "", "write the report counters to this file in the Prometheus text format.")
}

// Execute implements subcommands.Command.Execute.
func (s *Stress) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 || s.rings < 1 || s.ops < 0 || s.entries < 1 || s.corruptEvery < 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf, reporter := execArgs(args)

	params := stressParams{
		rings:        s.rings,
		ops:          s.ops,
		entries:      s.entries,
		corruptEvery: s.corruptEvery,
		seed:         s.seed,
	}
	if params.seed == 0 {
		params.seed = time.Now().UnixNano()
	}
	if !conf.Validate && params.corruptEvery > 0 {
		log.Warningf("Validation is disabled, not injecting corruption")
		params.corruptEvery = 0
	}
	log.Infof("Stress: %d rings, %d ops, seed %d", params.rings, params.ops, params.seed)

	counters := &corruption.Counters{}
	reporters := corruption.Multi{counters}
	if reporter != nil {
		reporters = append(reporters, reporter)
	}
	v := ilist.NewValidator(conf.ValidatorOptions(reporters))

	start := time.Now()
	stats, err := runStress(ctx, v, params)
	printStress(os.Stdout, stats, counters.Snapshot(), time.Since(start))
	if s.metrics != "" {
		if err := writeMetrics(s.metrics, counters.Snapshot()); err != nil {
			util.Fatalf("%v", err)
		}
	}

	if err != nil {
		if ilist.IsFatal(err) {
			log.Warningf("Stopped on fatal corruption: %v", err)
			return ExitFatalCorruption
		}
		if ctx.Err() != nil {
			util.Errorf("stress interrupted: %v", err)
			return subcommands.ExitFailure
		}
		util.Fatalf("stress failed: %v", err)
	}
	if s.strict && counters.Snapshot().Total() > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type stressParams struct {
	rings        int
	ops          int
	entries      int
	corruptEvery int
	seed         int64
}

// stressStats are the totals of a stress run.
type stressStats struct {
	ops      int
	inserts  int
	removes  int
	injected int
	detected int
}

func (s *stressStats) add(o stressStats) {
	s.ops += o.ops
	s.inserts += o.inserts
	s.removes += o.removes
	s.injected += o.injected
	s.detected += o.detected
}

// runStress drives p.rings rings concurrently through v. It stops at the
// first error, which is either a fatal corruption, an injected corruption
// that went undetected, or a broken ring.
func runStress(ctx context.Context, v *ilist.Validator, p stressParams) (stressStats, error) {
	perRing := make([]stressStats, p.rings)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.rings; i++ {
		i := i // Per-iteration copy; the module's go directive predates Go 1.22 loop semantics.
		r := &stressRing{
			v:     v,
			rng:   rand.New(rand.NewSource(p.seed + int64(i))),
			stats: &perRing[i],
		}
		g.Go(func() error {
			if err := r.run(ctx, p); err != nil {
				return fmt.Errorf("ring %d: %w", i, err)
			}
			return nil
		})
	}
	err := g.Wait()

	var total stressStats
	for _, s := range perRing {
		total.add(s)
	}
	return total, err
}

// stressRing is a list and the entries that can be put in it. It is owned by
// a single goroutine.
type stressRing struct {
	v     *ilist.Validator
	rng   *rand.Rand
	stats *stressStats

	list   ilist.List
	linked []*ilist.Entry
	free   []*ilist.Entry
}

func (r *stressRing) run(ctx context.Context, p stressParams) error {
	r.list.Init(r.v)
	r.free = make([]*ilist.Entry, p.entries)
	for i := range r.free {
		r.free[i] = &ilist.Entry{}
	}

	for i := 0; i < p.ops; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.stats.ops++
		if p.corruptEvery > 0 && (i+1)%p.corruptEvery == 0 {
			if err := r.inject(); err != nil {
				return err
			}
			continue
		}
		if err := r.step(); err != nil {
			return err
		}
	}
	return r.verify()
}

// step inserts a free entry or removes a linked one.
func (r *stressRing) step() error {
	if len(r.linked) == 0 || (len(r.free) > 0 && r.rng.Intn(2) == 0) {
		i := r.rng.Intn(len(r.free))
		e := r.free[i]
		// Removed entries are poisoned and must be reinitialized first.
		e.Init()
		var err error
		if r.rng.Intn(2) == 0 {
			err = r.list.PushFront(e)
		} else {
			err = r.list.PushBack(e)
		}
		if err != nil {
			return err
		}
		r.free = append(r.free[:i], r.free[i+1:]...)
		r.linked = append(r.linked, e)
		r.stats.inserts++
		return nil
	}

	i := r.rng.Intn(len(r.linked))
	e := r.linked[i]
	if err := r.list.Remove(e); err != nil {
		return err
	}
	r.linked = append(r.linked[:i], r.linked[i+1:]...)
	r.free = append(r.free, e)
	r.stats.removes++
	return nil
}

// inject performs an operation that must be rejected: removing a poisoned
// entry again, or adding the tail of the list after itself. The list is left
// unchanged.
func (r *stressRing) inject() error {
	var (
		err  error
		want ilist.Kind
	)
	if e := r.poisoned(); e != nil && (len(r.linked) == 0 || r.rng.Intn(2) == 0) {
		want = ilist.DoubleFree
		err = r.list.Remove(e)
	} else if len(r.linked) > 0 {
		want = ilist.DoubleAdd
		err = r.list.PushBack(r.list.Back())
	} else {
		// Nothing to corrupt yet.
		return r.step()
	}
	r.stats.injected++

	ce, ok := ilist.AsCorruption(err)
	if !ok || !ce.Has(want) {
		return fmt.Errorf("injected %v not detected: %v", want, err)
	}
	r.stats.detected++
	if ce.Fatal() {
		return err
	}
	return nil
}

// poisoned returns a removed entry that has not been reused, if any.
func (r *stressRing) poisoned() *ilist.Entry {
	for _, e := range r.free {
		if e.Poisoned() {
			return e
		}
	}
	return nil
}

// verify walks the ring in both directions and checks it against the set of
// linked entries.
func (r *stressRing) verify() error {
	want := make(map[*ilist.Entry]bool, len(r.linked))
	for _, e := range r.linked {
		want[e] = true
	}
	n := 0
	for e := r.list.Front(); e != nil; e = r.list.NextOf(e) {
		if !want[e] {
			return fmt.Errorf("unexpected entry %s in ring", ilist.Identity(e))
		}
		if e.Next().Prev() != e || e.Prev().Next() != e {
			return fmt.Errorf("broken links around %s", ilist.Identity(e))
		}
		if n++; n > len(r.linked) {
			return fmt.Errorf("ring longer than %d entries", len(r.linked))
		}
	}
	if n != len(r.linked) {
		return fmt.Errorf("ring has %d entries, want %d", n, len(r.linked))
	}
	return nil
}

func printStress(w io.Writer, st stressStats, snap corruption.Snapshot, elapsed time.Duration) {
	fmt.Fprintf(w, "operations: %d (%d inserts, %d removes) in %v\n", st.ops, st.inserts, st.removes, elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "injected:   %d (%d detected)\n", st.injected, st.detected)
	fmt.Fprintf(w, "reports:    %d (%d insert, %d delete)\n", snap.Total(), snap.Insert, snap.Delete)
	kinds := make([]string, 0, len(snap.Kinds))
	for k := range snap.Kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-15s %d\n", k+":", snap.Kinds[k])
	}
}

func writeMetrics(path string, snap corruption.Snapshot) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("error opening metrics file: %w", err)
	}
	if err := snap.WriteMetrics(f, "listguard"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
