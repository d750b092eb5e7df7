package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	persistlog "voxelbend.ai/internal/persistence/log"
	"voxelbend.ai/internal/protocol"
)

func main() {
	var (
		dir       = flag.String("dir", "./data/journal", "journal dir containing events-*.jsonl.zst")
		partition = flag.String("partition", "", "only events of this partition (optional)")
		typ       = flag.String("type", "", "only events of this type (optional)")
		fromTick  = flag.Uint64("from_tick", 0, "first tick to include (optional)")
		toTick    = flag.Uint64("to_tick", 0, "last tick to include, inclusive (optional)")
		printEvs  = flag.Bool("print", false, "print matching events as JSON lines")
		verify    = flag.Bool("verify", false, "fail on lifecycle violations (double destroy, double revert)")
	)
	flag.Parse()

	if *typ != "" && !protocol.IsKnownEventType(*typ) {
		fmt.Fprintln(os.Stderr, "unknown event type:", *typ)
		os.Exit(2)
	}
	files, err := persistlog.Files(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list journal:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no journal files found in", *dir)
		os.Exit(1)
	}

	f := filter{partition: *partition, typ: *typ, fromTick: *fromTick, toTick: *toTick}
	var out io.Writer
	if *printEvs {
		out = os.Stdout
	}
	rep, err := scan(files, f, out)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	rep.write(os.Stdout)
	if *verify && len(rep.Violations) > 0 {
		os.Exit(1)
	}
}

type filter struct {
	partition string
	typ       string
	fromTick  uint64
	toTick    uint64
}

func (f filter) match(ev protocol.Event) bool {
	if f.partition != "" && ev.Partition != f.partition {
		return false
	}
	if f.typ != "" && ev.Type != f.typ {
		return false
	}
	if ev.Tick < f.fromTick {
		return false
	}
	return f.toTick == 0 || ev.Tick <= f.toTick
}

type report struct {
	Files    int
	Matched  int
	ByType   map[string]int
	ByReason map[string]int
	// Open counts instances created but never destroyed, Pending mutations
	// applied but never reverted, both within the matched events.
	Open       int
	Pending    int
	Violations []string
}

// scan reads files in order and tallies the events f matches, writing each
// one to out when it is non-nil. Lifecycle checks are keyed by partition.
func scan(files []string, f filter, out io.Writer) (report, error) {
	rep := report{ByType: map[string]int{}, ByReason: map[string]int{}}
	created := map[string]bool{}
	destroyed := map[string]bool{}
	applied := map[string]bool{}
	reverted := map[string]bool{}
	var enc *json.Encoder
	if out != nil {
		enc = json.NewEncoder(out)
	}

	for _, path := range files {
		rep.Files++
		err := persistlog.ReadEvents(path, func(ev protocol.Event) error {
			if !f.match(ev) {
				return nil
			}
			rep.Matched++
			rep.ByType[ev.Type]++
			if enc != nil {
				if err := enc.Encode(ev); err != nil {
					return err
				}
			}
			switch ev.Type {
			case protocol.EventInstanceCreated:
				created[ev.Partition+"/"+ev.Instance] = true
			case protocol.EventInstanceDestroyed:
				key := ev.Partition + "/" + ev.Instance
				rep.ByReason[ev.Reason]++
				if destroyed[key] {
					rep.Violations = append(rep.Violations, fmt.Sprintf("tick %d: instance %s destroyed twice", ev.Tick, key))
				}
				destroyed[key] = true
			case protocol.EventMutationApplied:
				applied[ev.Partition+"/"+ev.Mutation] = true
			case protocol.EventMutationReverted:
				key := ev.Partition + "/" + ev.Mutation
				if reverted[key] {
					rep.Violations = append(rep.Violations, fmt.Sprintf("tick %d: mutation %s reverted twice", ev.Tick, key))
				}
				reverted[key] = true
			}
			return nil
		})
		if err != nil {
			return rep, err
		}
	}
	for k := range created {
		if !destroyed[k] {
			rep.Open++
		}
	}
	for k := range applied {
		if !reverted[k] {
			rep.Pending++
		}
	}
	return rep, nil
}

func (r report) write(w io.Writer) {
	fmt.Fprintf(w, "files=%d events=%d open_instances=%d pending_mutations=%d\n", r.Files, r.Matched, r.Open, r.Pending)
	writeCounts(w, "type", r.ByType)
	writeCounts(w, "reason", r.ByReason)
	for _, v := range r.Violations {
		fmt.Fprintln(w, "violation:", v)
	}
}

func writeCounts(w io.Writer, label string, m map[string]int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s %-20s %d\n", label, strings.TrimSpace(k), m[k])
	}
}
