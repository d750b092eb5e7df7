package main

import (
	"bytes"
	"strings"
	"testing"

	persistlog "voxelbend.ai/internal/persistence/log"
	"voxelbend.ai/internal/protocol"
)

func writeJournal(t *testing.T, evs ...protocol.Event) []string {
	t.Helper()
	dir := t.TempDir()
	w := persistlog.NewJSONLZstdWriter(dir, persistlog.JournalPrefix)
	for _, ev := range evs {
		if err := w.Write(ev); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	files, err := persistlog.Files(dir)
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	return files
}

func ev(partition, typ string, tick uint64, instance, mutation, reason string) protocol.Event {
	e := protocol.NewEvent(typ, tick)
	e.Partition = partition
	e.Instance = instance
	e.Mutation = mutation
	e.Reason = reason
	return e
}

func TestScan_CountsAndLifecycle(t *testing.T) {
	files := writeJournal(t,
		ev("a", protocol.EventInstanceCreated, 1, "i1", "", ""),
		ev("a", protocol.EventMutationApplied, 1, "i1", "m1", ""),
		ev("a", protocol.EventInstanceCreated, 2, "i2", "", ""),
		ev("b", protocol.EventInstanceCreated, 2, "i1", "", ""),
		ev("a", protocol.EventMutationReverted, 9, "i1", "m1", ""),
		ev("a", protocol.EventInstanceDestroyed, 9, "i1", "", protocol.ReasonPolicy),
		ev("b", protocol.EventInstanceDestroyed, 9, "i1", "", protocol.ReasonHit),
	)
	var out bytes.Buffer
	rep, err := scan(files, filter{}, &out)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if rep.Matched != 7 || rep.ByType[protocol.EventInstanceCreated] != 3 {
		t.Fatalf("report: %+v", rep)
	}
	if rep.Open != 1 || rep.Pending != 0 || len(rep.Violations) != 0 {
		t.Fatalf("lifecycle: open=%d pending=%d violations=%v", rep.Open, rep.Pending, rep.Violations)
	}
	if rep.ByReason[protocol.ReasonPolicy] != 1 || rep.ByReason[protocol.ReasonHit] != 1 {
		t.Fatalf("reasons: %v", rep.ByReason)
	}
	if n := strings.Count(out.String(), "\n"); n != 7 {
		t.Fatalf("printed %d lines", n)
	}
}

func TestScan_FilterAndViolations(t *testing.T) {
	files := writeJournal(t,
		ev("a", protocol.EventInstanceDestroyed, 3, "i1", "", protocol.ReasonHit),
		ev("a", protocol.EventInstanceDestroyed, 4, "i1", "", protocol.ReasonHit),
		ev("a", protocol.EventMutationReverted, 5, "", "m1", ""),
		ev("a", protocol.EventMutationReverted, 6, "", "m1", ""),
		ev("b", protocol.EventInstanceDestroyed, 5, "i1", "", protocol.ReasonHit),
	)
	rep, err := scan(files, filter{partition: "a", fromTick: 4}, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if rep.Matched != 3 {
		t.Fatalf("matched=%d", rep.Matched)
	}
	if len(rep.Violations) != 1 || !strings.Contains(rep.Violations[0], "m1 reverted twice") {
		t.Fatalf("violations: %v", rep.Violations)
	}

	rep, err = scan(files, filter{partition: "a", typ: protocol.EventInstanceDestroyed}, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if rep.Matched != 2 || len(rep.Violations) != 1 || !strings.Contains(rep.Violations[0], "a/i1 destroyed twice") {
		t.Fatalf("report: %+v", rep)
	}

	var buf bytes.Buffer
	rep.write(&buf)
	if !strings.Contains(buf.String(), "violation: tick 4: instance a/i1 destroyed twice") {
		t.Fatalf("output:\n%s", buf.String())
	}
}
