package ordering

import (
	"math/rand"
	"testing"
)

type row struct {
	name  string
	order int
}

func (r *row) Position() int     { return r.order }
func (r *row) SetPosition(o int) { r.order = o }

func names(rows []row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.name
	}
	return out
}

func equalNames(t *testing.T, got []row, want ...string) {
	t.Helper()
	g := names(got)
	if len(g) != len(want) {
		t.Fatalf("expected %v, got %v", want, g)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, g)
		}
	}
}

func TestAppendUsesCountBeforeInsertion(t *testing.T) {
	var rows []row
	rows = Append(rows, row{name: "a", order: 99})
	rows = Append(rows, row{name: "b"})
	rows = Append(rows, row{name: "c"})

	for i, r := range rows {
		if r.order != i {
			t.Fatalf("row %q: expected order %d, got %d", r.name, i, r.order)
		}
	}
}

func TestRemoveCompacts(t *testing.T) {
	rows := []row{{"a", 0}, {"b", 1}, {"c", 2}, {"d", 3}}

	out, removed, ok := Remove(rows, 1)
	if !ok {
		t.Fatalf("expected removal to succeed")
	}
	if removed.name != "b" {
		t.Fatalf("expected to remove b, got %q", removed.name)
	}
	equalNames(t, out, "a", "c", "d")
	if !IsDense(out) {
		t.Fatalf("expected dense order after removal, got %+v", out)
	}
	if rows[2].order != 2 {
		t.Fatalf("input slice must not be modified, got %+v", rows)
	}
}

func TestRemoveOutOfRange(t *testing.T) {
	rows := []row{{"a", 0}}
	if _, _, ok := Remove(rows, 3); ok {
		t.Fatalf("expected out-of-range removal to fail")
	}
	if _, _, ok := Remove(rows, -1); ok {
		t.Fatalf("expected negative index removal to fail")
	}
}

func TestRemoveBreaksTiesStably(t *testing.T) {
	rows := []row{{"a", 5}, {"b", 2}, {"c", 2}, {"d", 0}}

	out, removed, ok := Remove(rows, 0)
	if !ok || removed.name != "d" {
		t.Fatalf("expected to remove d, got %+v (ok=%v)", removed, ok)
	}
	equalNames(t, out, "b", "c", "a")
}

func TestRemoveFunc(t *testing.T) {
	rows := []row{{"a", 0}, {"b", 1}, {"c", 2}}
	out, removed, ok := RemoveFunc(rows, func(r row) bool { return r.name == "c" })
	if !ok || removed.name != "c" {
		t.Fatalf("expected to remove c, got %+v (ok=%v)", removed, ok)
	}
	equalNames(t, out, "a", "b")

	if _, _, ok := RemoveFunc(rows, func(r row) bool { return r.name == "z" }); ok {
		t.Fatalf("expected no match")
	}
}

func TestMove(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []string
	}{
		{name: "forward", from: 0, to: 2, want: []string{"b", "c", "a", "d"}},
		{name: "backward", from: 3, to: 1, want: []string{"a", "d", "b", "c"}},
		{name: "same position", from: 2, to: 2, want: []string{"a", "b", "c", "d"}},
		{name: "clamped high", from: 0, to: 42, want: []string{"b", "c", "d", "a"}},
		{name: "clamped low", from: 9, to: -4, want: []string{"d", "a", "b", "c"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rows := []row{{"a", 0}, {"b", 1}, {"c", 2}, {"d", 3}}
			out := Move(rows, tc.from, tc.to)
			equalNames(t, out, tc.want...)
			if !IsDense(out) {
				t.Fatalf("expected dense order, got %+v", out)
			}
		})
	}
}

func TestMoveUsesMaterializedOrder(t *testing.T) {
	rows := []row{{"c", 2}, {"a", 0}, {"b", 1}}
	out := Move(rows, 0, 2)
	equalNames(t, out, "b", "c", "a")
}

func TestInsert(t *testing.T) {
	rows := []row{{"a", 0}, {"c", 1}}
	out := Insert(rows, 1, row{name: "b"})
	equalNames(t, out, "a", "b", "c")
	if !IsDense(out) {
		t.Fatalf("expected dense order, got %+v", out)
	}
}

func TestDeleteThenReinsertRestoresOrder(t *testing.T) {
	rows := []row{{"a", 0}, {"b", 1}, {"c", 2}, {"d", 3}, {"e", 4}}
	for k := range rows {
		out, removed, ok := Remove(rows, k)
		if !ok {
			t.Fatalf("remove %d failed", k)
		}
		restored := Insert(out, k, removed)
		equalNames(t, restored, "a", "b", "c", "d", "e")
	}
}

func TestDuplicatesAndDensity(t *testing.T) {
	tests := []struct {
		name      string
		rows      []row
		dense     bool
		duplicate bool
	}{
		{name: "empty", dense: true},
		{name: "dense", rows: []row{{"a", 1}, {"b", 0}}, dense: true},
		{name: "gap", rows: []row{{"a", 0}, {"b", 2}}},
		{name: "duplicate", rows: []row{{"a", 0}, {"b", 0}}, duplicate: true},
		{name: "negative", rows: []row{{"a", -1}}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := IsDense(tc.rows); got != tc.dense {
				t.Fatalf("IsDense = %v, want %v", got, tc.dense)
			}
			if got := HasDuplicates(tc.rows); got != tc.duplicate {
				t.Fatalf("HasDuplicates = %v, want %v", got, tc.duplicate)
			}
		})
	}
}

func TestRandomOperationsStayDense(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var rows []row
	for step := 0; step < 500; step++ {
		switch op := rng.Intn(3); {
		case op == 0 || len(rows) == 0:
			rows = Append(rows, row{name: "x"})
		case op == 1:
			rows, _, _ = Remove(rows, rng.Intn(len(rows)))
		default:
			rows = Move(rows, rng.Intn(len(rows)), rng.Intn(len(rows)))
		}
		if !IsDense(rows) {
			t.Fatalf("step %d: order not dense: %+v", step, rows)
		}
	}
}
