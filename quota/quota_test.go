package quota

import (
	"testing"
	"time"
)

// newTestLedger pins the ledger clock to a fixed instant and returns a
// setter to move it.
func newTestLedger(limit int, frac float64, costs Costs) (*Ledger, func(time.Time)) {
	l := NewLedger(limit, frac, costs)
	cur := time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)
	l.now = func() time.Time { return cur }
	l.resetAt = nextMidnight(cur)
	return l, func(t time.Time) { cur = t }
}

func TestAdmitRefusesOverrun(t *testing.T) {
	costs := Costs{Search: 100, Lookup: 1, List: 5, Insert: 50}
	cases := []struct {
		name  string
		prime int // successful list calls to record first
		op    Operation
		want  bool
	}{
		{name: "empty ledger admits search", prime: 0, op: OpSearch, want: true},
		{name: "exactly at ceiling admits", prime: 16, op: OpLookup, want: true},  // 80 used + 1 = 81 <= 90
		{name: "projected overrun refused", prime: 18, op: OpSearch, want: false}, // 90 used + 100 > 90
		{name: "cheap op at ceiling refused", prime: 18, op: OpLookup, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, _ := newTestLedger(100, 0.9, costs) // safe ceiling 90
			for i := 0; i < tc.prime; i++ {
				l.Record(OpList, true)
			}
			if got := l.Admit(tc.op); got != tc.want {
				t.Errorf("Admit(%s) with used=%d = %v, want %v", tc.op, l.Status().UsedToday, got, tc.want)
			}
		})
	}
}

func TestAdmitNeverObservesOverrun(t *testing.T) {
	l, _ := newTestLedger(1000, 0.9, DefaultCosts())
	safe := l.Status().SafeCeiling
	ops := []Operation{OpSearch, OpList, OpInsert, OpLookup}
	for i := 0; i < 200; i++ {
		op := ops[i%len(ops)]
		if l.Admit(op) {
			l.Record(op, true)
		}
		if used := l.Status().UsedToday; used > safe {
			t.Fatalf("used %d exceeded safe ceiling %d after %d iterations", used, safe, i+1)
		}
	}
}

func TestRecordChargesOnlySuccess(t *testing.T) {
	l, _ := newTestLedger(10000, 0.9, DefaultCosts())
	l.Record(OpSearch, false)
	l.Record(OpList, false)
	if used := l.Status().UsedToday; used != 0 {
		t.Errorf("used after failed calls = %d, want 0", used)
	}
	l.Record(OpSearch, true)
	if used := l.Status().UsedToday; used != 100 {
		t.Errorf("used after one successful search = %d, want 100", used)
	}
	if n := len(l.history); n != 3 {
		t.Errorf("history length = %d, want 3", n)
	}
	if l.history[0].cost != 0 || l.history[0].success {
		t.Errorf("failed call entry = %+v, want zero-cost failure", l.history[0])
	}
}

func TestDailyResetWithoutCalls(t *testing.T) {
	l, setNow := newTestLedger(10000, 0.9, DefaultCosts())
	for i := 0; i < 5; i++ {
		l.Record(OpList, true)
	}
	if used := l.Status().UsedToday; used != 25 {
		t.Fatalf("used = %d, want 25", used)
	}
	firstReset := l.Status().ResetAt

	// No admit/record traffic while the day rolls over.
	setNow(firstReset.Add(2 * time.Hour))
	l.ResetIfDue()

	st := l.Status()
	if st.UsedToday != 0 {
		t.Errorf("used after rollover = %d, want 0", st.UsedToday)
	}
	if !st.ResetAt.After(firstReset) {
		t.Errorf("resetAt did not advance: %v -> %v", firstReset, st.ResetAt)
	}
	if n := len(l.history); n != 0 {
		t.Errorf("history length after rollover = %d, want 0", n)
	}

	// A second check the same day must not reset again.
	l.Record(OpList, true)
	l.ResetIfDue()
	if used := l.Status().UsedToday; used != 5 {
		t.Errorf("used after same-day re-check = %d, want 5", used)
	}
}

func TestAdmitSelfHealsReset(t *testing.T) {
	l, setNow := newTestLedger(200, 0.9, Costs{Search: 100, Lookup: 1, List: 5, Insert: 50})
	l.Record(OpSearch, true) // used 100, safe ceiling 180
	if l.Admit(OpSearch) {
		t.Fatal("Admit(search) with 100/180 used = true, want false")
	}
	setNow(l.Status().ResetAt.Add(time.Minute))
	if !l.Admit(OpSearch) {
		t.Error("Admit(search) after day change = false, want true")
	}
	if used := l.Status().UsedToday; used != 0 {
		t.Errorf("used after healed reset = %d, want 0", used)
	}
}

func TestHistoryCapEvictsOldest(t *testing.T) {
	l, setNow := newTestLedger(1000000, 1.0, Costs{Lookup: 1})
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)
	for i := 0; i < 105; i++ {
		setNow(base.Add(time.Duration(i) * time.Second))
		l.Record(OpLookup, true)
	}
	if n := len(l.history); n != historyCap {
		t.Fatalf("history length = %d, want %d", n, historyCap)
	}
	if got := l.history[0].at; !got.Equal(base.Add(5 * time.Second)) {
		t.Errorf("oldest retained entry at %v, want %v", got, base.Add(5*time.Second))
	}
	for i := 1; i < len(l.history); i++ {
		if l.history[i].at.Before(l.history[i-1].at) {
			t.Fatalf("history out of order at index %d", i)
		}
	}
}

func TestStatusSnapshot(t *testing.T) {
	l, _ := newTestLedger(10000, 0.9, DefaultCosts())
	l.Record(OpSearch, true)
	l.Record(OpList, true)
	l.Record(OpInsert, true) // 155 used
	st := l.Status()
	if st.UsedToday != 155 {
		t.Errorf("UsedToday = %d, want 155", st.UsedToday)
	}
	if st.HardCeiling != 10000 || st.SafeCeiling != 9000 {
		t.Errorf("ceilings = %d/%d, want 10000/9000", st.HardCeiling, st.SafeCeiling)
	}
	if st.Remaining != 8845 {
		t.Errorf("Remaining = %d, want 8845", st.Remaining)
	}
	wantPct := float64(155) / 9000 * 100
	if diff := st.PercentUsed - wantPct; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("PercentUsed = %f, want %f", st.PercentUsed, wantPct)
	}
}
