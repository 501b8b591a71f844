package record

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/georgeberry/thresholds/internal/cascade"
	"github.com/georgeberry/thresholds/internal/equation"
	"github.com/georgeberry/thresholds/internal/population"
	"github.com/georgeberry/thresholds/internal/topology"
)

func exposure(active int) *population.Exposure {
	return &population.Exposure{Value: float64(active), Active: active}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		node population.NodeState
		want *int
	}{
		{"never activated", population.NodeState{Before: exposure(2)}, nil},
		{"seed", population.NodeState{Activated: true, Seed: true}, nil},
		{"zero exposure at activation", population.NodeState{Activated: true, After: exposure(0)}, ptr(1)},
		{"never seen inactive, one active", population.NodeState{Activated: true, After: exposure(1)}, ptr(1)},
		{"never seen inactive, two active", population.NodeState{Activated: true, After: exposure(2)}, ptr(0)},
		{"jump of one", population.NodeState{Activated: true, Before: exposure(2), After: exposure(3)}, ptr(1)},
		{"jump of two", population.NodeState{Activated: true, Before: exposure(1), After: exposure(3)}, ptr(0)},
		{"no jump", population.NodeState{Activated: true, Before: exposure(2), After: exposure(2)}, ptr(0)},
		{
			"fractional classifies on counts",
			population.NodeState{
				Activated: true,
				Before:    &population.Exposure{Value: 0.25, Active: 1},
				After:     &population.Exposure{Value: 0.5, Active: 2},
			},
			ptr(1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.node)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("Classify() = %d, want nil", *got)
			case tt.want != nil && got == nil:
				t.Errorf("Classify() = nil, want %d", *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Errorf("Classify() = %d, want %d", *got, *tt.want)
			}
		})
	}
}

func TestClassify_Idempotent(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("classifying twice gives the same answer", prop.ForAll(
		func(activated, seen bool, before, jump int) bool {
			n := population.NodeState{Activated: activated}
			if seen {
				n.Before = exposure(before)
			}
			if activated {
				n.After = exposure(before + jump)
			}
			a, b := Classify(n), Classify(n)
			if (a == nil) != (b == nil) {
				return false
			}
			return a == nil || *a == *b
		},
		gen.Bool(),
		gen.Bool(),
		gen.IntRange(0, 20),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}

// cycleRun runs the four node cycle scenario and emits its records.
func cycleRun(t *testing.T, seed uint64) []Record {
	t.Helper()
	g := topology.FromEdges(nil, [][2]int64{{0, 1}, {1, 2}, {2, 3}, {3, 0}})
	draws := make([]equation.Draw, 4)
	for i := range draws {
		draws[i] = equation.Draw{Threshold: 1, Values: map[string]float64{"constant": 1}}
	}
	p, err := population.Label(g, draws)
	if err != nil {
		t.Fatalf("Label() error = %v", err)
	}
	if err := p.Seed(0); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if _, err := cascade.Run(context.Background(), cascade.ModelInteger, p, cascade.Params{}, rand.New(rand.NewPCG(seed, seed)), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return Emit("run-1", p, cascade.ModelInteger)
}

func TestEmit_CycleScenario(t *testing.T) {
	for seed := range uint64(10) {
		recs := cycleRun(t, seed)
		if len(recs) != 4 {
			t.Fatalf("Emit() returned %d records", len(recs))
		}

		if recs[0].Observed != nil || recs[0].ActivationOrder != nil || !recs[0].Seed {
			t.Errorf("seed record = %+v", recs[0])
		}
		for _, i := range []int{1, 3} {
			r := recs[i]
			if r.Observed == nil || *r.Observed != 1 || r.Before != nil || *r.After != 1 {
				t.Errorf("node %d record = %+v, want observed", i, r)
			}
		}
		r2 := recs[2]
		want := 0
		if *r2.After == 1 {
			want = 1
		}
		if r2.Observed == nil || *r2.Observed != want {
			t.Errorf("node 2 after=%v observed=%v, want %d", *r2.After, r2.Observed, want)
		}
		for _, r := range recs {
			if r.Threshold == nil || *r.Threshold != 1 {
				t.Errorf("node %d threshold = %v", r.Node, r.Threshold)
			}
			if r.CriticalExposure != nil {
				t.Errorf("threshold model emitted critical exposure for node %d", r.Node)
			}
			if r.RunID != "run-1" {
				t.Errorf("run id = %q", r.RunID)
			}
		}
	}
}

func TestEmit_CascadeOmitsThreshold(t *testing.T) {
	g := topology.FromEdges(nil, [][2]int64{{0, 1}})
	p := population.Unlabeled(g)
	if err := p.Seed(0); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if _, err := cascade.Run(context.Background(), cascade.ModelPush, p, cascade.Params{ActivationProb: 1}, rand.New(rand.NewPCG(1, 1)), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	recs := Emit("r", p, cascade.ModelPush)
	if recs[1].Threshold != nil {
		t.Error("cascade record has a threshold")
	}
	if recs[1].CriticalExposure == nil || *recs[1].CriticalExposure != 1 {
		t.Errorf("critical exposure = %v, want 1", recs[1].CriticalExposure)
	}
}

func TestSummarize(t *testing.T) {
	recs := cycleRun(t, 3)
	s := Summarize(recs)
	if s.Nodes != 4 || s.Activated != 4 || s.Seeds != 1 {
		t.Errorf("Summarize() = %+v", s)
	}
	if s.Observed+s.Unobserved != 3 {
		t.Errorf("classified %d nodes, want 3", s.Observed+s.Unobserved)
	}
	if share := s.ObservedShare(); share < 2.0/3.0 {
		t.Errorf("ObservedShare() = %v, want at least 2/3", share)
	}
	if (Summary{}).ObservedShare() != 0 {
		t.Error("empty summary share is not 0")
	}
}

func TestCSVWriter(t *testing.T) {
	recs := []Record{
		{RunID: "a", Node: 0, Activated: true, Seed: true, Degree: 0.5, Covariates: map[string]float64{"var1": 1.25}},
		{RunID: "a", Node: 1, Activated: true, Threshold: ptr(1.5), Before: ptr(1.0), After: ptr(2.0),
			Degree: 0.5, Observed: ptr(1), ActivationOrder: ptr(1), Visits: 2},
	}

	var buf bytes.Buffer
	w := NewCSVWriter(&buf, []string{"var1"})
	if err := w.Write(recs); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	want := strings.Join([]string{
		"run_id,node,activated,threshold,before_activation_alters,after_activation_alters,degree,observed,activation_order,seed,critical_exposure,visits,var1",
		"a,0,1,,,,0.5,,,1,,0,1.25",
		"a,1,1,1.5,1,2,0.5,1,1,0,,2,",
		"",
	}, "\n")
	if buf.String() != want {
		t.Errorf("csv output:\n%s\nwant:\n%s", buf.String(), want)
	}

	buf.Reset()
	w = NewCSVWriter(&buf, nil)
	w.SkipHeader()
	_ = w.Write(recs[:1])
	_ = w.Flush()
	if strings.HasPrefix(buf.String(), "run_id") {
		t.Error("SkipHeader() still wrote the header")
	}
}

func TestJSONLWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf)
	if err := w.Write([]Record{{RunID: "a", Node: 3}, {RunID: "a", Node: 4, Observed: ptr(0)}}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 0 is not json: %v", err)
	}
	if v, ok := first["observed"]; !ok || v != nil {
		t.Errorf("observed = %v, want explicit null", v)
	}
	if !strings.Contains(lines[1], `"observed":0`) {
		t.Errorf("line 1 = %s", lines[1])
	}
}
