package index

import "testing"

func defaultGate() GateConfig {
	return GateConfig{Ratio: 0.6, Floor: 0.008, MinChunks: 2}
}

func TestDecideEmptyGuides(t *testing.T) {
	d := Decide(nil, defaultGate())
	if d.Mode != ModeGuide {
		t.Error("no results must guide")
	}
}

func TestDecideTeachAtBoundary(t *testing.T) {
	// top = 0.03, cutoff = max(0.018, 0.008) = 0.018.
	// Exactly two scores reach it, which meets MinChunks.
	d := Decide([]float64{0.03, 0.018, 0.01}, defaultGate())
	if d.Mode != ModeTeach {
		t.Errorf("expected teach, got %+v", d)
	}
	if d.Supporting != 2 {
		t.Errorf("expected 2 supporting, got %d", d.Supporting)
	}
}

func TestDecideGuideBelowMinChunks(t *testing.T) {
	// Only the top score clears its own cutoff.
	d := Decide([]float64{0.03, 0.01, 0.009}, defaultGate())
	if d.Mode != ModeGuide {
		t.Errorf("expected guide, got %+v", d)
	}
	if d.Supporting != 1 {
		t.Errorf("expected 1 supporting, got %d", d.Supporting)
	}
}

func TestDecideFloorApplies(t *testing.T) {
	// Scores so low that ratio*top falls under the floor; the floor must
	// hold the cutoff up and exclude everything.
	d := Decide([]float64{0.005, 0.004}, defaultGate())
	if d.Cutoff != 0.008 {
		t.Errorf("expected floor cutoff 0.008, got %v", d.Cutoff)
	}
	if d.Mode != ModeGuide {
		t.Error("scores below the floor must guide")
	}
}

func TestDecideMonotoneInRatio(t *testing.T) {
	// Raising the ratio can only shrink the supporting set; a guide
	// verdict must never flip to teach as ratio increases.
	scores := []float64{0.030, 0.020, 0.015, 0.010, 0.005}
	prev := len(scores) + 1
	for _, ratio := range []float64{0.1, 0.3, 0.5, 0.7, 0.9, 1.0} {
		d := Decide(scores, GateConfig{Ratio: ratio, Floor: 0.008, MinChunks: 2})
		if d.Supporting > prev {
			t.Fatalf("supporting grew from %d to %d as ratio rose to %v", prev, d.Supporting, ratio)
		}
		prev = d.Supporting
	}
}

func TestDecideUnsortedInput(t *testing.T) {
	// The gate must find the top score regardless of input order.
	d := Decide([]float64{0.01, 0.03, 0.02}, defaultGate())
	if d.TopScore != 0.03 {
		t.Errorf("expected top 0.03, got %v", d.TopScore)
	}
}

func TestDecideCutoffMonotoneInTopScore(t *testing.T) {
	// Two lists with the same count of above-floor scores: the one with
	// the stronger top hit must not produce a lower effective cutoff.
	cfg := GateConfig{Ratio: 0.6, Floor: 0.008, MinChunks: 2}

	weak := Decide([]float64{0.020, 0.015, 0.012}, cfg)
	strong := Decide([]float64{0.040, 0.015, 0.012}, cfg)

	if strong.Cutoff < weak.Cutoff {
		t.Errorf("cutoff dropped from %v to %v as the top score rose", weak.Cutoff, strong.Cutoff)
	}
	if want := 0.040 * 0.6; strong.Cutoff != want {
		t.Errorf("strong cutoff = %v, want %v", strong.Cutoff, want)
	}
	if want := 0.020 * 0.6; weak.Cutoff != want {
		t.Errorf("weak cutoff = %v, want %v", weak.Cutoff, want)
	}
}
