package avea

import "testing"

func collect(p *TransitionPlan) []Color {
	var out []Color
	for {
		c, ok := p.Next()
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

func TestSingleStepPlanYieldsTarget(t *testing.T) {
	from := Color{Red: 100}
	to := Color{Blue: 4095}
	samples := collect(PlanTransition(from, to, 1))
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	if samples[0] != to {
		t.Errorf("sample = %+v, want %+v", samples[0], to)
	}
}

func TestPlanEndsExactlyOnTarget(t *testing.T) {
	from := Color{White: 17, Red: 4095, Green: 3, Blue: 2000}
	to := Color{White: 4000, Red: 0, Green: 4095, Blue: 1999}
	for _, steps := range []int{1, 2, 3, 7, 50, 255} {
		samples := collect(PlanTransition(from, to, steps))
		if len(samples) != steps {
			t.Fatalf("steps=%d: got %d samples", steps, len(samples))
		}
		if last := samples[len(samples)-1]; last != to {
			t.Errorf("steps=%d: last sample = %+v, want %+v", steps, last, to)
		}
	}
}

func TestPlanFirstSampleIsOneStepIn(t *testing.T) {
	from := Color{Red: 0}
	to := Color{Red: 1000}
	samples := collect(PlanTransition(from, to, 10))
	if samples[0].Red != 100 {
		t.Errorf("first sample red = %d, want 100", samples[0].Red)
	}
}

func TestPlanIsMonotonicPerChannel(t *testing.T) {
	samples := collect(PlanTransition(Color{Green: 4095}, Color{Green: 0}, 20))
	prev := uint16(4095)
	for i, c := range samples {
		if c.Green > prev {
			t.Fatalf("sample %d green %d rose above previous %d on a downward fade", i, c.Green, prev)
		}
		prev = c.Green
	}
}

func TestPlanIsNotRestartable(t *testing.T) {
	p := PlanTransition(Color{}, Color{Red: 10}, 2)
	collect(p)
	if _, ok := p.Next(); ok {
		t.Error("exhausted plan produced another sample")
	}
}

func TestPlanClampsStepsBelowOne(t *testing.T) {
	to := Color{Red: 42}
	samples := collect(PlanTransition(Color{}, to, 0))
	if len(samples) != 1 || samples[0] != to {
		t.Errorf("steps=0 gave %+v, want exactly the target", samples)
	}
}
