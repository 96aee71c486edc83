package avea

// TransitionPlan is a finite sequence of colors linearly spaced between two
// endpoints, consumed once via Next. Sample i of n is from + (to-from)*i/n
// per channel, so the final sample is exactly the target and a single-step
// plan yields only the target. The first sample is one step past the start,
// not the start itself: the bulb is already showing the start color.
type TransitionPlan struct {
	from  Color
	to    Color
	steps int
	next  int
}

// PlanTransition builds a plan with the given number of samples. steps
// values below 1 are treated as 1.
func PlanTransition(from, to Color, steps int) *TransitionPlan {
	if steps < 1 {
		steps = 1
	}
	return &TransitionPlan{from: from, to: to, steps: steps, next: 1}
}

// Steps reports the total number of samples the plan produces.
func (p *TransitionPlan) Steps() int { return p.steps }

// Next returns the next sample, or ok=false once the plan is exhausted.
func (p *TransitionPlan) Next() (c Color, ok bool) {
	if p.next > p.steps {
		return Color{}, false
	}
	i := p.next
	p.next++
	return Color{
		White: lerpChannel(p.from.White, p.to.White, i, p.steps),
		Red:   lerpChannel(p.from.Red, p.to.Red, i, p.steps),
		Green: lerpChannel(p.from.Green, p.to.Green, i, p.steps),
		Blue:  lerpChannel(p.from.Blue, p.to.Blue, i, p.steps),
	}, true
}

// lerpChannel interpolates one channel with integer arithmetic. The delta
// product stays well inside int range (4095 * steps), so there is no
// overflow concern for any realistic plan.
func lerpChannel(from, to uint16, step, steps int) uint16 {
	return uint16(int(from) + (int(to)-int(from))*step/steps)
}
