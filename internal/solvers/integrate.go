package solvers

import (
	"context"
	"math"
	"sort"

	"github.com/ahoven/gridyn/internal/dae"
	"github.com/ahoven/gridyn/internal/perturb"
)

// Integrate drives a stepper across the problem's time span, landing
// exactly on every mandatory stop time and firing the matching
// triggers before resuming. commit, when non-nil, is invoked once per
// accepted step so the evaluator can snapshot its inner variables.
func Integrate(ctx context.Context, p *dae.Problem, st Stepper, set *perturb.Set,
	opts Options, commit func(x []float64, t float64)) (*Trajectory, error) {

	t0, t1 := p.TSpan[0], p.TSpan[1]

	// Stops strictly inside the span, sorted and deduplicated. The
	// 0.0 sentinel of an empty set falls outside (t0, t1) and is
	// dropped here by construction.
	stops := make([]float64, 0, set.Len())
	for _, ts := range set.StopTimes() {
		if ts > t0+perturb.StopEps && ts < t1-perturb.StopEps {
			stops = append(stops, ts)
		}
	}
	sort.Float64s(stops)
	set.Arm()

	tr := &Trajectory{}
	x := p.X0.Clone()
	t := t0
	tr.Times = append(tr.Times, t)
	tr.States = append(tr.States, x.Clone())
	if commit != nil {
		commit(x, t)
	}

	nextStop := 0
	for t < t1-perturb.StopEps {
		select {
		case <-ctx.Done():
			return tr, ctx.Err()
		default:
		}

		target := t1
		if nextStop < len(stops) {
			target = stops[nextStop]
		}

		dt := math.Min(opts.Dt, target-t)
		if dt < opts.MinDt {
			return tr, ErrStepTooSmall
		}

		z, its, err := st.Step(p, x, t, dt)
		tr.NewtonIters += its
		if err != nil {
			return tr, err
		}
		if !z.IsValid() {
			return tr, ErrInvalidState
		}

		x = z
		t += dt
		tr.StepsTaken++
		if commit != nil {
			commit(x, t)
		}
		tr.Times = append(tr.Times, t)
		tr.States = append(tr.States, x.Clone())

		if nextStop < len(stops) && math.Abs(t-stops[nextStop]) <= perturb.StopEps {
			fired, err := set.FireAt(stops[nextStop])
			if err != nil {
				return tr, err
			}
			tr.EventsFired += fired
			nextStop++
		}
	}

	return tr, nil
}
