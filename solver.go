package rheobench

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// curveFunc evaluates a model at x for parameters p.
type curveFunc func(p []float64, x float64) float64

// lmSolution is the result of a bounded Levenberg-Marquardt run.
type lmSolution struct {
	params     []float64
	ssr        float64
	iterations int
	covariance [][]float64
}

const (
	lmInitialDamping = 1e-3
	lmMaxDamping     = 1e16
	lmMinDamping     = 1e-12
)

// levenbergMarquardt minimises Σ(y - f(p, x))² subject to lower <= p <= upper.
//
// Each trial step solves (JᵀJ + λ·diag(JᵀJ))·δ = Jᵀr and is projected onto the
// box. Parameters sitting on a bound with the gradient pointing outward are
// frozen for the step. The run converges when the relative SSR reduction or
// the step falls below tol, or when no damping yields a downhill step
// (a bounded stationary point). Returns ErrNoConvergence after maxIter
// iterations or on a non-finite cost.
func levenbergMarquardt(f curveFunc, x, y, p0, lower, upper []float64, maxIter int, tol float64) (lmSolution, error) {
	k, m := len(p0), len(x)

	p := make([]float64, k)
	for i := range p0 {
		p[i] = clamp(p0[i], lower[i], upper[i])
	}
	r := make([]float64, m)
	cost := residuals(f, p, x, y, r)
	if !isFinite(cost) {
		return lmSolution{}, fmt.Errorf("%w: non-finite cost at initial guess %v", ErrNoConvergence, p)
	}

	lambda := lmInitialDamping
	trial := make([]float64, k)
	rt := make([]float64, m)

	for iter := 1; iter <= maxIter; iter++ {
		jac := jacobian(f, p, x, lower, upper)
		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		var grad mat.VecDense
		grad.MulVec(jac.T(), mat.NewVecDense(m, r))

		frozen := make([]bool, k)
		for i := 0; i < k; i++ {
			g := grad.AtVec(i)
			frozen[i] = (p[i] <= lower[i] && g < 0) || (p[i] >= upper[i] && g > 0)
		}

		improved := false
		for lambda <= lmMaxDamping {
			a := mat.NewDense(k, k, nil)
			b := mat.NewVecDense(k, nil)
			for i := 0; i < k; i++ {
				if frozen[i] {
					a.Set(i, i, 1)
					continue
				}
				b.SetVec(i, grad.AtVec(i))
				for j := 0; j < k; j++ {
					if !frozen[j] {
						a.Set(i, j, jtj.At(i, j))
					}
				}
				d := jtj.At(i, i)
				if d <= 0 {
					d = 1
				}
				a.Set(i, i, jtj.At(i, i)+lambda*d)
			}

			var delta mat.VecDense
			if err := delta.SolveVec(a, b); err != nil {
				lambda *= 10
				continue
			}

			small := true
			for i := 0; i < k; i++ {
				trial[i] = clamp(p[i]+delta.AtVec(i), lower[i], upper[i])
				if math.Abs(trial[i]-p[i]) > tol*(math.Abs(p[i])+tol) {
					small = false
				}
			}
			ct := residuals(f, trial, x, y, rt)
			if isFinite(ct) && ct < cost {
				reduction := (cost - ct) / math.Max(cost, math.SmallestNonzeroFloat64)
				copy(p, trial)
				copy(r, rt)
				cost = ct
				lambda = math.Max(lambda/10, lmMinDamping)
				improved = true
				if reduction < tol || small {
					return finishLM(f, p, x, lower, upper, cost, iter), nil
				}
				break
			}
			lambda *= 10
		}

		if !improved {
			return finishLM(f, p, x, lower, upper, cost, iter), nil
		}
	}

	return lmSolution{}, fmt.Errorf("%w: no convergence after %d iterations (ssr=%g)", ErrNoConvergence, maxIter, cost)
}

// finishLM packages the solution and its covariance s²·(JᵀJ)⁻¹ when the
// system has residual degrees of freedom and JᵀJ is invertible.
func finishLM(f curveFunc, p, x, lower, upper []float64, cost float64, iter int) lmSolution {
	sol := lmSolution{
		params:     append([]float64(nil), p...),
		ssr:        cost,
		iterations: iter,
	}

	k, m := len(p), len(x)
	if m <= k {
		return sol
	}
	jac := jacobian(f, p, x, lower, upper)
	var jtj, inv mat.Dense
	jtj.Mul(jac.T(), jac)
	if err := inv.Inverse(&jtj); err != nil {
		return sol
	}
	s2 := cost / float64(m-k)
	sol.covariance = make([][]float64, k)
	for i := 0; i < k; i++ {
		sol.covariance[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			sol.covariance[i][j] = s2 * inv.At(i, j)
		}
	}
	return sol
}

// residuals fills r with y - f(p, x) and returns the sum of squares.
func residuals(f curveFunc, p, x, y, r []float64) float64 {
	ss := 0.0
	for i := range x {
		r[i] = y[i] - f(p, x[i])
		ss += r[i] * r[i]
	}
	return ss
}

// jacobian returns ∂f/∂p by forward differences, stepping inward at an upper bound.
func jacobian(f curveFunc, p, x, lower, upper []float64) *mat.Dense {
	k, m := len(p), len(x)
	jac := mat.NewDense(m, k, nil)
	shifted := append([]float64(nil), p...)
	for j := 0; j < k; j++ {
		h := 1e-7 * math.Max(math.Abs(p[j]), 1e-6)
		if p[j]+h > upper[j] {
			h = -h
		}
		shifted[j] = p[j] + h
		for i := 0; i < m; i++ {
			jac.Set(i, j, (f(shifted, x[i])-f(p, x[i]))/h)
		}
		shifted[j] = p[j]
	}
	return jac
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
