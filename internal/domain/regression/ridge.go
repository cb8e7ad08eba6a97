package regression

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultRidgeAlpha is the L2 penalty used by the catalogue.
const DefaultRidgeAlpha = 1.0

// Ridge is L2-penalized least squares with an unpenalized intercept.
type Ridge struct {
	alpha     float64
	coef      []float64
	intercept float64
}

// NewRidge creates a ridge model with penalty alpha.
func NewRidge(alpha float64) *Ridge {
	return &Ridge{alpha: alpha}
}

// Coefficients returns the fitted weights and intercept.
func (r *Ridge) Coefficients() ([]float64, float64) {
	return append([]float64(nil), r.coef...), r.intercept
}

// Fit centers X and y, then solves (XcᵀXc + αI)β = Xcᵀyc.
func (r *Ridge) Fit(X mat.Matrix, y []float64) error {
	n, p, err := checkTraining(X, y)
	if err != nil {
		return err
	}

	means := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, X)
		means[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(y, nil)

	xc := mat.NewDense(n, p, nil)
	xc.Apply(func(i, j int, v float64) float64 { return v - means[j] }, X)
	yc := make([]float64, n)
	copy(yc, y)
	floats.AddConst(-yMean, yc)

	gram := mat.NewSymDense(p, nil)
	gram.SymOuterK(1, xc.T())
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+r.alpha)
	}
	rhs := mat.NewVecDense(p, nil)
	rhs.MulVec(xc.T(), mat.NewVecDense(n, yc))

	beta := mat.NewVecDense(p, nil)
	var chol mat.Cholesky
	if ok := chol.Factorize(gram); ok {
		if err := chol.SolveVecTo(beta, rhs); err != nil {
			return fmt.Errorf("%w: %v", ErrSingular, err)
		}
	} else if err := beta.SolveVec(gram, rhs); err != nil {
		return fmt.Errorf("%w: %v", ErrSingular, err)
	}

	r.coef = make([]float64, p)
	for j := range r.coef {
		r.coef[j] = beta.AtVec(j)
	}
	r.intercept = yMean - floats.Dot(means, r.coef)
	return nil
}

// Predict returns Xβ + intercept.
func (r *Ridge) Predict(X mat.Matrix) ([]float64, error) {
	if r.coef == nil {
		return nil, ErrNotFitted
	}
	n, p := X.Dims()
	if p != len(r.coef) {
		return nil, fmt.Errorf("%w: %d features, model has %d", ErrDimensionMismatch, p, len(r.coef))
	}
	if n == 0 {
		return []float64{}, nil
	}
	out := mat.NewVecDense(n, nil)
	out.MulVec(X, mat.NewVecDense(p, r.coef))
	preds := make([]float64, n)
	for i := range preds {
		preds[i] = out.AtVec(i) + r.intercept
	}
	return preds, nil
}
