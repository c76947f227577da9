package filter

import "errors"

// ErrSingular is returned when a matrix has no inverse.
var ErrSingular = errors.New("filter: singular matrix")

// Mat2 is a 2x2 matrix, row major.
type Mat2 [2][2]float64

// Vec2 is a 2x1 column vector.
type Vec2 [2]float64

// Identity2 returns the 2x2 identity.
func Identity2() Mat2 {
	return Mat2{{1, 0}, {0, 1}}
}

// Diag2 returns a diagonal matrix.
func Diag2(a, b float64) Mat2 {
	return Mat2{{a, 0}, {0, b}}
}

func (m Mat2) Add(o Mat2) Mat2 {
	return Mat2{
		{m[0][0] + o[0][0], m[0][1] + o[0][1]},
		{m[1][0] + o[1][0], m[1][1] + o[1][1]},
	}
}

func (m Mat2) Sub(o Mat2) Mat2 {
	return Mat2{
		{m[0][0] - o[0][0], m[0][1] - o[0][1]},
		{m[1][0] - o[1][0], m[1][1] - o[1][1]},
	}
}

func (m Mat2) Mul(o Mat2) Mat2 {
	var r Mat2
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			r[i][j] = m[i][0]*o[0][j] + m[i][1]*o[1][j]
		}
	}
	return r
}

// MulVec returns m * v.
func (m Mat2) MulVec(v Vec2) Vec2 {
	return Vec2{
		m[0][0]*v[0] + m[0][1]*v[1],
		m[1][0]*v[0] + m[1][1]*v[1],
	}
}

// T returns the transpose.
func (m Mat2) T() Mat2 {
	return Mat2{{m[0][0], m[1][0]}, {m[0][1], m[1][1]}}
}

// Inverse returns m^-1, or ErrSingular.
func (m Mat2) Inverse() (Mat2, error) {
	a, b, c, d := m[0][0], m[0][1], m[1][0], m[1][1]
	det := a*d - b*c
	if det == 0 {
		return Mat2{}, ErrSingular
	}
	inv := 1 / det
	return Mat2{{d * inv, -b * inv}, {-c * inv, a * inv}}, nil
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v[0] + o[0], v[1] + o[1]} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v[0] - o[0], v[1] - o[1]} }

// Attitude is a Kalman filter over [pitch, roll]. Gyro rates drive the
// prediction and accelerometer angles correct it.
type Attitude struct {
	X Vec2 // [pitch, roll], rad

	P Mat2 // estimate covariance
	Q Mat2 // process noise
	R Mat2 // measurement noise

	dt float64
}

// NewAttitude returns a filter stepping dt seconds per Predict. q is the
// per-step gyro noise and r the accelerometer angle noise.
func NewAttitude(dt, q, r float64) *Attitude {
	return &Attitude{
		P:  Identity2(),
		Q:  Diag2(q, q),
		R:  Diag2(r, r),
		dt: dt,
	}
}

// Predict integrates the body rates over one step.
func (k *Attitude) Predict(pitchRate, rollRate float64) {
	k.X = k.X.Add(Vec2{pitchRate * k.dt, rollRate * k.dt})
	// F is the identity, so P = F P F^T + Q reduces to P + Q
	k.P = k.P.Add(k.Q)
}

// Update corrects the state with accelerometer angles. H is the identity.
func (k *Attitude) Update(pitch, roll float64) error {
	y := Vec2{pitch, roll}.Sub(k.X)
	s := k.P.Add(k.R)
	sInv, err := s.Inverse()
	if err != nil {
		return err
	}
	gain := k.P.Mul(sInv)
	k.X = k.X.Add(gain.MulVec(y))
	k.P = Identity2().Sub(gain).Mul(k.P)
	return nil
}

// Angles returns the current pitch and roll estimate.
func (k *Attitude) Angles() (pitch, roll float64) {
	return k.X[0], k.X[1]
}
