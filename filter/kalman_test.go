package filter

import (
	"errors"
	"math"
	"testing"
)

func TestMat2(t *testing.T) {
	m := Mat2{{4, 7}, {2, 6}}
	inv, err := m.Inverse()
	if err != nil {
		t.Fatal(err)
	}
	got := m.Mul(inv)
	id := Identity2()
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if math.Abs(got[i][j]-id[i][j]) > 1e-12 {
				t.Fatalf("m * m^-1 = %v", got)
			}
		}
	}
	if tr := m.T(); tr != (Mat2{{4, 2}, {7, 6}}) {
		t.Fatalf("T = %v", tr)
	}
	if v := m.MulVec(Vec2{1, -1}); v != (Vec2{-3, -4}) {
		t.Fatalf("MulVec = %v", v)
	}
	if _, err := (Mat2{{1, 2}, {2, 4}}).Inverse(); !errors.Is(err, ErrSingular) {
		t.Fatalf("Inverse of singular = %v", err)
	}
}

func TestAttitudeConvergesToAccel(t *testing.T) {
	k := NewAttitude(0.01, 0.01, 0.5)
	for i := 0; i < 200; i++ {
		k.Predict(0, 0)
		if err := k.Update(0.3, -0.2); err != nil {
			t.Fatal(err)
		}
	}
	pitch, roll := k.Angles()
	if math.Abs(pitch-0.3) > 1e-3 || math.Abs(roll+0.2) > 1e-3 {
		t.Fatalf("angles = %v, %v", pitch, roll)
	}
}

func TestAttitudeFollowsGyroBetweenUpdates(t *testing.T) {
	k := NewAttitude(0.01, 0.01, 0.5)
	for i := 0; i < 100; i++ {
		k.Predict(1, -2)
	}
	pitch, roll := k.Angles()
	if math.Abs(pitch-1) > 1e-9 || math.Abs(roll+2) > 1e-9 {
		t.Fatalf("angles = %v, %v", pitch, roll)
	}
}

func TestAttitudeSmoothsNoise(t *testing.T) {
	k := NewAttitude(0.01, 0.01, 0.5)
	var maxErr float64
	for i := 0; i < 400; i++ {
		noise := 0.2
		if i%2 == 1 {
			noise = -0.2
		}
		k.Predict(0, 0)
		k.Update(noise, 0)
		if i > 100 {
			p, _ := k.Angles()
			maxErr = math.Max(maxErr, math.Abs(p))
		}
	}
	if maxErr > 0.05 {
		t.Fatalf("pitch wanders %v for ±0.2 rad noise", maxErr)
	}
}
