package pid

import (
	"math"
	"testing"
)

func testConfig() Config {
	return Config{
		Kp: 2, Ki: 0.5, Kd: 0.25,
		Tau:    0.02,
		OutMin: -10, OutMax: 10,
		IntMin: -5, IntMax: 5,
		T: 0.01,
	}
}

func TestIntegratorStaysClamped(t *testing.T) {
	tests := []struct {
		name     string
		setpoint float64
	}{
		{"large positive error", 1e6},
		{"large negative error", -1e6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(testConfig())
			for i := 0; i < 100000; i++ {
				out := c.Update(tt.setpoint, 0)
				if c.Integrator() > c.IntMax || c.Integrator() < c.IntMin {
					t.Fatalf("step %d: integrator %v outside [%v, %v]", i, c.Integrator(), c.IntMin, c.IntMax)
				}
				if out > c.OutMax || out < c.OutMin {
					t.Fatalf("step %d: output %v outside clamp", i, out)
				}
			}
			want := c.IntMax
			if tt.setpoint < 0 {
				want = c.IntMin
			}
			if c.Integrator() != want {
				t.Errorf("integrator = %v, want pinned at %v", c.Integrator(), want)
			}
		})
	}
}

func TestFirstUpdate(t *testing.T) {
	c := New(testConfig())
	out := c.Update(1, 0)

	// P = 2, I = 0.5*0.5*0.01*(1+0) = 0.0025, D = 0 (measurement did not move)
	want := 2 + 0.0025
	if math.Abs(out-want) > 1e-12 {
		t.Fatalf("out = %v, want %v", out, want)
	}
	if c.Output() != out {
		t.Fatalf("Output() = %v, want %v", c.Output(), out)
	}
}

func TestDerivativeOnMeasurement(t *testing.T) {
	cfg := testConfig()
	cfg.Kp, cfg.Ki = 0, 0
	c := New(cfg)

	// a setpoint step with a still measurement produces no derivative kick
	if out := c.Update(100, 0); out != 0 {
		t.Fatalf("setpoint step produced %v", out)
	}

	// a measurement step produces a negative derivative of
	// 2*Kd*dm/(2*tau+T) on the first sample
	out := c.Update(100, 1)
	want := -(2 * cfg.Kd * 1) / (2*cfg.Tau + cfg.T)
	if math.Abs(out-want) > 1e-12 {
		t.Fatalf("out = %v, want %v", out, want)
	}

	// and it decays while the measurement holds still
	prev := out
	for i := 0; i < 5; i++ {
		out = c.Update(100, 1)
		if math.Abs(out) >= math.Abs(prev) {
			t.Fatalf("derivative did not decay: %v then %v", prev, out)
		}
		prev = out
	}
}

func TestOutputClamp(t *testing.T) {
	c := New(testConfig())
	if out := c.Update(1000, 0); out != 10 {
		t.Fatalf("out = %v, want 10", out)
	}
	if out := c.Update(-1000, 0); out != -10 {
		t.Fatalf("out = %v, want -10", out)
	}
}

func TestReset(t *testing.T) {
	c := New(testConfig())
	for i := 0; i < 10; i++ {
		c.Update(3, float64(i))
	}
	c.Reset()
	if c.Integrator() != 0 || c.Output() != 0 {
		t.Fatalf("reset left integrator=%v output=%v", c.Integrator(), c.Output())
	}
	if c.Kp != 2 {
		t.Fatal("reset cleared the gains")
	}
}

func TestConvergesOnFirstOrderPlant(t *testing.T) {
	cfg := testConfig()
	c := New(cfg)
	y := 0.0
	for i := 0; i < 5000; i++ {
		u := c.Update(1, y)
		// dy/dt = -y + u
		y += (-y + u) * cfg.T
	}
	if math.Abs(y-1) > 0.01 {
		t.Fatalf("plant settled at %v, want 1", y)
	}
}
