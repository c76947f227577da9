// Package pid implements a discrete PID controller with a band-limited
// derivative on measurement and a clamped trapezoidal integrator.
package pid

import "github.com/danielljeon/nerve/mathx"

// Gains and limits for one controller.
type Config struct {
	Kp, Ki, Kd float64

	// Tau is the derivative low-pass time constant in seconds.
	Tau float64

	OutMin, OutMax float64
	IntMin, IntMax float64

	// T is the sample period in seconds.
	T float64
}

// Controller holds the state for a PID controller. One per axis; never shared.
type Controller struct {
	Config

	integrator      float64
	prevError       float64
	differentiator  float64
	prevMeasurement float64
	out             float64
}

// New creates and initializes a new Controller.
func New(cfg Config) *Controller {
	return &Controller{Config: cfg}
}

// Update calculates the new control output.
func (pid *Controller) Update(setpoint, measurement float64) float64 {
	err := setpoint - measurement

	// Proportional term
	proportional := pid.Kp * err

	// Integral term: trapezoidal, clamped so it cannot wind up
	pid.integrator += 0.5 * pid.Ki * pid.T * (err + pid.prevError)
	pid.integrator = mathx.Constrain(pid.integrator, pid.IntMin, pid.IntMax)

	// Derivative term on measurement, band limited by Tau. Taking it on the
	// measurement keeps setpoint steps from kicking the output.
	pid.differentiator = (-2*pid.Kd*(measurement-pid.prevMeasurement) +
		(2*pid.Tau-pid.T)*pid.differentiator) /
		(2*pid.Tau + pid.T)

	out := mathx.Constrain(proportional+pid.integrator+pid.differentiator, pid.OutMin, pid.OutMax)
	pid.out = out

	pid.prevError = err
	pid.prevMeasurement = measurement

	return out
}

// Reset clears the controller memory, keeping the configuration.
func (pid *Controller) Reset() {
	pid.integrator = 0
	pid.prevError = 0
	pid.differentiator = 0
	pid.prevMeasurement = 0
	pid.out = 0
}

// Output returns the last value Update produced.
func (pid *Controller) Output() float64 { return pid.out }

// Integrator returns the integrator accumulator.
func (pid *Controller) Integrator() float64 { return pid.integrator }
