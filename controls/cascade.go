// Package controls runs the four stage cascade: position, velocity, attitude
// and rate, one PID per axis per stage. The outer loop (position, velocity)
// and the inner loop (attitude, rate) are separate periodic tasks.
package controls

import (
	"github.com/golang/geo/r3"

	"github.com/danielljeon/nerve/pid"
	"github.com/danielljeon/nerve/sensors"
)

// Axis indices. Translation axes x, y and z share them with pitch, yaw and
// roll: the velocity loop for x commands pitch, y commands yaw and z
// commands roll.
const (
	Pitch = iota
	Yaw
	Roll
	numAxes
)

// Gains configures all twelve controllers, indexed by axis.
type Gains struct {
	Position [numAxes]pid.Config
	Velocity [numAxes]pid.Config
	Attitude [numAxes]pid.Config
	Rate     [numAxes]pid.Config
}

// Cascade owns the controllers and the setpoints passed between stages.
type Cascade struct {
	est *Estimator
	out *sensors.Actuators

	position [numAxes]*pid.Controller
	velocity [numAxes]*pid.Controller
	attitude [numAxes]*pid.Controller
	rate     [numAxes]*pid.Controller

	armed            bool
	positionSetpoint r3.Vector
	attitudeSetpoint Axes
}

func New(g Gains, est *Estimator, out *sensors.Actuators) *Cascade {
	c := &Cascade{est: est, out: out}
	for i := 0; i < numAxes; i++ {
		c.position[i] = pid.New(g.Position[i])
		c.velocity[i] = pid.New(g.Velocity[i])
		c.attitude[i] = pid.New(g.Attitude[i])
		c.rate[i] = pid.New(g.Rate[i])
	}
	return c
}

// Arm enables or disables the loops. Disarming resets every controller and
// zeroes the actuators.
func (c *Cascade) Arm(armed bool) {
	if c.armed == armed {
		return
	}
	c.armed = armed
	if armed {
		return
	}
	for i := 0; i < numAxes; i++ {
		c.position[i].Reset()
		c.velocity[i].Reset()
		c.attitude[i].Reset()
		c.rate[i].Reset()
	}
	c.attitudeSetpoint = Axes{}
	*c.out = sensors.Actuators{}
}

func (c *Cascade) Armed() bool { return c.armed }

// SetPosition sets the position target in the estimator's local frame.
func (c *Cascade) SetPosition(p r3.Vector) {
	c.positionSetpoint = p
}

// AttitudeSetpoint is what the last outer loop asked of the inner loop.
func (c *Cascade) AttitudeSetpoint() Axes { return c.attitudeSetpoint }

// OuterLoop runs position then velocity and leaves attitude setpoints for
// InnerLoop.
func (c *Cascade) OuterLoop() {
	if !c.armed {
		return
	}
	m := c.est.Update()
	sp := [numAxes]float64{c.positionSetpoint.X, c.positionSetpoint.Y, c.positionSetpoint.Z}
	pos := [numAxes]float64{m.Position.X, m.Position.Y, m.Position.Z}
	vel := [numAxes]float64{m.Velocity.X, m.Velocity.Y, m.Velocity.Z}

	var att [numAxes]float64
	for i := 0; i < numAxes; i++ {
		v := c.position[i].Update(sp[i], pos[i])
		att[i] = c.velocity[i].Update(v, vel[i])
	}
	c.attitudeSetpoint = Axes{Pitch: att[Pitch], Yaw: att[Yaw], Roll: att[Roll]}
}

// InnerLoop runs attitude then rate and writes the actuator commands.
func (c *Cascade) InnerLoop() {
	if !c.armed {
		return
	}
	m := c.est.Update()

	var cmd [numAxes]float64
	for i := 0; i < numAxes; i++ {
		r := c.attitude[i].Update(c.attitudeSetpoint.At(i), m.Attitude.At(i))
		cmd[i] = c.rate[i].Update(r, m.Rate.At(i))
	}
	c.out.Pitch = cmd[Pitch]
	c.out.Yaw = cmd[Yaw]
	c.out.Roll = cmd[Roll]
}
