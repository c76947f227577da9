package controls

import (
	"github.com/golang/geo/r3"

	"github.com/danielljeon/nerve/canbus"
)

// FailsafeTimeoutMs is how long the vehicle stays armed without a
// heartbeat from the bus.
const FailsafeTimeoutMs = 500

// FlightState is the arming state machine.
type FlightState uint8

const (
	Waiting FlightState = iota
	Flight
	Failsafe
)

func (s FlightState) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Flight:
		return "flight"
	case Failsafe:
		return "failsafe"
	}
	return "unknown"
}

// Supervisor turns bus commands into cascade arming and setpoints and drops
// to failsafe when the heartbeat stops.
type Supervisor struct {
	cascade  *Cascade
	nowMs    func() uint32
	setpoint canbus.Message

	state         FlightState
	armRequested  bool
	lastHeartbeat uint32
	heard         bool
}

// NewSupervisor returns a supervisor in Waiting. nowMs is a free-running
// millisecond clock.
func NewSupervisor(c *Cascade, nowMs func() uint32) *Supervisor {
	s := &Supervisor{cascade: c, nowMs: nowMs}
	for _, m := range canbus.NerveMessages(canbus.Handlers{}) {
		if m.ID == canbus.IDSetpoint {
			s.setpoint = m
		}
	}
	return s
}

// Handlers wires the supervisor into the CAN message table.
func (s *Supervisor) Handlers() canbus.Handlers {
	return canbus.Handlers{
		Arm:       s.onArm,
		Setpoint:  s.onSetpoint,
		Heartbeat: s.onHeartbeat,
	}
}

func (s *Supervisor) State() FlightState { return s.state }

func (s *Supervisor) onArm(id uint32, payload []byte) {
	s.armRequested = len(payload) > 0 && payload[0] != 0
	s.step()
}

func (s *Supervisor) onSetpoint(id uint32, payload []byte) {
	v := s.setpoint.Decode(payload)
	s.cascade.SetPosition(r3.Vector{X: v[0], Y: v[1], Z: v[2]})
}

func (s *Supervisor) onHeartbeat(id uint32, payload []byte) {
	s.lastHeartbeat = s.nowMs()
	s.heard = true
}

// Run is the periodic supervisor task.
func (s *Supervisor) Run() {
	s.step()
}

func (s *Supervisor) linkUp() bool {
	return s.heard && s.nowMs()-s.lastHeartbeat <= FailsafeTimeoutMs
}

func (s *Supervisor) step() {
	switch s.state {
	case Waiting:
		if s.armRequested && s.linkUp() {
			s.state = Flight
			s.cascade.Arm(true)
		}
	case Flight:
		switch {
		case !s.armRequested:
			s.state = Waiting
			s.cascade.Arm(false)
		case !s.linkUp():
			s.state = Failsafe
			s.cascade.Arm(false)
		}
	case Failsafe:
		// no re-arm until the operator disarms with the link back
		if !s.armRequested && s.linkUp() {
			s.state = Waiting
		}
	}
}
