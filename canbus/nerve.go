package canbus

// Identifiers of the vehicle bus. These and the layouts below are the wire
// contract with the other nodes; canbus/nerve.dbc carries the same table.
const (
	IDState      = 0x100
	IDBarometric = 0x101
	IDGps1       = 0x102
	IDGps2       = 0x103
	IDGps3       = 0x104
	IDImu1       = 0x105
	IDImu2       = 0x106
	IDImu3       = 0x107
	IDImu4       = 0x108
	IDImu5       = 0x109
	IDActuators  = 0x10A

	IDArm       = 0x20F
	IDSetpoint  = 0x200 // 0x200..0x20F after IDArm
	IDHeartbeat = 0x300 // 0x300..0x3FF
)

func le(name string, start, length uint8, scale, offset float64, unit string) Signal {
	return Signal{
		Name: name, StartBit: start, Length: length, Order: LittleEndian,
		Scale: scale, Offset: offset, Unit: unit,
		Min: offset, Max: offset + scale*float64(uint64(1)<<length-1),
	}
}

func be(name string, start, length uint8, scale, offset float64, unit string) Signal {
	s := le(name, start, length, scale, offset, unit)
	s.Order = BigEndian
	return s
}

func vector3(prefix string, scale, offset float64, unit string) []Signal {
	return []Signal{
		le(prefix+"_x", 0, 16, scale, offset, unit),
		le(prefix+"_y", 16, 16, scale, offset, unit),
		le(prefix+"_z", 32, 16, scale, offset, unit),
	}
}

// Handlers for the messages this node consumes. Any may be nil.
type Handlers struct {
	Arm       RxHandler
	Setpoint  RxHandler
	Heartbeat RxHandler
}

// NerveMessages returns the vehicle message table in dispatch order.
func NerveMessages(h Handlers) []Message {
	const q14 = 1.0 / 16384
	return []Message{
		{Name: "NerveState", ID: IDState, DLC: 2, Signals: []Signal{
			le("state", 0, 8, 1, 0, ""),
			le("faults_total", 8, 8, 1, 0, ""),
		}},
		{Name: "Barometric", ID: IDBarometric, DLC: 5, Signals: []Signal{
			le("pressure", 0, 20, 0.1, 0, "Pa"),
			le("temperature", 20, 12, 0.05, -40, "degC"),
			le("fault_count", 32, 8, 1, 0, ""),
		}},
		{Name: "Gps1", ID: IDGps1, DLC: 8, Signals: []Signal{
			le("latitude", 0, 32, 1e-7, -90, "deg"),
			le("longitude", 32, 32, 1e-7, -180, "deg"),
		}},
		{Name: "Gps2", ID: IDGps2, DLC: 5, Signals: []Signal{
			le("altitude", 0, 24, 0.01, -10000, "m"),
			le("geoid_separation", 24, 16, 0.01, -300, "m"),
		}},
		{Name: "Gps3", ID: IDGps3, DLC: 4, Signals: []Signal{
			le("fix_quality", 0, 8, 1, 0, ""),
			le("satellites", 8, 8, 1, 0, ""),
			le("hdop", 16, 16, 0.01, 0, ""),
		}},
		{Name: "Imu1", ID: IDImu1, DLC: 8, Signals: []Signal{
			le("quat_i", 0, 16, q14, -2, ""),
			le("quat_j", 16, 16, q14, -2, ""),
			le("quat_k", 32, 16, q14, -2, ""),
			le("quat_real", 48, 16, q14, -2, ""),
		}},
		{Name: "Imu2", ID: IDImu2, DLC: 6, Signals: vector3("gyro", 0.001, -32.768, "rad/s")},
		{Name: "Imu3", ID: IDImu3, DLC: 6, Signals: vector3("accel", 0.01, -327.68, "m/s2")},
		{Name: "Imu4", ID: IDImu4, DLC: 6, Signals: vector3("lin_accel", 0.01, -327.68, "m/s2")},
		{Name: "Imu5", ID: IDImu5, DLC: 6, Signals: vector3("gravity", 0.01, -327.68, "m/s2")},
		{Name: "Actuators", ID: IDActuators, DLC: 6, Signals: []Signal{
			be("pitch", 0, 16, 0.0001, -1, ""),
			be("yaw", 16, 16, 0.0001, -1, ""),
			be("roll", 32, 16, 0.0001, -1, ""),
		}},
		{Name: "Arm", ID: IDArm, DLC: 1, OnReceive: h.Arm, Signals: []Signal{
			le("arm", 0, 8, 1, 0, ""),
		}},
		{Name: "Setpoint", ID: IDSetpoint, IDMask: 0x7F0, DLC: 6, OnReceive: h.Setpoint,
			Signals: vector3("position", 0.1, -3276.8, "m")},
		{Name: "Heartbeat", ID: IDHeartbeat, IDMask: 0x700, OnReceive: h.Heartbeat},
	}
}
