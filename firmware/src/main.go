//go:build tinygo

package main

/*
bring up the LEDs first and show dim purple through initialization,
then the buses, radio, GPS, sensor hub, barometer and backup IMU in that order.
any init failure prints the stage and halts with a rapid red flash.
the backup IMU is calibrated behind a blue 3-blink countdown; keep the vehicle still and level.
after that the scheduler runs every periodic task and the main loop feeds the receivers and the watchdog.
waiting is alternating red/green, flight is solid green, backup attitude flashes amber,
failsafe is a rapid red flash.
*/

import (
	"machine"
	"time"

	"tinygo.org/x/drivers/mcp2515"
	"tinygo.org/x/drivers/ws2812"

	"github.com/danielljeon/nerve/canbus"
	"github.com/danielljeon/nerve/config"
	"github.com/danielljeon/nerve/controls"
	"github.com/danielljeon/nerve/diagnostics"
	"github.com/danielljeon/nerve/nmea"
	"github.com/danielljeon/nerve/scheduler"
	"github.com/danielljeon/nerve/sensorhub"
	"github.com/danielljeon/nerve/sensors"
	"github.com/danielljeon/nerve/status"
	"github.com/danielljeon/nerve/telemetry"
	"github.com/danielljeon/nerve/transport"
	"github.com/danielljeon/nerve/xbee"
)

const Version = "0.1.0"

var hubReports = []sensorhub.ReportID{
	sensorhub.Accelerometer,
	sensorhub.GyroscopeCalibrated,
	sensorhub.LinearAcceleration,
	sensorhub.Gravity,
	sensorhub.RotationVector,
}

var (
	watchdog = machine.Watchdog

	counters diagnostics.Counters
	state    sensors.State

	led        *status.LED
	estimator  *controls.Estimator
	supervisor *controls.Supervisor
)

func main() {
	time.Sleep(2 * time.Second)
	println("Nerve - Version", Version)

	settings := config.Default()

	// --- Status LED ---
	configureOutput(LED_PIN)
	led = status.New(ws2812.New(LED_PIN), settings.LEDCount)
	led.Set(status.On, status.Purple, status.Dark)
	refreshLED()

	if err := settings.Validate(); err != nil {
		fatal("settings", err)
	}

	// --- CAN ---
	canSPI.Configure(machine.SPIConfig{
		Frequency: CAN_SPI_FREQUENCY,
		SCK:       CAN_SCK_PIN,
		SDO:       CAN_SDO_PIN,
		SDI:       CAN_SDI_PIN,
	})
	can := mcp2515.New(canSPI, CAN_CS_PIN)
	can.Configure()
	if err := can.Begin(canSpeed(settings.CANKbps), mcp2515.Clock8MHz); err != nil {
		fatal("mcp2515", err)
	}
	println("CAN up at", settings.CANKbps, "kbps")

	// --- Radio ---
	if err := xbeeTTY.Configure(machine.UARTConfig{BaudRate: XBEE_BAUD_RATE, TX: XBEE_TX_PIN, RX: XBEE_RX_PIN}); err != nil {
		fatal("xbee uart", err)
	}
	radio := xbee.NewRadio(xbeeTTY)
	radioRx := xbee.NewReceiver(xbee.Handlers{
		Packet: func(p xbee.Packet) {
			println("radio packet from", p.Source16, "len", len(p.Data))
		},
	}, counters.For(diagnostics.Radio))
	xbeePort := &uartDMA{uart: xbeeTTY, dma: radioRx.DMA()}
	println("XBee configured.")

	// --- GPS ---
	if err := gpsTTY.Configure(machine.UARTConfig{BaudRate: GPS_BAUD_RATE, TX: GPS_TX_PIN, RX: GPS_RX_PIN}); err != nil {
		fatal("gps uart", err)
	}
	gps := nmea.NewReceiver(&state.GPS, counters.For(diagnostics.GPS))
	gpsPort := &uartDMA{uart: gpsTTY, dma: gps.DMA()}
	println("GPS configured.")

	// --- Sensor Hub ---
	hubSPI.Configure(machine.SPIConfig{
		Frequency: HUB_SPI_FREQUENCY,
		Mode:      HUB_SPI_MODE,
		SCK:       HUB_SCK_PIN,
		SDO:       HUB_SDO_PIN,
		SDI:       HUB_SDI_PIN,
	})
	configureOutput(HUB_CS_PIN, HUB_WAKE_PIN, HUB_PS1_PIN, HUB_RESET_PIN)
	engine := &transport.BlockingSPI{Bus: hubSPI}
	hub := sensorhub.New(engine, sensorhub.Pins{
		CS:    HUB_CS_PIN,
		Wake:  HUB_WAKE_PIN,
		PS1:   HUB_PS1_PIN,
		Reset: HUB_RESET_PIN,
	}, microClock{})
	engine.Complete = hub.TransferComplete
	HUB_INT_PIN.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	HUB_INT_PIN.SetInterrupt(machine.PinFalling, func(machine.Pin) { hub.OnInterrupt() })
	if err := hub.Open(); err != nil {
		fatal("sensor hub", err)
	}
	imu := sensorhub.NewDevice(hub, counters.For(diagnostics.IMU))
	for _, id := range hubReports {
		if err := enableReport(imu, id); err != nil {
			fatal("sensor hub report", err)
		}
	}
	println("Sensor hub initialized.")

	// --- Barometer and Backup IMU ---
	if err := i2c.Configure(machine.I2CConfig{Frequency: I2C_FREQUENCY, SDA: I2C_SDA_PIN, SCL: I2C_SCL_PIN}); err != nil {
		fatal("i2c", err)
	}
	bmp := sensors.NewBMP388(i2c)
	if err := bmp.Configure(); err != nil {
		fatal("bmp388", err)
	}
	baro := sensors.NewBarometer(bmp, settings.BaroWindow, &state.Baro, counters.For(diagnostics.Baro))
	lsm, err := sensors.NewLSM6DS3TR(i2c)
	if err != nil {
		fatal("lsm6ds3tr", err)
	}
	backup := sensors.NewBackupIMU(lsm, float64(settings.Periods.BackupIMU)/1000, &state.Backup, counters.For(diagnostics.IMU))
	calibrate(backup, settings.CalibrationSamples)
	println("Barometer and backup IMU initialized.")

	// --- Control ---
	estimator = controls.NewEstimator(&state)
	cascade := controls.New(settings.Gains, estimator, &state.Actuators)
	supervisor = controls.NewSupervisor(cascade, millis)
	table := canbus.MustNewTable(counters.For(diagnostics.CAN), canbus.NerveMessages(supervisor.Handlers())...)

	// --- Telemetry ---
	canTx := telemetry.NewCAN(can, table, &state, &counters, mode)
	radioLog := telemetry.NewStrings(radio, settings.XBee.Dest64, settings.XBee.Dest16, &state, &counters)
	radioLog.SetSink(machine.Serial)

	// --- Scheduler ---
	p := settings.Periods
	sched := scheduler.New(microClock{}, 1000)
	sched.MustRegister(baro.Run, p.Baro)
	sched.MustRegister(backup.Run, p.BackupIMU)
	sched.MustRegister(radioLog.Run, p.Radio)
	sched.MustRegister(canTx.Run, p.CAN)
	sched.MustRegister(cascade.OuterLoop, p.Outer)
	sched.MustRegister(cascade.InnerLoop, p.Inner)
	sched.MustRegister(updateStatus, p.Status)
	println("Scheduler running", sched.Len(), "tasks.")

	watchdog.Configure(machine.WatchdogConfig{
		TimeoutMillis: WATCHDOG_TIMEOUT_MS,
	})
	watchdog.Start()

	rx := canDevice{can}
	last := supervisor.State()
	for {
		xbeePort.Poll()
		gpsPort.Poll()
		imu.Service(state.ApplyHubReport)
		if _, err := table.Poll(rx); err != nil {
			counters.Inc(diagnostics.CAN)
		}

		sched.Tick()

		if s := supervisor.State(); s != last {
			println("state:", last.String(), "->", s.String())
			last = s
		}

		// Keep the watchdog happy
		watchdog.Update()
	}
}

// enableReport retries while the hub is busy with an earlier command.
func enableReport(dev *sensorhub.Device, id sensorhub.ReportID) error {
	var err error
	for i := 0; i < HUB_ENABLE_RETRIES; i++ {
		if err = dev.EnableReport(id, HUB_REPORT_INTERVAL_US); err != sensorhub.ErrBusy {
			return err
		}
		time.Sleep(10 * time.Millisecond)
	}
	return err
}

// calibrate counts down with three blue blinks, then averages the backup IMU
// while the vehicle sits still.
func calibrate(imu *sensors.BackupIMU, samples int) {
	led.Set(status.Blink3, status.Blue, status.Dark)
	start := time.Now()
	for time.Since(start) < 900*time.Millisecond {
		refreshLED()
		time.Sleep(10 * time.Millisecond)
	}
	println("Calibrating backup IMU... keep the vehicle still!")
	if err := imu.Calibrate(samples); err != nil {
		fatal("calibration", err)
	}
	accel, gyro := imu.Bias()
	println("Accel bias:", accel.X, accel.Y, accel.Z)
	println("Gyro bias:", gyro.X, gyro.Y, gyro.Z)
}

func mode() uint8 {
	switch supervisor.State() {
	case controls.Failsafe:
		return telemetry.ModeFault
	case controls.Flight:
		if estimator.Last().OnBackup {
			return telemetry.ModeBackupAttitude
		}
		return telemetry.ModeArmed
	}
	return telemetry.ModeDisarmed
}

func updateStatus() {
	supervisor.Run()
	switch mode() {
	case telemetry.ModeFault:
		led.Set(status.FastFlash, status.Red, status.Dark)
	case telemetry.ModeBackupAttitude:
		led.Set(status.Flash, status.Amber, status.Dark)
	case telemetry.ModeArmed:
		led.Set(status.On, status.Green, status.Dark)
	default:
		led.Set(status.Alternate, status.Red, status.Green)
	}
	refreshLED()
}

// ledFailed latches the first strip error so it is printed once.
var ledFailed bool

func refreshLED() {
	if err := led.Update(time.Now()); err != nil && !ledFailed {
		ledFailed = true
		println("status LED:", err.Error())
	}
}

func fatal(stage string, err error) {
	println("init failed:", stage, err.Error())
	if err := led.Halt(time.Now, time.Sleep); err != nil {
		println("status LED:", err.Error())
	}
	for {
		time.Sleep(time.Second)
	}
}
