//go:build tinygo

package main

import "machine"

// Nerve board configuration
// Hardware mappings and bus settings for the Raspberry Pi Pico carrier.
// Vehicle tuning lives in the config package.

// --- Sensor Hub (SPI0) ---
const (
	HUB_SPI_FREQUENCY      = 3 * machine.MHz
	HUB_SPI_MODE           = 3
	HUB_REPORT_INTERVAL_US = 10000 // 100 Hz
	HUB_ENABLE_RETRIES     = 5
)

const (
	HUB_SCK_PIN   = machine.GP18
	HUB_SDO_PIN   = machine.GP19
	HUB_SDI_PIN   = machine.GP16
	HUB_CS_PIN    = machine.GP17
	HUB_INT_PIN   = machine.GP20 // INTN, active low
	HUB_WAKE_PIN  = machine.GP21 // PS0/WAKE
	HUB_PS1_PIN   = machine.GP22
	HUB_RESET_PIN = machine.GP26
)

// --- CAN (MCP2515 on SPI1) ---
const (
	CAN_SPI_FREQUENCY = 8 * machine.MHz
	CAN_SCK_PIN       = machine.GP10
	CAN_SDO_PIN       = machine.GP11
	CAN_SDI_PIN       = machine.GP12
	CAN_CS_PIN        = machine.GP13
)

// --- I2C0: barometer and backup IMU ---
const (
	I2C_FREQUENCY = 400 * machine.KHz
	I2C_SDA_PIN   = machine.GP4
	I2C_SCL_PIN   = machine.GP5
)

// --- UARTs ---
const (
	XBEE_BAUD_RATE = 115200
	XBEE_TX_PIN    = machine.GP0
	XBEE_RX_PIN    = machine.GP1

	GPS_BAUD_RATE = 9600
	GPS_TX_PIN    = machine.GP8
	GPS_RX_PIN    = machine.GP9
)

// --- Status LED ---
const (
	LED_PIN = machine.GP15 // WS2812 data
)

// --- Watchdog ---
const (
	WATCHDOG_TIMEOUT_MS = 500
)

// --- Hardware Interfaces ---
var (
	hubSPI  = machine.SPI0
	canSPI  = machine.SPI1
	i2c     = machine.I2C0
	xbeeTTY = machine.UART0
	gpsTTY  = machine.UART1
)
