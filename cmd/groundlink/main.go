// Command groundlink talks to the vehicle through a ground XBee on a serial
// port. It logs telemetry strings and transmit statuses and reads commands
// from stdin.
package main

import (
	"bufio"
	"flag"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

var (
	baud   = flag.Int("b", 115200, "Baud rate")
	device = flag.String("d", "", "Serial device")
	debug  = flag.Bool("debug", false, "Debug logging")
)

func main() {
	flag.Parse()
	setupLogging()

	name, err := findDevice(*device)
	if err != nil {
		log.Fatal().Err(err).Msg("no modem")
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: *baud})
	if err != nil {
		log.Fatal().Err(err).Str("device", name).Msg("open modem")
	}
	defer port.Close()
	log.Info().Str("device", name).Int("baud", *baud).Msg("modem open")

	l := newLink(log.Logger, port, os.Stdout)
	go func() {
		if err := pump(port, l); err != nil {
			log.Fatal().Err(err).Msg("modem read")
		}
	}()

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		err := l.execute(sc.Text())
		if err == errQuit {
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("command")
		}
	}
}

func setupLogging() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if fi, err := os.Stderr.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"})
	}
}

// findDevice returns name, or the first usual USB serial device present.
func findDevice(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	for _, v := range []string{"/dev/ttyUSB0", "/dev/ttyACM0"} {
		if _, err := os.Stat(v); err == nil {
			return v, nil
		}
	}
	ports, err := serial.GetPortsList()
	if err != nil {
		return "", errors.Wrap(err, "list ports")
	}
	if len(ports) == 0 {
		return "", errors.New("no serial ports found, use -d")
	}
	return ports[0], nil
}

// pump copies modem bytes into w until the port fails or closes.
func pump(r io.Reader, w io.Writer) error {
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			w.Write(buf[:n])
		}
		if err != nil {
			return errors.Wrap(err, "read")
		}
		if n == 0 {
			return errors.New("modem closed")
		}
	}
}
