package armbot

import (
	"strings"

	"github.com/pkg/errors"
	"go.bug.st/serial/enumerator"
	"go.viam.com/rdk/logging"
)

// pololuVID is the USB vendor ID the Maestro controllers enumerate with.
const pololuVID = "1FFB"

// FindMaestroPort scans the system's serial ports for a Maestro controller.
// A port carrying the Pololu vendor ID wins; otherwise the first candidate
// USB serial port is offered, since the config can always pin an explicit
// path.
func FindMaestroPort(logger logging.Logger) (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", errors.Wrap(err, "enumerate serial ports")
	}

	var candidates []string
	for _, port := range ports {
		if port.IsUSB && strings.EqualFold(port.VID, pololuVID) {
			logger.Infof("found maestro on %s (VID %s, PID %s)", port.Name, port.VID, port.PID)
			return port.Name, nil
		}
		if isCandidatePort(port.Name) {
			candidates = append(candidates, port.Name)
		}
	}

	if len(candidates) == 0 {
		return "", errors.New("no candidate serial port found for maestro")
	}
	logger.Warnf("no port with pololu VID found, falling back to %s", candidates[0])
	return candidates[0], nil
}

// filterCandidatePorts keeps the ports matching the platform-specific USB
// serial naming patterns.
func filterCandidatePorts(ports []string) []string {
	candidates := []string{}
	for _, port := range ports {
		if isCandidatePort(port) {
			candidates = append(candidates, port)
		}
	}
	return candidates
}

// isCandidatePort checks if a port looks like a USB serial device.
func isCandidatePort(port string) bool {
	// Linux: /dev/ttyUSB*, /dev/ttyACM*
	if strings.HasPrefix(port, "/dev/ttyUSB") || strings.HasPrefix(port, "/dev/ttyACM") {
		return true
	}
	// macOS: /dev/tty.usbmodem*, /dev/tty.usbserial*, /dev/cu.usbmodem*, /dev/cu.usbserial*
	if strings.HasPrefix(port, "/dev/tty.usbmodem") || strings.HasPrefix(port, "/dev/tty.usbserial") ||
		strings.HasPrefix(port, "/dev/cu.usbmodem") || strings.HasPrefix(port, "/dev/cu.usbserial") {
		return true
	}
	// Windows: COM*
	return strings.HasPrefix(port, "COM")
}
