//go:build !linux

package serial

import (
	"io"
	"time"

	tarm "github.com/tarm/serial"
)

func openPort(path string, baud int) (io.ReadWriteCloser, error) {
	return tarm.OpenPort(&tarm.Config{
		Name:        path,
		Baud:        baud,
		ReadTimeout: time.Second,
		Size:        8,
		Parity:      tarm.ParityNone,
		StopBits:    tarm.Stop1,
	})
}
