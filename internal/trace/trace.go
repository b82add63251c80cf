//go:build spiketrace

// Package trace dumps raw link traffic when built with the spiketrace tag.
// In normal builds every call compiles away to nothing.
package trace

import (
	"encoding/hex"

	"github.com/sirupsen/logrus"
)

// Enabled reports whether frame tracing is compiled in.
const Enabled = true

// Dump logs one raw frame with its direction ("send" or "recv").
func Dump(logger *logrus.Logger, direction string, data []byte) {
	logger.WithFields(logrus.Fields{
		"dir": direction,
		"len": len(data),
		"hex": hex.EncodeToString(data),
	}).Debug("Frame")
}
