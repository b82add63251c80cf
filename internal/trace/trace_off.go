//go:build !spiketrace

package trace

import "github.com/sirupsen/logrus"

// Enabled reports whether frame tracing is compiled in.
const Enabled = false

// Dump is a no-op without the spiketrace build tag.
func Dump(*logrus.Logger, string, []byte) {}
