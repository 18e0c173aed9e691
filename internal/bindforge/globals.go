package bindforge

import (
	"errors"
	"runtime"
	"sync"

	"github.com/gookit/color"
)

// Global variables
var (
	ConfigFile = "/etc/bindforge.conf"
	Debug      bool
	Verbose    bool

	version   = "dev"     // overridden at build time
	buildDate = "unknown" // overridden at build time
	hostArch  = runtime.GOARCH

	mirrorMessageOnce sync.Once

	errNotPinned = errors.New("toolchain has no checksum pin")
)

// color helpers
var (
	colInfo    = color.Info // style provided by gookit/color
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
)
