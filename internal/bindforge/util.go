package bindforge

import "fmt"

// stylePrinter matches the gookit color styles in globals.go.
type stylePrinter interface {
	Printf(format string, a ...any)
}

// arrowf prints the standard arrow-prefixed status line in the given style.
func arrowf(style stylePrinter, format string, a ...any) {
	colArrow.Print("-> ")
	style.Printf(format, a...)
}

// debugf prints debug messages when Debug is true
func debugf(format string, args ...any) {
	if Debug {
		fmt.Printf(format, args...)
	}
}
