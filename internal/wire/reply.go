package wire

import (
	"fmt"
	"strconv"
)

// FormatOK renders a successful reply line.
func FormatOK(allowed bool, currentCredit, nextResetSeconds int64) string {
	return "OK " + strconv.FormatBool(allowed) + " " + strconv.FormatInt(currentCredit, 10) + " " + strconv.FormatInt(nextResetSeconds, 10) + "\n"
}

// FormatErr renders an error reply line.
func FormatErr(kind, message string) string {
	return fmt.Sprintf("ERR %s %s\n", kind, Quote(message))
}

// Error kinds used in ERR reply lines.
const (
	KindUnknownCommand    = "unknown-command"
	KindUnknown           = "unknown"
	KindLineTooLong       = "line-too-long"
	KindBackendUnavailable = "backend-unavailable"
	KindInternal          = "internal"
)
