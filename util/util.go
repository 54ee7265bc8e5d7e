package util

import "log"

// Debug is the verbosity level; DPrintf logs at levels <= Debug.
var Debug uint64 = 0

func DPrintf(level uint64, format string, a ...interface{}) {
	if level <= Debug {
		log.Printf(format, a...)
	}
}
