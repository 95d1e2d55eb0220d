//go:build gst

package gst

/*
#cgo pkg-config: gstreamer-1.0
#include <gst/gst.h>
*/
import "C"

import (
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

func cElement(e *gst.Element) *C.GstElement {
	return (*C.GstElement)(e.Unsafe())
}

// setLockedState keeps e out of its parent's state changes.
func setLockedState(e *gst.Element, locked bool) {
	var v C.gboolean
	if locked {
		v = 1
	}
	C.gst_element_set_locked_state(cElement(e), v)
}

// runningTime returns the current running time of e, or false before it has a clock.
func runningTime(e *gst.Element) (time.Duration, bool) {
	t := C.gst_element_get_current_running_time(cElement(e))
	if t == ^C.GstClockTime(0) {
		return 0, false
	}
	return time.Duration(t), true
}
