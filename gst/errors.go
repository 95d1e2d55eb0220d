//go:build gst

package gst

import "errors"

var (
	ErrElement    = errors.New("gst: cannot create element")
	ErrLink       = errors.New("gst: cannot link")
	ErrState      = errors.New("gst: state change failed")
	ErrSeek       = errors.New("gst: seek rejected")
	ErrNoPipeline = errors.New("gst: pipeline is closed")
)
