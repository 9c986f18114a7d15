package supervisor

import "errors"

var (
	errMissingRigID  = errors.New("rig_id is required")
	errBadClockTime  = errors.New("schedule time must be HH:MM")
	errNoFrameSource = errors.New("a frame source is required")
)
