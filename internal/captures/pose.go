// internal/captures/pose.go
package captures

import (
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/user/framerelay/internal/types"
)

// Capture rigs encode the gantry pose in the filename. The compact form
// carries integer millimeters and microradians
// (x-010y017z055yaw0000000__<stamp>.jpg); the underscore form carries floats
// already in meters and radians (cam_x1.5_y0.2_z0.5_yaw0.79.jpg).
var (
	poseCompactRe = regexp.MustCompile(`^x(-?\d{1,6})y(-?\d{1,6})z(-?\d{1,6})yaw(-?\d{1,9})(?:__[^/]+)?\.[A-Za-z0-9]+$`)
	poseFloatRe   = regexp.MustCompile(`.*_x(-?\d+(?:\.\d+)?)_y(-?\d+(?:\.\d+)?)_z(-?\d+(?:\.\d+)?)_yaw(-?\d+(?:\.\d+)?)\.[A-Za-z0-9]+$`)
)

// PoseFromName parses the pose encoded in a capture filename. Returns nil
// when the name encodes none.
func PoseFromName(name string) *types.Pose {
	base := filepath.Base(name)

	if m := poseCompactRe.FindStringSubmatch(base); m != nil {
		x, errX := strconv.ParseInt(m[1], 10, 64)
		y, errY := strconv.ParseInt(m[2], 10, 64)
		z, errZ := strconv.ParseInt(m[3], 10, 64)
		yaw, errYaw := strconv.ParseInt(m[4], 10, 64)
		if errX == nil && errY == nil && errZ == nil && errYaw == nil {
			return &types.Pose{
				X:   float64(x) / 1000.0,
				Y:   float64(y) / 1000.0,
				Z:   float64(z) / 1000.0,
				Yaw: float64(yaw) / 1_000_000.0,
			}
		}
	}

	if m := poseFloatRe.FindStringSubmatch(base); m != nil {
		x, errX := strconv.ParseFloat(m[1], 64)
		y, errY := strconv.ParseFloat(m[2], 64)
		z, errZ := strconv.ParseFloat(m[3], 64)
		yaw, errYaw := strconv.ParseFloat(m[4], 64)
		if errX == nil && errY == nil && errZ == nil && errYaw == nil {
			return &types.Pose{X: x, Y: y, Z: z, Yaw: yaw}
		}
	}

	return nil
}
