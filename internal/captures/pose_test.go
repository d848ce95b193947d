package captures

import (
	"math"
	"testing"

	"github.com/user/framerelay/internal/types"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPoseFromNameCompact(t *testing.T) {
	cases := []struct {
		name string
		want types.Pose
	}{
		{"x-010y017z055yaw0000000__2025_10_19___15_54_07.jpg", types.Pose{X: -0.010, Y: 0.017, Z: 0.055, Yaw: 0}},
		{"x000y000z000yaw0785398.jpg", types.Pose{Yaw: 0.785398}},
		{"x1500y-250z0yaw-1570796.png", types.Pose{X: 1.5, Y: -0.25, Z: 0, Yaw: -1.570796}},
	}
	for _, tc := range cases {
		got := PoseFromName(tc.name)
		if got == nil {
			t.Errorf("%s: expected pose, got nil", tc.name)
			continue
		}
		if !approx(got.X, tc.want.X) || !approx(got.Y, tc.want.Y) || !approx(got.Z, tc.want.Z) || !approx(got.Yaw, tc.want.Yaw) {
			t.Errorf("%s: expected %+v, got %+v", tc.name, tc.want, *got)
		}
	}
}

func TestPoseFromNameFloat(t *testing.T) {
	got := PoseFromName("cam_x1.5_y0.2_z0.5_yaw0.79.jpg")
	if got == nil {
		t.Fatal("expected pose, got nil")
	}
	want := types.Pose{X: 1.5, Y: 0.2, Z: 0.5, Yaw: 0.79}
	if !approx(got.X, want.X) || !approx(got.Y, want.Y) || !approx(got.Z, want.Z) || !approx(got.Yaw, want.Yaw) {
		t.Errorf("expected %+v, got %+v", want, *got)
	}
}

func TestPoseFromNameNegativeFloats(t *testing.T) {
	got := PoseFromName("frame_x-0.5_y-1.25_z0.0_yaw-0.79.jpeg")
	if got == nil {
		t.Fatal("expected pose, got nil")
	}
	if !approx(got.X, -0.5) || !approx(got.Y, -1.25) || !approx(got.Yaw, -0.79) {
		t.Errorf("unexpected pose %+v", *got)
	}
}

func TestPoseFromNameNoMatch(t *testing.T) {
	for _, name := range []string{
		"frame001.jpg",
		"snapshot_2025.png",
		"xyyaw.jpg",
		"x10y20.jpg",
	} {
		if got := PoseFromName(name); got != nil {
			t.Errorf("%s: expected nil, got %+v", name, *got)
		}
	}
}

func TestPoseFromNameUsesBasename(t *testing.T) {
	got := PoseFromName("/captures/run1/x000y000z100yaw0000000.jpg")
	if got == nil {
		t.Fatal("expected pose, got nil")
	}
	if !approx(got.Z, 0.1) {
		t.Errorf("expected z=0.1, got %v", got.Z)
	}
}
