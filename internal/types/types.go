package types

import "fmt"

// Mode selects which selection mapping and display rules apply.
type Mode string

const (
	ModeOnline  Mode = "online"
	ModeArchive Mode = "archive"
)

// ParseMode converts a wire value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOnline, ModeArchive:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == ModeOnline {
		return ModeArchive
	}
	return ModeOnline
}

// Selection records which camera numbers are chosen for one selected device.
// Cameras are unique and kept in ascending order.
type Selection struct {
	Cameras []int `json:"cameras"`
}

// Clone returns a copy that shares no backing array with s.
func (s Selection) Clone() Selection {
	cams := make([]int, len(s.Cameras))
	copy(cams, s.Cameras)
	return Selection{Cameras: cams}
}
