package feedserver

import (
	"fmt"
	"os"

	"github.com/m0rjc/DeviceConsole/internal/feed"
	"github.com/m0rjc/DeviceConsole/internal/types"
	"gopkg.in/yaml.v3"
)

// fixture is the YAML layout of a feed fixture file. Devices are listed
// rather than keyed so the file reads naturally.
type fixture struct {
	Devices []types.Device `yaml:"devices"`
	Groups  []types.Group  `yaml:"groups"`
}

// ParseFixture decodes YAML fixture data into an INITIAL_DATA payload.
func ParseFixture(data []byte) (feed.InitialData, error) {
	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return feed.InitialData{}, fmt.Errorf("parsing fixture: %w", err)
	}

	out := feed.InitialData{
		Devices: make(map[int]types.Device, len(f.Devices)),
		Groups:  f.Groups,
	}
	if out.Groups == nil {
		out.Groups = []types.Group{}
	}
	for i, d := range f.Devices {
		if d.ID <= 0 {
			return feed.InitialData{}, fmt.Errorf("parsing fixture: device %d has no id", i)
		}
		if _, dup := out.Devices[d.ID]; dup {
			return feed.InitialData{}, fmt.Errorf("parsing fixture: duplicate device id %d", d.ID)
		}
		out.Devices[d.ID] = d
	}
	for i, g := range out.Groups {
		if g.DeviceIDs == nil {
			out.Groups[i].DeviceIDs = []int{}
		}
	}
	return out, nil
}

// LoadFixture reads a YAML fixture file.
func LoadFixture(path string) (feed.InitialData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return feed.InitialData{}, fmt.Errorf("reading fixture: %w", err)
	}
	return ParseFixture(data)
}
