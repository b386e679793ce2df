package feed

import (
	"encoding/json"

	"github.com/m0rjc/DeviceConsole/internal/types"
)

// Message types carried in the envelope's "type" field.
const (
	TypeInitialData   = "INITIAL_DATA"
	TypeDeviceUpdate  = "DEVICE_UPDATE"
	TypeDeviceRemoved = "DEVICE_REMOVED"
)

// Envelope is one JSON message on the feed.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// InitialData is the payload of INITIAL_DATA. Device map keys are the
// authoritative device ids.
type InitialData struct {
	Devices map[int]types.Device `json:"devices" yaml:"devices"`
	Groups  []types.Group        `json:"groups" yaml:"groups"`
}

// DeviceUpdate is the payload of DEVICE_UPDATE.
type DeviceUpdate struct {
	ID     int               `json:"id"`
	Fields types.DevicePatch `json:"fields"`
}

// DeviceRemoved is the payload of DEVICE_REMOVED.
type DeviceRemoved struct {
	ID int `json:"id"`
}

// NewEnvelope marshals payload into an envelope of the given type.
func NewEnvelope(msgType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: msgType, Payload: raw}, nil
}

// InitialDataMessage creates an INITIAL_DATA envelope.
func InitialDataMessage(data InitialData) (Envelope, error) {
	return NewEnvelope(TypeInitialData, data)
}

// DeviceUpdateMessage creates a DEVICE_UPDATE envelope.
func DeviceUpdateMessage(id int, fields types.DevicePatch) (Envelope, error) {
	return NewEnvelope(TypeDeviceUpdate, DeviceUpdate{ID: id, Fields: fields})
}

// DeviceRemovedMessage creates a DEVICE_REMOVED envelope.
func DeviceRemovedMessage(id int) (Envelope, error) {
	return NewEnvelope(TypeDeviceRemoved, DeviceRemoved{ID: id})
}
