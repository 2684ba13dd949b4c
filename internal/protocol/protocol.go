// Package protocol defines the MQTT wire contract shared with the fridge
// controller firmware. Payload shapes and topic names are fixed by the device
// and must not change without a coordinated firmware release.
package protocol

import (
	"fmt"
	"math"
)

// Topics the service exchanges with the fridge controller.
const (
	// TopicStatus carries periodic telemetry from the device (QoS 1).
	TopicStatus = "/homebrew/status"
	// TopicCommand carries outbound commands to the device (QoS 2).
	TopicCommand = "/homebrew/cmd"
	// TopicAck carries command acknowledgements from the device (QoS 2).
	TopicAck = "/homebrew/ack"
)

// QoS levels per topic, matching the firmware's subscriptions.
const (
	QoSStatus  byte = 1
	QoSCommand byte = 2
	QoSAck     byte = 2
)

// Command is the set of operations the fridge controller accepts.
type Command string

const (
	CmdSetTarget  Command = "set_target"
	CmdSetPeltier Command = "set_peltier"
	CmdRestart    Command = "restart"
)

// Valid reports whether c is a known command.
func (c Command) Valid() bool {
	switch c {
	case CmdSetTarget, CmdSetPeltier, CmdRestart:
		return true
	}
	return false
}

// StatusPayload is the telemetry message published by the device on TopicStatus.
// Temp, Humidity and Target are pointers because the device reports null when a
// sensor is absent or no target is configured.
type StatusPayload struct {
	QoS            int      `json:"qos"`
	Temp           *float64 `json:"temp"`
	Humidity       *float64 `json:"humidity"`
	PeltierEnabled bool     `json:"peltier_enabled"`
	Power          int      `json:"power"`
	Target         *float64 `json:"target"`
	// Ts is the device clock in epoch seconds. The device may report 0 when
	// it has not synced NTP yet; receivers substitute their own clock.
	Ts int64 `json:"ts"`
}

// AckPayload is the command acknowledgement published by the device on TopicAck.
type AckPayload struct {
	QoS     int         `json:"qos"`
	ID      string      `json:"id"`
	Cmd     Command     `json:"cmd"`
	Value   interface{} `json:"value"`
	Success bool        `json:"success"`
	Error   *string     `json:"error"`
	Ts      int64       `json:"ts"`
}

// CommandPayload is the envelope published to the device on TopicCommand.
type CommandPayload struct {
	QoS   int      `json:"qos"`
	ID    string   `json:"id"`
	Cmd   Command  `json:"cmd"`
	Value *float64 `json:"value"`
	Ts    int64    `json:"ts"`
}

// ValidateCommandValue checks a caller-supplied value against the command's
// contract and returns the numeric value to put on the wire.
//
//   - set_target accepts a finite float64 or nil (nil clears the target)
//   - set_peltier requires a bool (encoded as 1/0)
//   - restart ignores the value entirely
func ValidateCommandValue(cmd Command, value interface{}) (*float64, error) {
	if !cmd.Valid() {
		return nil, fmt.Errorf("unknown command %q", cmd)
	}

	switch cmd {
	case CmdSetTarget:
		if value == nil {
			return nil, nil
		}
		v, ok := toFloat(value)
		if !ok {
			return nil, fmt.Errorf("set_target requires a number or null, got %T", value)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("set_target requires a finite number")
		}
		return &v, nil

	case CmdSetPeltier:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("set_peltier requires a boolean, got %T", value)
		}
		v := 0.0
		if b {
			v = 1.0
		}
		return &v, nil

	default: // restart
		return nil, nil
	}
}

// toFloat widens the numeric types JSON decoding and callers may hand us.
func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
