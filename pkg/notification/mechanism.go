// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package notification

import "fmt"

// Mechanism is the channel a registration gets its deliveries through.
type Mechanism int

const (
	// FileDescriptor deliveries write the token to a pipe owned by the consumer.
	FileDescriptor Mechanism = iota + 1
	// MachPort deliveries queue the token on a message port of the consumer.
	MachPort
	// Signal deliveries send a signal to the consumer process.
	Signal
	// Check registrations are polled, nothing is delivered.
	Check
)

var mechanismNames = map[Mechanism]string{
	FileDescriptor: "descriptor",
	MachPort:       "mach_port",
	Signal:         "signal",
	Check:          "check",
}

func (m Mechanism) String() string {
	if s, ok := mechanismNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mechanism(%d)", int(m))
}

// ParseMechanism is the inverse of Mechanism.String.
func ParseMechanism(s string) (Mechanism, error) {
	for m, name := range mechanismNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown delivery mechanism: %q", s)
}

// MarshalText encodes the mechanism by name, so wire frames stay readable.
func (m Mechanism) MarshalText() ([]byte, error) {
	if _, ok := mechanismNames[m]; !ok {
		return nil, fmt.Errorf("unknown delivery mechanism: %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Mechanism) UnmarshalText(text []byte) error {
	parsed, err := ParseMechanism(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// NameFor returns the well-known name selecting the given delivery mechanism.
func NameFor(m Mechanism) (Name, bool) {
	switch m {
	case FileDescriptor:
		return ByFileDescriptor, true
	case MachPort:
		return ByMachPort, true
	case Signal:
		return BySignal, true
	}
	return "", false
}

// MechanismOf returns the delivery mechanism a well-known name selects.
func MechanismOf(n Name) (Mechanism, bool) {
	switch n {
	case ByFileDescriptor:
		return FileDescriptor, true
	case ByMachPort:
		return MachPort, true
	case BySignal:
		return Signal, true
	}
	return 0, false
}
