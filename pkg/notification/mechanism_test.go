// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package notification

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMechanism_String(t *testing.T) {
	assert.Equal(t, "descriptor", FileDescriptor.String())
	assert.Equal(t, "mach_port", MachPort.String())
	assert.Equal(t, "signal", Signal.String())
	assert.Equal(t, "check", Check.String())
	assert.Equal(t, "mechanism(42)", Mechanism(42).String())
}

func TestParseMechanism(t *testing.T) {
	for _, m := range []Mechanism{FileDescriptor, MachPort, Signal, Check} {
		got, err := ParseMechanism(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	_, err := ParseMechanism("carrier_pigeon")
	assert.Error(t, err)
}

func TestMechanism_JSON(t *testing.T) {
	type frame struct {
		Mechanism Mechanism `json:"mechanism"`
	}

	b, err := json.Marshal(frame{Mechanism: MachPort})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mechanism":"mach_port"}`, string(b))

	var f frame
	require.NoError(t, json.Unmarshal([]byte(`{"mechanism":"signal"}`), &f))
	assert.Equal(t, Signal, f.Mechanism)

	assert.Error(t, json.Unmarshal([]byte(`{"mechanism":"smoke"}`), &f))
}

func TestNameFor_MechanismOf(t *testing.T) {
	tests := []struct {
		mechanism Mechanism
		name      Name
	}{
		{FileDescriptor, ByFileDescriptor},
		{MachPort, ByMachPort},
		{Signal, BySignal},
	}

	for _, tt := range tests {
		t.Run(tt.mechanism.String(), func(t *testing.T) {
			n, ok := NameFor(tt.mechanism)
			require.True(t, ok)
			assert.Equal(t, tt.name, n)

			m, ok := MechanismOf(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.mechanism, m)
		})
	}

	_, ok := NameFor(Check)
	assert.False(t, ok)
	_, ok = MechanismOf(Cancel)
	assert.False(t, ok)
}
