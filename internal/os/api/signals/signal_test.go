// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package signals

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    syscall.Signal
		wantErr bool
	}{
		{"SIGUSR1", syscall.SIGUSR1, false},
		{"usr2", syscall.SIGUSR2, false},
		{" SIGHUP ", syscall.SIGHUP, false},
		{"15", syscall.Signal(15), false},
		{"0", 0, true},
		{"-3", 0, true},
		{"SIGNOPE", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaults(t *testing.T) {
	sig, err := Parse(DeliveryStr)
	assert.NoError(t, err)
	assert.Equal(t, Delivery, sig)

	sig, err = Parse(ReloadStr)
	assert.NoError(t, err)
	assert.Equal(t, Reload, sig)
}
