// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package upgradejob

import (
	"testing"

	"github.com/blang/semver/v4"
	"github.com/stretchr/testify/assert"
)

func TestValidateUpgradePath(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		target  string
		skip    bool
		wantErr string
	}{
		{name: "minor upgrade", source: "3.10.0", target: "4.1.0"},
		{name: "same version", source: "4.1.0", target: "4.1.0"},
		{name: "lower bound", source: "3.0.0", target: "4.0.0"},
		{
			name:    "unsupported source",
			source:  "2.12.2",
			target:  "4.1.0",
			wantErr: "upgrade from version 2.12.2 is not supported, the oldest supported version is 3.0.0",
		},
		{
			name:    "downgrade",
			source:  "4.1.0",
			target:  "3.10.0",
			wantErr: "the target version 3.10.0 is older than the installed version 4.1.0, downgrades are not supported",
		},
		{name: "skipped unsupported source", source: "2.12.2", target: "4.1.0", skip: true},
		{name: "skipped downgrade", source: "4.1.0", target: "3.10.0", skip: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpgradePath(semver.MustParse(tt.source), semver.MustParse(tt.target), tt.skip)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}
