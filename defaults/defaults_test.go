// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package defaults

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpgradeObjSuffix(t *testing.T) {
	old := Version
	defer func() { Version = old }()

	tests := []struct {
		name    string
		version string
		want    string
	}{
		{name: "unset version", version: "", want: "develop"},
		{name: "release", version: "v4.1.0", want: "v4-1-0"},
		{name: "prerelease", version: "4.2.0-rc.1", want: "4-2-0-rc-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version = tt.version
			assert.Equal(t, tt.want, UpgradeObjSuffix())
		})
	}
}

func TestVersionBounds(t *testing.T) {
	assert.True(t, UmbrellaChartVersionLowerBound.LT(FourDotO))
	assert.True(t, PartialRebuildDisableExtents[0].LT(PartialRebuildDisableExtents[1]))
}
