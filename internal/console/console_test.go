// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package console

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestPrinter(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = noColor }()

	var out, errOut bytes.Buffer
	p := &Printer{Out: &out, Err: &errOut}

	p.Info("The upgrade has started", "")
	p.Info("Upgrade To", "4.1.0")
	p.Error("The validation for upgrade has failed", "bad version")

	assert.Equal(t, "The upgrade has started\nUpgrade To: 4.1.0\n", out.String())
	assert.Equal(t, "The validation for upgrade has failed: bad version \n", errOut.String())
}
