// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package upgradejob

import (
	"fmt"

	"github.com/blang/semver/v4"

	"github.com/openebs/kubectl-openebs/defaults"
)

// ValidateUpgradePath rejects upgrades from unsupported releases and
// downgrades. skip disables both checks.
func ValidateUpgradePath(source, target semver.Version, skip bool) error {
	if skip {
		return nil
	}
	if source.LT(defaults.UmbrellaChartVersionLowerBound) {
		return fmt.Errorf("upgrade from version %s is not supported, the oldest supported version is %s",
			source, defaults.UmbrellaChartVersionLowerBound)
	}
	if target.LT(source) {
		return fmt.Errorf("the target version %s is older than the installed version %s, downgrades are not supported",
			target, source)
	}
	return nil
}
