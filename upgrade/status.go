// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package upgrade

import (
	"context"
	"fmt"
)

// Status prints the state reported by the latest upgrade event.
func (k *K8sUpgrader) Status(ctx context.Context) error {
	releaseName, err := k.releaseName(ctx)
	if err != nil {
		return err
	}
	event, err := LatestUpgradeEvent(ctx, k.client, k.params.Namespace, JobName(releaseName))
	if err != nil {
		return err
	}
	ue, err := DecodeUpgradeEvent(event)
	if err != nil {
		return err
	}

	fmt.Fprintf(k.params.Writer, "Upgrade From: %s\n", ue.FromVersion)
	fmt.Fprintf(k.params.Writer, "Upgrade To: %s\n", ue.ToVersion)
	fmt.Fprintf(k.params.Writer, "Upgrade Status: %s\n", ue.Message)
	return nil
}
