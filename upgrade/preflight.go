// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package upgrade

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/blang/semver/v4"
	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/openebs/kubectl-openebs/defaults"
	"github.com/openebs/kubectl-openebs/internal/helm"
)

const (
	mayastorCSIDriver       = "io.openebs.csi-mayastor"
	mayastorReplicasParam   = "repl"
	singleReplicaParamValue = "1"
)

// TargetVersion returns the version this build upgrades to. Development builds
// have no semantic version and report false.
func TargetVersion() (semver.Version, bool) {
	if defaults.Version == "" {
		return semver.Version{}, false
	}
	v, err := semver.ParseTolerant(defaults.Version)
	if err != nil {
		return semver.Version{}, false
	}
	return v, true
}

func isStable(v semver.Version) bool {
	return len(v.Pre) == 0
}

// errAlreadyUpgraded means the release already runs the target version.
type errAlreadyUpgraded struct {
	version semver.Version
}

func (e *errAlreadyUpgraded) Error() string {
	return fmt.Sprintf("the installed openebs release is already at version %s", e.version)
}

// checkVersions validates the upgrade from source to the version of this build.
func (k *K8sUpgrader) checkVersions(source semver.Version) error {
	target, ok := TargetVersion()
	if ok && source.EQ(target) {
		return &errAlreadyUpgraded{version: source}
	}
	if k.params.AllowUnstable || k.params.SkipUpgradePathValidationForUnsupportedVersion {
		return nil
	}
	if isStable(source) && (!ok || !isStable(target)) {
		targetStr := defaults.UpgradeJobImageTag
		if ok {
			targetStr = target.String()
		}
		return fmt.Errorf("upgrading from the stable version %s to the unstable version %s is not allowed, use --allow-unstable to proceed", source, targetStr)
	}
	return nil
}

// checkCordonedNodes fails when a node that hosts an io-engine pod is cordoned.
func (k *K8sUpgrader) checkCordonedNodes(ctx context.Context) error {
	pods, err := k.client.ListPods(ctx, k.params.Namespace, metav1.ListOptions{LabelSelector: defaults.IOEngineLabel})
	if err != nil {
		return fmt.Errorf("unable to list io-engine pods: %w", err)
	}
	hosts := lo.Uniq(lo.FilterMap(pods.Items, func(p corev1.Pod, _ int) (string, bool) {
		return p.Spec.NodeName, p.Spec.NodeName != ""
	}))
	if len(hosts) == 0 {
		return nil
	}

	nodes, err := k.client.ListNodes(ctx, metav1.ListOptions{})
	if err != nil {
		return fmt.Errorf("unable to list nodes: %w", err)
	}
	cordoned := lo.FilterMap(nodes.Items, func(n corev1.Node, _ int) (string, bool) {
		return n.Name, n.Spec.Unschedulable && lo.Contains(hosts, n.Name)
	})
	if len(cordoned) > 0 {
		sort.Strings(cordoned)
		return fmt.Errorf("the following nodes hosting io-engine pods are cordoned: %s. Uncordon them or use --skip-cordoned-node-validation",
			strings.Join(cordoned, ", "))
	}
	return nil
}

// checkSingleReplicaVolumes fails when a Mayastor volume has a single replica,
// since restarting its io-engine makes it unavailable.
func (k *K8sUpgrader) checkSingleReplicaVolumes(ctx context.Context) error {
	scs, err := k.client.ListStorageClasses(ctx, metav1.ListOptions{})
	if err != nil {
		return fmt.Errorf("unable to list storage classes: %w", err)
	}
	singleReplica := map[string]bool{}
	for _, sc := range scs.Items {
		if sc.Provisioner == mayastorCSIDriver && sc.Parameters[mayastorReplicasParam] == singleReplicaParamValue {
			singleReplica[sc.Name] = true
		}
	}
	if len(singleReplica) == 0 {
		return nil
	}

	pvs, err := k.client.ListPersistentVolumes(ctx, metav1.ListOptions{})
	if err != nil {
		return fmt.Errorf("unable to list persistent volumes: %w", err)
	}
	volumes := lo.FilterMap(pvs.Items, func(pv corev1.PersistentVolume, _ int) (string, bool) {
		return pv.Name, pv.Spec.CSI != nil && pv.Spec.CSI.Driver == mayastorCSIDriver && singleReplica[pv.Spec.StorageClassName]
	})
	if len(volumes) > 0 {
		sort.Strings(volumes)
		return fmt.Errorf("single replica volumes would become unavailable during the upgrade: %s. Use --skip-single-replica-volume-validation to proceed",
			strings.Join(volumes, ", "))
	}
	return nil
}

// preflight runs the validations that must pass before the upgrade Job is
// created.
func (k *K8sUpgrader) preflight(ctx context.Context, rls *helm.Release) error {
	source := rls.Version()
	k.Log("🔍 Validating upgrade of release %s from version %s...", rls.Name(), source)
	if err := k.checkVersions(source); err != nil {
		return err
	}
	if !rls.MayastorIsEnabled() {
		return nil
	}
	if !k.params.SkipCordonedNodeValidation {
		if err := k.checkCordonedNodes(ctx); err != nil {
			return err
		}
	}
	if !k.params.SkipSingleReplicaVolumeValidation {
		if err := k.checkSingleReplicaVolumes(ctx); err != nil {
			return err
		}
	}
	if !k.params.SkipReplicaRebuild {
		k.Log("ℹ️  Replica rebuild progress is reported by the Mayastor REST API only and is not validated here")
	}
	return nil
}
