// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package upgradejob

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blang/semver/v4"
	"github.com/samber/lo"
	"helm.sh/helm/v3/pkg/strvals"
	apiextensions "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/openebs/kubectl-openebs/defaults"
	"github.com/openebs/kubectl-openebs/logging/logfields"
)

type crdLister interface {
	ListCRDs(ctx context.Context, opts metav1.ListOptions) (*apiextensions.CustomResourceDefinitionList, error)
}

// crdToggle is a chart value that installs a set of CRDs.
type crdToggle struct {
	key  string
	crds []string
}

// From 4.0.0 the CRDs are installed by sub-charts. Each toggle is turned off
// when any CRD of its set already exists, so helm does not try to take over
// CRDs it does not own.
var crdToggles = []crdToggle{
	{
		key: "openebs-crds.csi.volumeSnapshots.enabled",
		crds: []string{
			"volumesnapshotclasses.snapshot.storage.k8s.io",
			"volumesnapshotcontents.snapshot.storage.k8s.io",
			"volumesnapshots.snapshot.storage.k8s.io",
		},
	},
	{
		key:  "mayastor.crds.jaeger.enabled",
		crds: []string{"jaegers.jaegertracing.io"},
	},
	{
		key: "zfs-localpv.crds.zfsLocalPv.enabled",
		crds: []string{
			"zfsvolumes.zfs.openebs.io",
			"zfsnodes.zfs.openebs.io",
			"zfsbackups.zfs.openebs.io",
			"zfsrestores.zfs.openebs.io",
			"zfssnapshots.zfs.openebs.io",
		},
	},
	{
		key: "lvm-localpv.crds.lvmLocalPv.enabled",
		crds: []string{
			"lvmvolumes.local.openebs.io",
			"lvmnodes.local.openebs.io",
			"lvmsnapshots.local.openebs.io",
		},
	},
}

const partialRebuildKey = "mayastor.agents.core.rebuild.partial.enabled"

func inPartialRebuildDisableExtents(v semver.Version) bool {
	lower, upper := defaults.PartialRebuildDisableExtents[0], defaults.PartialRebuildDisableExtents[1]
	return v.GTE(lower) && v.LT(upper)
}

// valuesOverrides returns the "key=value" helm values the upgrade from source
// to target needs.
func valuesOverrides(ctx context.Context, client crdLister, source, target semver.Version, mayastorEnabled bool) ([]string, error) {
	var overrides []string

	if source.LT(defaults.FourDotO) && target.GTE(defaults.FourDotO) {
		crds, err := client.ListCRDs(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, fmt.Errorf("unable to list CRDs: %w", err)
		}
		names := lo.Map(crds.Items, func(crd apiextensions.CustomResourceDefinition, _ int) string {
			return crd.Name
		})
		for _, t := range crdToggles {
			if lo.Some(names, t.crds) {
				overrides = append(overrides, t.key+"=false")
			}
		}
	}

	if mayastorEnabled && inPartialRebuildDisableExtents(source) {
		overrides = append(overrides, partialRebuildKey+"=false")
	}
	return overrides, nil
}

// GenerateValuesFile writes a helm values file into chartDir with the
// overrides the upgrade from source to target needs, and returns its path.
// The caller removes the file.
func GenerateValuesFile(ctx context.Context, client crdLister, chartDir string, source, target semver.Version, mayastorEnabled bool) (string, error) {
	overrides, err := valuesOverrides(ctx, client, source, target, mayastorEnabled)
	if err != nil {
		return "", err
	}

	values := map[string]interface{}{}
	if len(overrides) > 0 {
		if err := strvals.ParseInto(strings.Join(overrides, ","), values); err != nil {
			return "", fmt.Errorf("unable to parse values overrides %q: %w", overrides, err)
		}
	}
	b, err := yaml.Marshal(values)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(chartDir, "upgrade-values-*.yaml")
	if err != nil {
		return "", fmt.Errorf("unable to create values file in %s: %w", chartDir, err)
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		os.Remove(f.Name())
		return "", err
	}

	log.WithFields(map[string]interface{}{
		logfields.Path:          f.Name(),
		logfields.SourceVersion: source.String(),
		logfields.TargetVersion: target.String(),
	}).Infof("Generated helm values file with %d overrides", len(overrides))
	return f.Name(), nil
}
