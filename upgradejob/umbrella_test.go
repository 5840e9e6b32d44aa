// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package upgradejob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/blang/semver/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chartutil"
	kubefake "helm.sh/helm/v3/pkg/kube/fake"
	"helm.sh/helm/v3/pkg/release"
	"helm.sh/helm/v3/pkg/storage"
	"helm.sh/helm/v3/pkg/storage/driver"
	"sigs.k8s.io/yaml"
)

func testChart(version string) *chart.Chart {
	return &chart.Chart{
		Metadata: &chart.Metadata{
			APIVersion: chart.APIVersionV2,
			Name:       "openebs",
			Version:    version,
		},
		Templates: []*chart.File{
			{Name: "templates/configmap.yaml", Data: []byte("apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: openebs\n")},
		},
	}
}

func actionConfig(t *testing.T, d driver.Driver) *action.Configuration {
	t.Helper()
	return &action.Configuration{
		Releases:     storage.Init(d),
		KubeClient:   &kubefake.PrintingKubeClient{Out: io.Discard},
		Capabilities: chartutil.DefaultCapabilities,
		Log:          func(string, ...interface{}) {},
	}
}

func deployedRelease(version string, config map[string]interface{}) *release.Release {
	return &release.Release{
		Name:      "openebs",
		Namespace: "openebs",
		Version:   1,
		Info:      &release.Info{Status: release.StatusDeployed},
		Chart:     testChart(version),
		Config:    config,
	}
}

func TestUmbrellaUpgrader(t *testing.T) {
	cfg := actionConfig(t, driver.NewMemory())
	require.NoError(t, cfg.Releases.Create(deployedRelease("3.10.0", map[string]interface{}{"foo": "bar"})))

	valuesFile := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(valuesFile, []byte("mayastor:\n  enabled: false\n"), 0o600))

	u, err := NewUmbrellaUpgrader(cfg, testChart("4.1.0"), UmbrellaUpgraderOptions{
		Namespace:     "openebs",
		ReleaseName:   "openebs",
		ValuesFile:    valuesFile,
		Set:           "a=b,c=1",
		SourceVersion: semver.MustParse("3.10.0"),
	})
	require.NoError(t, err)
	assert.Equal(t, semver.MustParse("3.10.0"), u.SourceVersion())
	assert.Equal(t, semver.MustParse("4.1.0"), u.TargetVersion())

	run, err := u.DryRun(context.Background())
	require.NoError(t, err)

	// The dry-run does not record a release.
	last, err := cfg.Releases.Last("openebs")
	require.NoError(t, err)
	assert.Equal(t, 1, last.Version)

	out, err := run(context.Background())
	require.NoError(t, err)
	var vals map[string]interface{}
	require.NoError(t, yaml.Unmarshal(out, &vals))
	assert.Equal(t, map[string]interface{}{
		"foo":      "bar",
		"a":        "b",
		"c":        float64(1),
		"mayastor": map[string]interface{}{"enabled": false},
	}, vals)

	last, err = cfg.Releases.Last("openebs")
	require.NoError(t, err)
	assert.Equal(t, 2, last.Version)
	assert.Equal(t, "4.1.0", last.Chart.Metadata.Version)
}

func TestUmbrellaUpgraderMissingRelease(t *testing.T) {
	cfg := actionConfig(t, driver.NewMemory())
	u, err := NewUmbrellaUpgrader(cfg, testChart("4.1.0"), UmbrellaUpgraderOptions{
		Namespace:   "openebs",
		ReleaseName: "openebs",
	})
	require.NoError(t, err)

	_, err = u.DryRun(context.Background())
	assert.ErrorContains(t, err, "helm upgrade of release openebs failed")
}

func TestNewUmbrellaUpgraderInvalidVersion(t *testing.T) {
	_, err := NewUmbrellaUpgrader(actionConfig(t, driver.NewMemory()), testChart("latest"), UmbrellaUpgraderOptions{})
	assert.ErrorContains(t, err, `invalid chart version "latest"`)
}
