// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package upgradejob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/blang/semver/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apiextensions "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apiextfake "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset/fake"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/yaml"

	"github.com/openebs/kubectl-openebs/k8s"
)

func crd(name string) *apiextensions.CustomResourceDefinition {
	return &apiextensions.CustomResourceDefinition{ObjectMeta: metav1.ObjectMeta{Name: name}}
}

func crdClient(names ...string) *k8s.Client {
	objs := make([]runtime.Object, 0, len(names))
	for _, n := range names {
		objs = append(objs, crd(n))
	}
	return &k8s.Client{ExtensionClientset: apiextfake.NewSimpleClientset(objs...)}
}

func TestValuesOverrides(t *testing.T) {
	tests := []struct {
		name     string
		crds     []string
		source   string
		target   string
		mayastor bool
		want     []string
	}{
		{
			name:   "no existing crds",
			source: "3.10.0",
			target: "4.1.0",
		},
		{
			name:   "one crd of a set is enough",
			crds:   []string{"volumesnapshots.snapshot.storage.k8s.io", "zfsnodes.zfs.openebs.io"},
			source: "3.10.0",
			target: "4.1.0",
			want: []string{
				"openebs-crds.csi.volumeSnapshots.enabled=false",
				"zfs-localpv.crds.zfsLocalPv.enabled=false",
			},
		},
		{
			name:   "all sets",
			crds:   []string{"volumesnapshotclasses.snapshot.storage.k8s.io", "jaegers.jaegertracing.io", "zfsvolumes.zfs.openebs.io", "lvmvolumes.local.openebs.io"},
			source: "3.0.0",
			target: "4.0.0",
			want: []string{
				"openebs-crds.csi.volumeSnapshots.enabled=false",
				"mayastor.crds.jaeger.enabled=false",
				"zfs-localpv.crds.zfsLocalPv.enabled=false",
				"lvm-localpv.crds.lvmLocalPv.enabled=false",
			},
		},
		{
			name:   "already past 4.0.0",
			crds:   []string{"jaegers.jaegertracing.io"},
			source: "4.0.0",
			target: "4.1.0",
		},
		{
			name:     "partial rebuild disabled within extents",
			source:   "3.7.0",
			target:   "3.10.0",
			mayastor: true,
			want:     []string{"mayastor.agents.core.rebuild.partial.enabled=false"},
		},
		{
			name:   "partial rebuild untouched without mayastor",
			source: "3.8.0",
			target: "3.10.0",
		},
		{
			name:     "partial rebuild upper bound is exclusive",
			source:   "3.10.0",
			target:   "4.0.0",
			mayastor: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := valuesOverrides(context.Background(), crdClient(tt.crds...),
				semver.MustParse(tt.source), semver.MustParse(tt.target), tt.mayastor)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateValuesFile(t *testing.T) {
	dir := t.TempDir()
	path, err := GenerateValuesFile(context.Background(), crdClient("lvmnodes.local.openebs.io"), dir,
		semver.MustParse("3.8.0"), semver.MustParse("4.1.0"), true)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var values map[string]interface{}
	require.NoError(t, yaml.Unmarshal(b, &values))
	assert.Equal(t, map[string]interface{}{
		"lvm-localpv": map[string]interface{}{
			"crds": map[string]interface{}{
				"lvmLocalPv": map[string]interface{}{"enabled": false},
			},
		},
		"mayastor": map[string]interface{}{
			"agents": map[string]interface{}{
				"core": map[string]interface{}{
					"rebuild": map[string]interface{}{
						"partial": map[string]interface{}{"enabled": false},
					},
				},
			},
		},
	}, values)
}

func TestGenerateValuesFileEmpty(t *testing.T) {
	path, err := GenerateValuesFile(context.Background(), crdClient(), t.TempDir(),
		semver.MustParse("4.0.0"), semver.MustParse("4.1.0"), false)
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(b))
}
