// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package localpv

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/openebs/kubectl-openebs/k8s"
)

var listKinds = map[schema.GroupVersionResource]string{
	ZFSVolumesGVR: "ZFSVolumeList",
	ZFSNodesGVR:   "ZFSNodeList",
	LVMVolumesGVR: "LVMVolumeList",
	LVMNodesGVR:   "LVMNodeList",
}

func newCR(gvr schema.GroupVersionResource, kind, name string, fields map[string]interface{}) *unstructured.Unstructured {
	u := &unstructured.Unstructured{Object: fields}
	if u.Object == nil {
		u.Object = map[string]interface{}{}
	}
	u.SetAPIVersion(gvr.GroupVersion().String())
	u.SetKind(kind)
	u.SetNamespace("openebs")
	u.SetName(name)
	return u
}

func zfsVolume(name, node string) runtime.Object {
	return newCR(ZFSVolumesGVR, "ZFSVolume", name, map[string]interface{}{
		"spec": map[string]interface{}{
			"ownerNodeID": node,
			"poolName":    "zfspv-pool",
			"capacity":    "4294967296",
			"volumeType":  "DATASET",
			"fsType":      "zfs",
		},
		"status": map[string]interface{}{"state": "Ready"},
	})
}

func lvmVolume(name, node string) runtime.Object {
	return newCR(LVMVolumesGVR, "LVMVolume", name, map[string]interface{}{
		"spec": map[string]interface{}{
			"ownerNodeID":   node,
			"volGroup":      "lvmvg",
			"capacity":      "1073741824",
			"thinProvision": "no",
		},
		"status": map[string]interface{}{"state": "Ready"},
	})
}

func newDynamicClient(objs ...runtime.Object) *k8s.Client {
	return &k8s.Client{DynamicClientset: dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), listKinds, objs...)}
}

func TestListZFSVolumes(t *testing.T) {
	c := newDynamicClient(zfsVolume("pvc-1", "node-1"), zfsVolume("pvc-2", "node-2"))

	vols, err := ListZFSVolumes(context.Background(), c, "openebs", "")
	require.NoError(t, err)
	require.Len(t, vols, 2)

	vols, err = ListZFSVolumes(context.Background(), c, "openebs", "node-2")
	require.NoError(t, err)
	require.Len(t, vols, 1)
	assert.Equal(t, "pvc-2", vols[0].Name)
	assert.Equal(t, ZFSVolumeSpec{
		OwnerNodeID: "node-2",
		PoolName:    "zfspv-pool",
		Capacity:    "4294967296",
		VolumeType:  "DATASET",
		FsType:      "zfs",
	}, vols[0].Spec)
	assert.Equal(t, "Ready", vols[0].Status.State)
}

func TestGetZFSVolumes(t *testing.T) {
	var out bytes.Buffer
	c := newDynamicClient(zfsVolume("pvc-1", "node-1"))

	require.NoError(t, GetZFSVolumes(context.Background(), c, Parameters{Namespace: "openebs", Writer: &out}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"NAME", "NODE", "POOL", "CAPACITY", "TYPE", "FSTYPE", "STATUS"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"pvc-1", "node-1", "zfspv-pool", "4294967296", "DATASET", "zfs", "Ready"}, strings.Fields(lines[1]))
}

func TestGetZFSNodes(t *testing.T) {
	var out bytes.Buffer
	c := newDynamicClient(newCR(ZFSNodesGVR, "ZFSNode", "node-1", map[string]interface{}{
		"pools": []interface{}{
			map[string]interface{}{"name": "zfspv-pool", "uuid": "123", "free": "10Gi", "used": "2Gi"},
		},
	}))

	nodes, err := ListZFSNodes(context.Background(), c, "openebs")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.True(t, resource.MustParse("10Gi").Equal(nodes[0].Pools[0].Free))

	require.NoError(t, GetZFSNodes(context.Background(), c, Parameters{Namespace: "openebs", Writer: &out}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"node-1", "zfspv-pool", "10Gi", "2Gi"}, strings.Fields(lines[1]))
}

func TestGetLVMVolumes(t *testing.T) {
	var out bytes.Buffer
	c := newDynamicClient(lvmVolume("pvc-1", "node-1"), lvmVolume("pvc-2", "node-2"))

	require.NoError(t, GetLVMVolumes(context.Background(), c, Parameters{Namespace: "openebs", Node: "node-1", Writer: &out}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"pvc-1", "node-1", "lvmvg", "1073741824", "no", "Ready"}, strings.Fields(lines[1]))
}

func TestGetLVMNodes(t *testing.T) {
	var out bytes.Buffer
	c := newDynamicClient(newCR(LVMNodesGVR, "LVMNode", "node-1", map[string]interface{}{
		"volumeGroups": []interface{}{
			map[string]interface{}{"name": "lvmvg", "uuid": "abc", "size": "20Gi", "free": "15Gi", "lvCount": int64(2), "pvCount": int64(1)},
		},
	}))

	require.NoError(t, GetLVMNodes(context.Background(), c, Parameters{Namespace: "openebs", Writer: &out}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"node-1", "lvmvg", "20Gi", "15Gi", "2"}, strings.Fields(lines[1]))
}

func TestListNotInstalled(t *testing.T) {
	c := newDynamicClient()
	c.DynamicClientset.(*dynamicfake.FakeDynamicClient).PrependReactor("list", "lvmvolumes", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, k8serrors.NewNotFound(LVMVolumesGVR.GroupResource(), "")
	})

	vols, err := ListLVMVolumes(context.Background(), c, "openebs", "")
	require.NoError(t, err)
	assert.Empty(t, vols)

	var out bytes.Buffer
	require.NoError(t, GetLVMVolumes(context.Background(), c, Parameters{Namespace: "openebs", Writer: &out}))
	assert.Equal(t, "No resources found.\n", out.String())
}

func hostpathPV(name, provisioner, node string) *corev1.PersistentVolume {
	return &corev1.PersistentVolume{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Annotations: map[string]string{"pv.kubernetes.io/provisioned-by": provisioner},
		},
		Spec: corev1.PersistentVolumeSpec{
			Capacity: corev1.ResourceList{corev1.ResourceStorage: resource.MustParse("5Gi")},
			ClaimRef: &corev1.ObjectReference{Namespace: "default", Name: "data-" + name},
			PersistentVolumeSource: corev1.PersistentVolumeSource{
				Local: &corev1.LocalVolumeSource{Path: "/var/openebs/local/" + name},
			},
			NodeAffinity: &corev1.VolumeNodeAffinity{
				Required: &corev1.NodeSelector{
					NodeSelectorTerms: []corev1.NodeSelectorTerm{{
						MatchExpressions: []corev1.NodeSelectorRequirement{{
							Key:      "kubernetes.io/hostname",
							Operator: corev1.NodeSelectorOpIn,
							Values:   []string{node},
						}},
					}},
				},
			},
		},
		Status: corev1.PersistentVolumeStatus{Phase: corev1.VolumeBound},
	}
}

func TestGetHostpathVolumes(t *testing.T) {
	c := &k8s.Client{Clientset: fake.NewSimpleClientset(
		hostpathPV("pvc-1", "openebs.io/local", "node-1"),
		hostpathPV("pvc-2", "openebs.io/local", "node-2"),
		hostpathPV("pvc-3", "zfs.csi.openebs.io", "node-1"),
	)}

	vols, err := ListHostpathVolumes(context.Background(), c, "")
	require.NoError(t, err)
	assert.Len(t, vols, 2)

	var out bytes.Buffer
	require.NoError(t, GetHostpathVolumes(context.Background(), c, Parameters{Node: "node-1", Writer: &out}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"NAME", "CLAIM", "NODE", "PATH", "CAPACITY", "STATUS"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"pvc-1", "default/data-pvc-1", "node-1", "/var/openebs/local/pvc-1", "5Gi", "Bound"}, strings.Fields(lines[1]))
}
