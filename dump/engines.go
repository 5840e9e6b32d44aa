// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package dump

import (
	"context"
	"fmt"
	"path"

	"github.com/samber/lo"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/openebs/kubectl-openebs/defaults"
	"github.com/openebs/kubectl-openebs/localpv"
)

const (
	zfsDir      = "zfs"
	lvmDir      = "lvm"
	mayastorDir = "mayastor"

	zfsCSIDriver = "zfs.csi.openebs.io"
	lvmCSIDriver = "local.csi.openebs.io"

	volumeSnapshotClassesFileName  = "volume_snapshot_classes.yaml"
	volumeSnapshotContentsFileName = "volume_snapshot_contents.yaml"
)

// dynamicResource is a custom resource dumped through the dynamic client.
type dynamicResource struct {
	gvr      schema.GroupVersionResource
	kind     string
	fileName string
	// clusterScoped resources are listed across all namespaces.
	clusterScoped bool
}

var (
	volumeSnapshotClassesResource = dynamicResource{
		gvr:           schema.GroupVersionResource{Group: "snapshot.storage.k8s.io", Version: "v1", Resource: "volumesnapshotclasses"},
		kind:          "VolumeSnapshotClass",
		fileName:      volumeSnapshotClassesFileName,
		clusterScoped: true,
	}
	volumeSnapshotContentsResource = dynamicResource{
		gvr:           schema.GroupVersionResource{Group: "snapshot.storage.k8s.io", Version: "v1", Resource: "volumesnapshotcontents"},
		kind:          "VolumeSnapshotContent",
		fileName:      volumeSnapshotContentsFileName,
		clusterScoped: true,
	}

	zfsResources = []dynamicResource{
		{gvr: localpv.ZFSNodesGVR, kind: "ZFSNode", fileName: "zfs_nodes.yaml"},
		{gvr: localpv.ZFSVolumesGVR, kind: "ZFSVolume", fileName: "zfs_volumes.yaml"},
		{gvr: localpv.ZFSSnapshotsGVR, kind: "ZFSSnapshot", fileName: "zfs_snaps.yaml"},
		{gvr: localpv.ZFSRestoresGVR, kind: "ZFSRestore", fileName: "zfs_restores.yaml"},
		{gvr: localpv.ZFSBackupsGVR, kind: "ZFSBackup", fileName: "zfs_backups.yaml"},
	}
	lvmResources = []dynamicResource{
		{gvr: localpv.LVMNodesGVR, kind: "LVMNode", fileName: "lvm_nodes.yaml"},
		{gvr: localpv.LVMVolumesGVR, kind: "LVMVolume", fileName: "lvm_volumes.yaml"},
		{gvr: localpv.LVMSnapshotsGVR, kind: "LVMSnapshot", fileName: "lvm_snaps.yaml"},
	}
	mayastorResources = []dynamicResource{
		{
			gvr:      schema.GroupVersionResource{Group: "openebs.io", Version: "v1beta2", Resource: "diskpools"},
			kind:     "DiskPool",
			fileName: "disk_pools.yaml",
		},
	}
)

// listDynamic lists every object of r, a page at a time. A resource whose CRD
// is not installed yields an empty list.
func (c *Collector) listDynamic(ctx context.Context, r dynamicResource) (*unstructured.UnstructuredList, error) {
	var ns *string
	if !r.clusterScoped {
		ns = &c.Options.Namespace
	}
	all := &unstructured.UnstructuredList{}
	all.SetAPIVersion(r.gvr.GroupVersion().String())
	all.SetKind(r.kind + "List")

	opts := metav1.ListOptions{Limit: defaults.DynamicListPageSize}
	for {
		rctx, cancel := c.requestContext(ctx)
		l, err := c.Client.ListUnstructured(rctx, r.gvr, ns, opts)
		cancel()
		if err != nil {
			if k8serrors.IsNotFound(err) {
				c.logDebug("No %s resources found, the CRD may not be installed", r.kind)
				return all, nil
			}
			return nil, err
		}
		all.Items = append(all.Items, l.Items...)
		if l.GetContinue() == "" {
			return all, nil
		}
		opts.Continue = l.GetContinue()
	}
}

func (c *Collector) dynamicTask(dir string, r dynamicResource, filter func(unstructured.Unstructured, int) bool) Task {
	return Task{
		Description: fmt.Sprintf("Collecting %s resources", r.kind),
		Task: func(ctx context.Context) error {
			l, err := c.listDynamic(ctx, r)
			if err != nil {
				return fmt.Errorf("failed to collect %s resources: %w", r.kind, err)
			}
			if filter != nil {
				l.Items = lo.Filter(l.Items, filter)
			}
			f := path.Join(dir, r.fileName)
			if err := c.WriteList(f, l); err != nil {
				return fmt.Errorf("failed to write %s: %w", f, err)
			}
			return nil
		},
	}
}

// snapshotTasks collects the VolumeSnapshotClasses and VolumeSnapshotContents
// of a CSI driver.
func (c *Collector) snapshotTasks(dir, driver string) []Task {
	classes := c.dynamicTask(dir, volumeSnapshotClassesResource, func(u unstructured.Unstructured, _ int) bool {
		d, _, _ := unstructured.NestedString(u.Object, "driver")
		return d == driver
	})
	classes.Description = fmt.Sprintf("Collecting VolumeSnapshotClasses of %s", driver)
	contents := c.dynamicTask(dir, volumeSnapshotContentsResource, func(u unstructured.Unstructured, _ int) bool {
		d, _, _ := unstructured.NestedString(u.Object, "spec", "driver")
		return d == driver
	})
	contents.Description = fmt.Sprintf("Collecting VolumeSnapshotContents of %s", driver)
	return []Task{classes, contents}
}

func (c *Collector) engineTasks(dir string, resources []dynamicResource) []Task {
	tasks := make([]Task, 0, len(resources))
	for _, r := range resources {
		tasks = append(tasks, c.dynamicTask(dir, r, nil))
	}
	return tasks
}

func (c *Collector) mayastorTasks() []Task {
	return c.engineTasks(mayastorDir, mayastorResources)
}

func (c *Collector) zfsTasks() []Task {
	return append(c.engineTasks(zfsDir, zfsResources), c.snapshotTasks(zfsDir, zfsCSIDriver)...)
}

func (c *Collector) lvmTasks() []Task {
	return append(c.engineTasks(lvmDir, lvmResources), c.snapshotTasks(lvmDir, lvmCSIDriver)...)
}
