// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

// Package localpv lists the volumes and nodes of the ZFS, LVM and hostpath
// local PV engines.
package localpv

import (
	"context"
	"fmt"
	"io"

	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/cli-runtime/pkg/printers"

	"github.com/openebs/kubectl-openebs/defaults"
)

var (
	ZFSVolumesGVR   = schema.GroupVersionResource{Group: "zfs.openebs.io", Version: "v1", Resource: "zfsvolumes"}
	ZFSNodesGVR     = schema.GroupVersionResource{Group: "zfs.openebs.io", Version: "v1", Resource: "zfsnodes"}
	ZFSSnapshotsGVR = schema.GroupVersionResource{Group: "zfs.openebs.io", Version: "v1", Resource: "zfssnapshots"}
	ZFSRestoresGVR  = schema.GroupVersionResource{Group: "zfs.openebs.io", Version: "v1", Resource: "zfsrestores"}
	ZFSBackupsGVR   = schema.GroupVersionResource{Group: "zfs.openebs.io", Version: "v1", Resource: "zfsbackups"}

	LVMVolumesGVR   = schema.GroupVersionResource{Group: "local.openebs.io", Version: "v1alpha1", Resource: "lvmvolumes"}
	LVMNodesGVR     = schema.GroupVersionResource{Group: "local.openebs.io", Version: "v1alpha1", Resource: "lvmnodes"}
	LVMSnapshotsGVR = schema.GroupVersionResource{Group: "local.openebs.io", Version: "v1alpha1", Resource: "lvmsnapshots"}
)

type Client interface {
	ListUnstructured(ctx context.Context, gvr schema.GroupVersionResource, namespace *string, o metav1.ListOptions) (*unstructured.UnstructuredList, error)
	ListPersistentVolumes(ctx context.Context, o metav1.ListOptions) (*corev1.PersistentVolumeList, error)
}

// listAll lists every object of gvr in namespace and converts each into a T.
// A resource whose CRD is not installed yields no objects.
func listAll[T any](ctx context.Context, client Client, gvr schema.GroupVersionResource, namespace string) ([]T, error) {
	var r []T
	opts := metav1.ListOptions{Limit: defaults.DynamicListPageSize}
	for {
		l, err := client.ListUnstructured(ctx, gvr, &namespace, opts)
		if err != nil {
			if k8serrors.IsNotFound(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("unable to list %s: %w", gvr.GroupResource(), err)
		}
		for _, u := range l.Items {
			var t T
			if err := runtime.DefaultUnstructuredConverter.FromUnstructured(u.Object, &t); err != nil {
				return nil, fmt.Errorf("unable to decode %s %s/%s: %w", gvr.GroupResource(), u.GetNamespace(), u.GetName(), err)
			}
			r = append(r, t)
		}
		if l.GetContinue() == "" {
			return r, nil
		}
		opts.Continue = l.GetContinue()
	}
}

// Parameters groups the options of the get commands.
type Parameters struct {
	Namespace string
	// Node restricts volume listings to a node when set.
	Node   string
	Writer io.Writer
}

func printTable(w io.Writer, columns []string, rows [][]interface{}) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No resources found.")
		return err
	}
	t := &metav1.Table{}
	for _, c := range columns {
		t.ColumnDefinitions = append(t.ColumnDefinitions, metav1.TableColumnDefinition{Name: c, Type: "string"})
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, metav1.TableRow{Cells: r})
	}
	return printers.NewTablePrinter(printers.PrintOptions{}).PrintObj(t, w)
}
