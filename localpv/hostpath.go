// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package localpv

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	hostpathProvisioner     = "openebs.io/local"
	provisionedByAnnotation = "pv.kubernetes.io/provisioned-by"
	hostnameLabelKey        = "kubernetes.io/hostname"
)

// HostpathVolume is a PV provisioned by the hostpath local PV provisioner.
type HostpathVolume struct {
	Name     string
	Claim    string
	Node     string
	Path     string
	Capacity string
	Status   corev1.PersistentVolumePhase
}

func hostpathNode(pv *corev1.PersistentVolume) string {
	if pv.Spec.NodeAffinity == nil || pv.Spec.NodeAffinity.Required == nil {
		return ""
	}
	for _, term := range pv.Spec.NodeAffinity.Required.NodeSelectorTerms {
		for _, e := range term.MatchExpressions {
			if e.Key == hostnameLabelKey && len(e.Values) > 0 {
				return e.Values[0]
			}
		}
	}
	return ""
}

func newHostpathVolume(pv *corev1.PersistentVolume) HostpathVolume {
	v := HostpathVolume{
		Name:   pv.Name,
		Node:   hostpathNode(pv),
		Status: pv.Status.Phase,
	}
	if ref := pv.Spec.ClaimRef; ref != nil {
		v.Claim = fmt.Sprintf("%s/%s", ref.Namespace, ref.Name)
	}
	switch {
	case pv.Spec.Local != nil:
		v.Path = pv.Spec.Local.Path
	case pv.Spec.HostPath != nil:
		v.Path = pv.Spec.HostPath.Path
	}
	if q, ok := pv.Spec.Capacity[corev1.ResourceStorage]; ok {
		v.Capacity = q.String()
	}
	return v
}

func ListHostpathVolumes(ctx context.Context, client Client, node string) ([]HostpathVolume, error) {
	l, err := client.ListPersistentVolumes(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("unable to list persistent volumes: %w", err)
	}
	var r []HostpathVolume
	for i := range l.Items {
		pv := &l.Items[i]
		if pv.Annotations[provisionedByAnnotation] != hostpathProvisioner {
			continue
		}
		v := newHostpathVolume(pv)
		if node != "" && v.Node != node {
			continue
		}
		r = append(r, v)
	}
	return r, nil
}

// GetHostpathVolumes prints the hostpath volumes as a table.
func GetHostpathVolumes(ctx context.Context, client Client, p Parameters) error {
	vols, err := ListHostpathVolumes(ctx, client, p.Node)
	if err != nil {
		return err
	}
	rows := make([][]interface{}, 0, len(vols))
	for _, v := range vols {
		rows = append(rows, []interface{}{v.Name, v.Claim, v.Node, v.Path, v.Capacity, string(v.Status)})
	}
	return printTable(p.Writer, []string{"Name", "Claim", "Node", "Path", "Capacity", "Status"}, rows)
}
