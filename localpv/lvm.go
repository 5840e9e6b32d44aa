// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package localpv

import (
	"context"
	"strconv"

	"github.com/samber/lo"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type LVMVolume struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   LVMVolumeSpec   `json:"spec"`
	Status LVMVolumeStatus `json:"status,omitempty"`
}

type LVMVolumeSpec struct {
	OwnerNodeID   string `json:"ownerNodeID"`
	VolGroup      string `json:"volGroup"`
	VgPattern     string `json:"vgPattern,omitempty"`
	Capacity      string `json:"capacity"`
	Shared        string `json:"shared,omitempty"`
	ThinProvision string `json:"thinProvision,omitempty"`
}

type LVMVolumeStatus struct {
	State string `json:"state,omitempty"`
}

type LVMNode struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	VolumeGroups []VolumeGroup `json:"volumeGroups"`
}

type VolumeGroup struct {
	Name    string            `json:"name"`
	UUID    string            `json:"uuid"`
	Size    resource.Quantity `json:"size"`
	Free    resource.Quantity `json:"free"`
	LVCount int32             `json:"lvCount"`
	PVCount int32             `json:"pvCount"`
}

func ListLVMVolumes(ctx context.Context, client Client, namespace, node string) ([]LVMVolume, error) {
	vols, err := listAll[LVMVolume](ctx, client, LVMVolumesGVR, namespace)
	if err != nil || node == "" {
		return vols, err
	}
	return lo.Filter(vols, func(v LVMVolume, _ int) bool { return v.Spec.OwnerNodeID == node }), nil
}

func ListLVMNodes(ctx context.Context, client Client, namespace string) ([]LVMNode, error) {
	return listAll[LVMNode](ctx, client, LVMNodesGVR, namespace)
}

// GetLVMVolumes prints the LVM volumes as a table.
func GetLVMVolumes(ctx context.Context, client Client, p Parameters) error {
	vols, err := ListLVMVolumes(ctx, client, p.Namespace, p.Node)
	if err != nil {
		return err
	}
	rows := make([][]interface{}, 0, len(vols))
	for _, v := range vols {
		rows = append(rows, []interface{}{v.Name, v.Spec.OwnerNodeID, v.Spec.VolGroup, v.Spec.Capacity, v.Spec.ThinProvision, v.Status.State})
	}
	return printTable(p.Writer, []string{"Name", "Node", "Volume Group", "Capacity", "Thin", "Status"}, rows)
}

// GetLVMNodes prints one row per volume group of every node.
func GetLVMNodes(ctx context.Context, client Client, p Parameters) error {
	nodes, err := ListLVMNodes(ctx, client, p.Namespace)
	if err != nil {
		return err
	}
	var rows [][]interface{}
	for _, n := range nodes {
		for _, vg := range n.VolumeGroups {
			rows = append(rows, []interface{}{n.Name, vg.Name, vg.Size.String(), vg.Free.String(), strconv.Itoa(int(vg.LVCount))})
		}
	}
	return printTable(p.Writer, []string{"Node", "Volume Group", "Size", "Free", "LVs"}, rows)
}
