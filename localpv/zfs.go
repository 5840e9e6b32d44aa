// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package localpv

import (
	"context"

	"github.com/samber/lo"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type ZFSVolume struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ZFSVolumeSpec   `json:"spec"`
	Status ZFSVolumeStatus `json:"status,omitempty"`
}

type ZFSVolumeSpec struct {
	OwnerNodeID   string `json:"ownerNodeID"`
	PoolName      string `json:"poolName"`
	Capacity      string `json:"capacity"`
	VolumeType    string `json:"volumeType"`
	FsType        string `json:"fsType,omitempty"`
	Compression   string `json:"compression,omitempty"`
	ThinProvision string `json:"thinProvision,omitempty"`
}

type ZFSVolumeStatus struct {
	State string `json:"state,omitempty"`
}

type ZFSNode struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Pools []ZFSPool `json:"pools"`
}

type ZFSPool struct {
	Name string            `json:"name"`
	UUID string            `json:"uuid"`
	Free resource.Quantity `json:"free"`
	Used resource.Quantity `json:"used"`
}

func ListZFSVolumes(ctx context.Context, client Client, namespace, node string) ([]ZFSVolume, error) {
	vols, err := listAll[ZFSVolume](ctx, client, ZFSVolumesGVR, namespace)
	if err != nil || node == "" {
		return vols, err
	}
	return lo.Filter(vols, func(v ZFSVolume, _ int) bool { return v.Spec.OwnerNodeID == node }), nil
}

func ListZFSNodes(ctx context.Context, client Client, namespace string) ([]ZFSNode, error) {
	return listAll[ZFSNode](ctx, client, ZFSNodesGVR, namespace)
}

// GetZFSVolumes prints the ZFS volumes as a table.
func GetZFSVolumes(ctx context.Context, client Client, p Parameters) error {
	vols, err := ListZFSVolumes(ctx, client, p.Namespace, p.Node)
	if err != nil {
		return err
	}
	rows := make([][]interface{}, 0, len(vols))
	for _, v := range vols {
		rows = append(rows, []interface{}{v.Name, v.Spec.OwnerNodeID, v.Spec.PoolName, v.Spec.Capacity, v.Spec.VolumeType, v.Spec.FsType, v.Status.State})
	}
	return printTable(p.Writer, []string{"Name", "Node", "Pool", "Capacity", "Type", "FsType", "Status"}, rows)
}

// GetZFSNodes prints one row per ZFS pool of every node.
func GetZFSNodes(ctx context.Context, client Client, p Parameters) error {
	nodes, err := ListZFSNodes(ctx, client, p.Namespace)
	if err != nil {
		return err
	}
	var rows [][]interface{}
	for _, n := range nodes {
		for _, pool := range n.Pools {
			rows = append(rows, []interface{}{n.Name, pool.Name, pool.Free.String(), pool.Used.String()})
		}
	}
	return printTable(p.Writer, []string{"Node", "Pool", "Free", "Used"}, rows)
}
