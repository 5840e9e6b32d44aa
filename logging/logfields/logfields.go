// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

// Package logfields defines common logging fields which are used across packages
package logfields

const (
	// LogSubsys is the field denoting the subsystem when logging
	LogSubsys = "subsys"

	// Signal is the field to print os signals on exit etc.
	Signal = "signal"

	// K8sNamespace is the namespace of a Kubernetes object
	K8sNamespace = "k8sNamespace"

	// Release is the helm release name
	Release = "release"

	// HelmDriver is the helm storage driver
	HelmDriver = "helmDriver"

	// Job is the name of the upgrade Job
	Job = "job"

	// Pod is the name of a Kubernetes pod
	Pod = "pod"

	// NodeName is a human readable name for the node
	NodeName = "nodeName"

	// Kind is the kind of a Kubernetes object
	Kind = "kind"

	// Name is the name of a Kubernetes object
	Name = "name"

	// SourceVersion is the chart version being upgraded from
	SourceVersion = "sourceVersion"

	// TargetVersion is the chart version being upgraded to
	TargetVersion = "targetVersion"

	// Action is the action recorded on an upgrade event
	Action = "action"

	// Path is a filesystem path
	Path = "path"

	// Revision is a controller revision hash
	Revision = "revision"
)
