// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

// Package k8s provides various helper functions for interacting with Kubernetes
// APIs.
package k8s
