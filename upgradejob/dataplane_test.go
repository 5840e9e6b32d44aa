// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package upgradejob

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/openebs/kubectl-openebs/k8s"
)

var podsGVR = schema.GroupVersionResource{Version: "v1", Resource: "pods"}

func ioEnginePod(name, node, hash string, ready bool) *corev1.Pod {
	status := corev1.ConditionFalse
	if ready {
		status = corev1.ConditionTrue
	}
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "openebs",
			Labels: map[string]string{
				"app":                      "io-engine",
				"controller-revision-hash": hash,
			},
		},
		Spec: corev1.PodSpec{NodeName: node},
		Status: corev1.PodStatus{
			Conditions: []corev1.PodCondition{{Type: corev1.PodReady, Status: status}},
		},
	}
}

func controllerRevision(name string, revision int64, labels map[string]string) *appsv1.ControllerRevision {
	return &appsv1.ControllerRevision{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "openebs", Labels: labels},
		Revision:   revision,
	}
}

func revisions() []runtime.Object {
	return []runtime.Object{
		controllerRevision("openebs-io-engine-old", 1, map[string]string{"app": "io-engine", "controller-revision-hash": "old"}),
		controllerRevision("openebs-io-engine-new", 2, map[string]string{"app": "io-engine", "controller-revision-hash": "new"}),
	}
}

// replaceOnDelete schedules a ready pod running revision hash on the node of
// every deleted pod.
func replaceOnDelete(t *testing.T, cs *fake.Clientset, hash string) *[]string {
	deleted := []string{}
	cs.PrependReactor("delete", "pods", func(a k8stesting.Action) (bool, runtime.Object, error) {
		name := a.(k8stesting.DeleteAction).GetName()
		obj, err := cs.Tracker().Get(podsGVR, "openebs", name)
		require.NoError(t, err)
		old := obj.(*corev1.Pod)
		deleted = append(deleted, name)
		require.NoError(t, cs.Tracker().Create(podsGVR, ioEnginePod(name+"-new", old.Spec.NodeName, hash, true), "openebs"))
		return false, nil, nil
	})
	return &deleted
}

func newTestRestarter(cs *fake.Clientset, timeout time.Duration) *DataPlaneRestarter {
	r := NewDataPlaneRestarter(&k8s.Client{Clientset: cs}, "openebs")
	r.Interval = time.Millisecond
	r.Timeout = timeout
	return r
}

func TestRevisionHash(t *testing.T) {
	assert.Equal(t, "abc", revisionHash(controllerRevision("io-engine-xyz", 1, map[string]string{"controller-revision-hash": "abc"})))
	assert.Equal(t, "7d9f8c", revisionHash(controllerRevision("openebs-io-engine-7d9f8c", 1, nil)))
}

func TestRestartDataPlane(t *testing.T) {
	objs := append(revisions(),
		ioEnginePod("io-engine-b", "node-b", "old", true),
		ioEnginePod("io-engine-a", "node-a", "old", true),
		ioEnginePod("io-engine-c", "node-c", "new", true),
	)
	cs := fake.NewSimpleClientset(objs...)
	deleted := replaceOnDelete(t, cs, "new")

	require.NoError(t, newTestRestarter(cs, time.Second).Restart(context.Background()))
	assert.Equal(t, []string{"io-engine-a", "io-engine-b"}, *deleted)

	pods, err := cs.CoreV1().Pods("openebs").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	for _, p := range pods.Items {
		assert.Equal(t, "new", p.Labels["controller-revision-hash"], p.Name)
	}
}

func TestRestartDataPlaneUpToDate(t *testing.T) {
	cs := fake.NewSimpleClientset(append(revisions(), ioEnginePod("io-engine-a", "node-a", "new", true))...)
	deleted := replaceOnDelete(t, cs, "new")

	require.NoError(t, newTestRestarter(cs, time.Second).Restart(context.Background()))
	assert.Empty(t, *deleted)
}

func TestRestartDataPlaneReplacementNotReady(t *testing.T) {
	cs := fake.NewSimpleClientset(append(revisions(), ioEnginePod("io-engine-a", "node-a", "old", true))...)

	err := newTestRestarter(cs, 20*time.Millisecond).Restart(context.Background())
	assert.ErrorContains(t, err, "io-engine pod on node node-a did not become ready")
}

func TestRestartDataPlaneNoRevisions(t *testing.T) {
	cs := fake.NewSimpleClientset(ioEnginePod("io-engine-a", "node-a", "old", true))

	err := newTestRestarter(cs, time.Second).Restart(context.Background())
	assert.EqualError(t, err, "no controller revisions found for label app=io-engine in namespace openebs")
}
