// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of OpenEBS

package upgrade

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	eventsv1 "k8s.io/api/events/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/openebs/kubectl-openebs/k8s"
)

// pagedEventLister serves one page per call and records the continue tokens
// it was asked for.
type pagedEventLister struct {
	pages     [][]eventsv1.Event
	continues []string
}

func (p *pagedEventLister) ListEvents(_ context.Context, _ string, o metav1.ListOptions) (*eventsv1.EventList, error) {
	p.continues = append(p.continues, o.Continue)
	i := len(p.continues) - 1
	l := &eventsv1.EventList{Items: p.pages[i]}
	if i < len(p.pages)-1 {
		l.Continue = string(rune('a' + i))
	}
	return l, nil
}

func jobEvent(name, jobName, reason, action, note string, at time.Time) *eventsv1.Event {
	return &eventsv1.Event{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "openebs"},
		EventTime:  metav1.NewMicroTime(at),
		Reason:     reason,
		Action:     action,
		Note:       note,
		Regarding:  corev1.ObjectReference{Kind: "Job", Name: jobName, Namespace: "openebs"},
	}
}

func TestListEventsPaginates(t *testing.T) {
	now := time.Now()
	l := &pagedEventLister{pages: [][]eventsv1.Event{
		{*jobEvent("e1", "j", "r", "", "", now)},
		{*jobEvent("e2", "j", "r", "", "", now)},
		{*jobEvent("e3", "j", "r", "", "", now)},
	}}

	events, err := ListEvents(context.Background(), l, "openebs", "", "")
	require.NoError(t, err)
	assert.Len(t, events, 3)
	assert.Equal(t, []string{"", "a", "b"}, l.continues)
}

func TestLatestUpgradeEvent(t *testing.T) {
	now := time.Now()
	cs := fake.NewSimpleClientset(
		jobEvent("old", "openebs-upgrade-develop", "OpenebsUpgrade", ActionUpgradingControlPlane, "", now.Add(-time.Minute)),
		jobEvent("new", "openebs-upgrade-develop", "OpenebsUpgrade", ActionSuccessfulUpgrade, "", now),
		jobEvent("other-reason", "openebs-upgrade-develop", "BackoffLimitExceeded", "", "", now.Add(time.Minute)),
		jobEvent("other-job", "unrelated", "OpenebsUpgrade", "", "", now.Add(time.Hour)),
	)
	client := &k8s.Client{Clientset: cs}

	e, err := LatestUpgradeEvent(context.Background(), client, "openebs", "openebs-upgrade-develop")
	require.NoError(t, err)
	assert.Equal(t, "new", e.Name)

	_, err = LatestUpgradeEvent(context.Background(), client, "openebs", "missing")
	assert.ErrorIs(t, err, ErrNoUpgradeEvent)
}

func TestDeleteOlderUpgradeEvents(t *testing.T) {
	now := time.Now()
	cs := fake.NewSimpleClientset(
		jobEvent("a", "openebs-upgrade-develop", "OpenebsUpgrade", "", "", now),
		jobEvent("b", "openebs-upgrade-develop", "BackoffLimitExceeded", "", "", now),
		jobEvent("c", "unrelated", "OpenebsUpgrade", "", "", now),
	)
	client := &k8s.Client{Clientset: cs}

	require.NoError(t, DeleteOlderUpgradeEvents(context.Background(), client, "openebs", "openebs-upgrade-develop"))

	l, err := cs.EventsV1().Events("openebs").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	require.Len(t, l.Items, 1)
	assert.Equal(t, "c", l.Items[0].Name)
}

func TestPublishAndDecode(t *testing.T) {
	cs := fake.NewSimpleClientset()
	client := &k8s.Client{Clientset: cs}
	p := &EventPublisher{
		Client:      client,
		Namespace:   "openebs",
		JobName:     "openebs-upgrade-develop",
		PodName:     "openebs-upgrade-develop-x7k2p",
		FromVersion: "3.10.0",
		ToVersion:   "4.1.0",
	}
	require.NoError(t, p.Publish(context.Background(), ActionValidationFailed, "bad source version"))

	e, err := LatestUpgradeEvent(context.Background(), client, "openebs", "openebs-upgrade-develop")
	require.NoError(t, err)
	assert.Equal(t, ActionValidationFailed, e.Action)
	assert.Equal(t, corev1.EventTypeWarning, e.Type)
	assert.Equal(t, "openebs-upgrade-develop-x7k2p", e.ReportingInstance)

	ue, err := DecodeUpgradeEvent(e)
	require.NoError(t, err)
	assert.Equal(t, UpgradeEvent{FromVersion: "3.10.0", ToVersion: "4.1.0", Message: "bad source version"}, *ue)
	assert.JSONEq(t, `{"fromVersion":"3.10.0","toVersion":"4.1.0","message":"bad source version"}`, e.Note)
}

func TestDecodeUpgradeEventErrors(t *testing.T) {
	_, err := DecodeUpgradeEvent(&eventsv1.Event{})
	assert.EqualError(t, err, "No message present in upgrade event")

	_, err = DecodeUpgradeEvent(&eventsv1.Event{Note: "{"})
	assert.ErrorContains(t, err, "Failed to deserialize upgrade event")
}
