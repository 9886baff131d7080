package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComplaint_IsLocked(t *testing.T) {
	holder := "emp-1"
	tests := []struct {
		name      string
		status    ComplaintStatus
		responder *string
		want      bool
	}{
		{name: "in progress with responder", status: ComplaintStatusInProgress, responder: &holder, want: true},
		{name: "in progress without responder", status: ComplaintStatusInProgress, responder: nil, want: false},
		{name: "pending with responder", status: ComplaintStatusPending, responder: &holder, want: false},
		{name: "resolved with responder", status: ComplaintStatusResolved, responder: &holder, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Complaint{Status: tt.status, RespondedByID: tt.responder}
			assert.Equal(t, tt.want, c.IsLocked())
		})
	}
}

func TestComplaint_LockedAgainst(t *testing.T) {
	holder := "emp-1"
	c := &Complaint{Status: ComplaintStatusInProgress, RespondedByID: &holder}

	assert.False(t, c.LockedAgainst("emp-1"), "holder is never blocked by its own lock")
	assert.True(t, c.LockedAgainst("emp-2"))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ComplaintStatus
		want     bool
	}{
		{ComplaintStatusPending, ComplaintStatusInProgress, true},
		{ComplaintStatusPending, ComplaintStatusResolved, true},
		{ComplaintStatusInProgress, ComplaintStatusRejected, true},
		{ComplaintStatusInProgress, ComplaintStatusPending, false},
		{ComplaintStatusResolved, ComplaintStatusInProgress, false},
		{ComplaintStatusClosed, ComplaintStatusResolved, false},
		{ComplaintStatusRejected, ComplaintStatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestEnumerations_Valid(t *testing.T) {
	assert.True(t, ComplaintTypeCorruption.Valid())
	assert.False(t, ComplaintType("NOISE").Valid())
	assert.True(t, GovernorateAleppo.Valid())
	assert.False(t, Governorate("ATLANTIS").Valid())
	assert.True(t, AgencyHealth.Valid())
	assert.False(t, GovernmentAgency("").Valid())
	assert.True(t, ComplaintStatusClosed.Terminal())
	assert.False(t, ComplaintStatusInProgress.Terminal())
	assert.False(t, ComplaintStatus("ARCHIVED").Valid())
}
