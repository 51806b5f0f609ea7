package invitations

import (
	"testing"

	"github.com/ascenthq/ascent/pkg/models"
)

func TestCanAdvanceForwardOnly(t *testing.T) {
	cases := []struct {
		from, to models.InvitationStatus
		want     bool
	}{
		{models.StatusPending, models.StatusSent, true},
		{models.StatusPending, models.StatusCompleted, true},
		{models.StatusSent, models.StatusOpened, true},
		{models.StatusOpened, models.StatusStarted, true},
		{models.StatusStarted, models.StatusCompleted, true},
		{models.StatusCompleted, models.StatusStarted, false},
		{models.StatusCompleted, models.StatusPending, false},
		{models.StatusStarted, models.StatusOpened, false},
		{models.StatusOpened, models.StatusSent, false},
		{models.StatusSent, models.StatusPending, false},
	}

	for _, c := range cases {
		if got := CanAdvance(c.from, c.to); got != c.want {
			t.Fatalf("CanAdvance(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestCompletedIsTerminal(t *testing.T) {
	for _, to := range []models.InvitationStatus{
		models.StatusPending, models.StatusSent, models.StatusOpened,
		models.StatusStarted, models.StatusCompleted,
	} {
		if CanAdvance(models.StatusCompleted, to) {
			t.Fatalf("COMPLETED must not advance to %s", to)
		}
	}
}

func TestValidStatus(t *testing.T) {
	if !ValidStatus(models.StatusPending) || !ValidStatus(models.StatusCompleted) {
		t.Fatalf("lifecycle states must be valid")
	}
	if ValidStatus("DELETED") {
		t.Fatalf("unknown status must be invalid")
	}
}

func TestStatusForEvent(t *testing.T) {
	if s, ok := statusForEvent(EventOpened); !ok || s != models.StatusOpened {
		t.Fatalf("opened event must map to OPENED, got %s/%v", s, ok)
	}
	if s, ok := statusForEvent(EventStarted); !ok || s != models.StatusStarted {
		t.Fatalf("started event must map to STARTED, got %s/%v", s, ok)
	}
	if _, ok := statusForEvent("deleted"); ok {
		t.Fatalf("unknown events must not map to a status")
	}
}
