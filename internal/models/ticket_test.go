package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCheckInWindow(t *testing.T) {
	eventDate := time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)
	tk := Ticket{EventDate: eventDate}

	from, to, ok := tk.CheckInWindow()
	if !ok {
		t.Fatal("expected window for known event date")
	}
	if want := eventDate.Add(-4 * time.Hour); !from.Equal(want) {
		t.Errorf("from = %v, want %v", from, want)
	}
	if want := eventDate.Add(4 * time.Hour); !to.Equal(want) {
		t.Errorf("to = %v, want %v", to, want)
	}

	if _, _, ok := (&Ticket{}).CheckInWindow(); ok {
		t.Error("expected no window without event date")
	}
}

func TestSameAddress(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"0xAbC0000000000000000000000000000000000001", "0xabc0000000000000000000000000000000000001", true},
		{"0xabc0000000000000000000000000000000000001", "0xabc0000000000000000000000000000000000002", false},
		{"", "", false},
		{"0xabc0000000000000000000000000000000000001", "", false},
	}
	for _, tt := range tests {
		if got := SameAddress(tt.a, tt.b); got != tt.want {
			t.Errorf("SameAddress(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestWeiConversions(t *testing.T) {
	wei := decimal.RequireFromString("50000000000000000")
	eth := WeiToEther(wei)
	if eth.String() != "0.05" {
		t.Errorf("WeiToEther = %s, want 0.05", eth)
	}
	if back := EtherToWei(eth); !back.Equal(wei) {
		t.Errorf("EtherToWei = %s, want %s", back, wei)
	}
}
