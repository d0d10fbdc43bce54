package rbac

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role string
		perm string
		want bool
	}{
		{RoleGate, PermScan, true},
		{RoleGate, PermViewLog, true},
		{RoleGate, PermViewStats, false},
		{RoleOrganizer, PermScan, true},
		{RoleOrganizer, PermViewStats, true},
		{"visitor", PermScan, false},
		{"", PermViewLog, false},
	}
	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.perm); got != tt.want {
			t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}

func TestIsRole(t *testing.T) {
	if !IsRole(RoleGate) || !IsRole(RoleOrganizer) {
		t.Error("known roles must be recognized")
	}
	if IsRole("admin") {
		t.Error("unknown role recognized")
	}
}
