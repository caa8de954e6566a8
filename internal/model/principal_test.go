package model

import "testing"

func TestDeriveDisplayName_DefaultNameFallsBackToEmailLocalPart(t *testing.T) {
	p := &Principal{Name: "User", Email: "a.b@x.com"}
	if got := DeriveDisplayName(p); got != "a" {
		t.Errorf("DeriveDisplayName = %q, want %q", got, "a")
	}
}

func TestDeriveDisplayName_ExplicitName(t *testing.T) {
	p := &Principal{Name: "Jane", Email: "jane.doe@school.edu"}
	if got := DeriveDisplayName(p); got != "Jane" {
		t.Errorf("DeriveDisplayName = %q, want %q", got, "Jane")
	}
}

func TestDeriveDisplayName_NilPrincipal(t *testing.T) {
	if got := DeriveDisplayName(nil); got != DefaultDisplayName {
		t.Errorf("DeriveDisplayName(nil) = %q, want %q", got, DefaultDisplayName)
	}
}

func TestDeriveDisplayName_EmptyNameUsesEmail(t *testing.T) {
	p := &Principal{Email: "jdoe@school.edu"}
	if got := DeriveDisplayName(p); got != "jdoe" {
		t.Errorf("DeriveDisplayName = %q, want %q", got, "jdoe")
	}
}

func TestDeriveDisplayName_EmailWithoutAtSign(t *testing.T) {
	// @を含まない場合は全体をローカル部として扱う
	p := &Principal{Email: "first.last"}
	if got := DeriveDisplayName(p); got != "first" {
		t.Errorf("DeriveDisplayName = %q, want %q", got, "first")
	}
}

func TestDeriveDisplayName_EmptyLocalPartFallsBack(t *testing.T) {
	p := &Principal{Email: ".hidden@school.edu"}
	if got := DeriveDisplayName(p); got != DefaultDisplayName {
		t.Errorf("DeriveDisplayName = %q, want %q", got, DefaultDisplayName)
	}
}

func TestDeriveDisplayName_NoNameNoEmail(t *testing.T) {
	p := &Principal{ID: "u-1"}
	if got := DeriveDisplayName(p); got != DefaultDisplayName {
		t.Errorf("DeriveDisplayName = %q, want %q", got, DefaultDisplayName)
	}
}

func TestParseRole(t *testing.T) {
	if r, ok := ParseRole("Admin"); !ok || r != RoleAdmin {
		t.Errorf("ParseRole(Admin) = (%q, %v), want (admin, true)", r, ok)
	}
	if r, ok := ParseRole("student"); !ok || r != RoleStudent {
		t.Errorf("ParseRole(student) = (%q, %v), want (student, true)", r, ok)
	}
	if _, ok := ParseRole("teacher"); ok {
		t.Error("ParseRole(teacher) should be rejected")
	}
}

func TestPrincipal_IsAdmin(t *testing.T) {
	var nilPrincipal *Principal
	if nilPrincipal.IsAdmin() {
		t.Error("nil principal must not be admin")
	}
	if (&Principal{Role: RoleStudent}).IsAdmin() {
		t.Error("student must not be admin")
	}
	if !(&Principal{Role: RoleAdmin}).IsAdmin() {
		t.Error("admin role should be admin")
	}
}

func TestNormalizeRole(t *testing.T) {
	cases := map[Role]Role{
		"":          RoleStudent,
		"student":   RoleStudent,
		"Admin":     RoleAdmin,
		"superuser": RoleStudent,
	}
	for in, want := range cases {
		if got := NormalizeRole(in); got != want {
			t.Errorf("NormalizeRole(%q) = %q, want %q", in, got, want)
		}
	}
}
