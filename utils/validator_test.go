package utils

import (
	"testing"

	"admissions-api/models"
)

func TestMobileAndUTRValidation(t *testing.T) {
	if !ValidateMobile("+91 98765-43210") {
		t.Fatalf("expected formatted mobile to validate")
	}
	if ValidateMobile("12345") {
		t.Fatalf("expected short mobile to fail")
	}
	if got := NormalizeUTR(" utr 001 abc "); got != "UTR001ABC" {
		t.Fatalf("NormalizeUTR = %q", got)
	}
	if ValidateUTR("ab") {
		t.Fatalf("expected short UTR to fail")
	}
	if !ValidateUTR("hdfc00012345") {
		t.Fatalf("expected lower-case UTR to validate after normalisation")
	}
}

func TestAdminAssignableStatus(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		allowed bool
	}{
		{raw: "Under Review", want: models.StatusReviewing, allowed: true},
		{raw: "approved", want: models.StatusAccepted, allowed: true},
		{raw: "declined", want: models.StatusRejected, allowed: true},
		{raw: "submitted", want: models.StatusSubmitted, allowed: true},
		{raw: "pending", allowed: false},
		{raw: "bogus", allowed: false},
	}
	for _, tt := range tests {
		got, ok := AdminAssignableStatus(tt.raw)
		if ok != tt.allowed {
			t.Fatalf("AdminAssignableStatus(%q) allowed = %v, want %v", tt.raw, ok, tt.allowed)
		}
		if ok && got != tt.want {
			t.Fatalf("AdminAssignableStatus(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}

	if !StatusIn("in-review", models.StatusReviewing, models.StatusAccepted) {
		t.Fatalf("expected in-review to match reviewing")
	}
}
