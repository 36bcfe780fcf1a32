package validator

import (
	"testing"

	"github.com/vvandenschrieck/tlca-backend/internal/models"
)

// The listing and group DTO tags reference the custom course_code and
// group_kind rules, so the default Validate path must know them.
func TestValidateListRequest(t *testing.T) {
	v := New()

	if errs := v.Validate(&RegistrationListRequest{}); errs != nil {
		t.Fatalf("empty list request rejected: %v", errs)
	}

	valid := "PROG-101"
	if errs := v.Validate(&RegistrationListRequest{CourseCode: &valid}); errs != nil {
		t.Fatalf("valid course code rejected: %v", errs)
	}

	invalid := "!"
	errs := v.Validate(&RegistrationListRequest{CourseCode: &invalid})
	if len(errs) == 0 {
		t.Fatal("malformed course code accepted")
	}
	if errs[0].Rule != "course_code" {
		t.Errorf("expected course_code rule failure, got %q", errs[0].Rule)
	}
}

func TestValidateGroupUpdateRequest(t *testing.T) {
	v := New()

	if errs := v.Validate(&GroupUpdateRequest{Kind: models.GroupTeaching, Group: 0}); errs != nil {
		t.Fatalf("valid group request rejected: %v", errs)
	}

	errs := v.Validate(&GroupUpdateRequest{Kind: "squad", Group: 0})
	if len(errs) == 0 {
		t.Fatal("unknown group kind accepted")
	}
	if errs[0].Rule != "group_kind" {
		t.Errorf("expected group_kind rule failure, got %q", errs[0].Rule)
	}
}

// The business validator and the tag validator share one instance; rules
// registered for one must hold for the other.
func TestBusinessValidatorSharesRules(t *testing.T) {
	v := New()

	req := &InvitationSendRequest{Email: "student@example.com"}
	if errs := v.GetBusinessValidator().ValidateInvitationSend(req); errs != nil {
		t.Fatalf("valid invitation rejected: %v", errs)
	}
}
