package validator

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vvandenschrieck/tlca-backend/internal/models"
)

var courseCodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{1,49}$`)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()
	registerBusinessRules(validate)

	return &BusinessValidator{validate: validate}
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateInvitationSend validates invitation sending business rules
func (bv *BusinessValidator) ValidateInvitationSend(req *InvitationSendRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	if strings.TrimSpace(req.Email) != req.Email {
		errors = append(errors, ValidationError{
			Field:   "email",
			Message: "must not contain leading or trailing whitespace",
			Value:   req.Email,
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidateGroupUpdate validates group assignment business rules against the
// course's current group lists
func (bv *BusinessValidator) ValidateGroupUpdate(req *GroupUpdateRequest, course *models.Course) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	if course != nil {
		groups := course.GroupsOf(req.Kind)
		if len(groups) == 0 {
			errors = append(errors, ValidationError{
				Field:   "type",
				Message: "the course defines no groups of this type",
				Value:   req.Kind,
				Rule:    "business_logic",
			})
		} else if req.Group < 0 || req.Group >= len(groups) {
			errors = append(errors, ValidationError{
				Field:   "group",
				Message: "group index is out of range",
				Value:   req.Group,
				Rule:    "business_logic",
			})
		}
	}

	return errors
}

// registerBusinessRules registers the custom rule tags on a validate
// instance. Every instance that validates request DTOs needs them: the DTO
// tags reference course_code and group_kind.
func registerBusinessRules(validate *validator.Validate) {
	// Course code validation (2-50 characters, alphanumeric with - and _)
	validate.RegisterValidation("course_code", func(fl validator.FieldLevel) bool {
		return courseCodePattern.MatchString(fl.Field().String())
	})

	// Group kind validation
	validate.RegisterValidation("group_kind", func(fl validator.FieldLevel) bool {
		kind := models.GroupKind(fl.Field().String())
		return kind == models.GroupTeaching || kind == models.GroupWorking
	})
}
