package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/sheetledger/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		_, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		return err == nil
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// TransactionUpdate holds the editable fields of a transaction. Nil fields
// are left alone; an empty string clears the cell.
type TransactionUpdate struct {
	Category *string  `json:"category,omitempty" validate:"omitempty,max=255"`
	Note     *string  `json:"note,omitempty" validate:"omitempty,max=500"`
	Tags     []string `json:"tags,omitempty" validate:"omitempty,dive,max=50"`
}

// Fields renders the update as header-keyed cell values.
func (u TransactionUpdate) Fields() map[string]string {
	fields := map[string]string{}
	if u.Category != nil {
		fields["Category"] = *u.Category
	}
	if u.Note != nil {
		fields["Note"] = *u.Note
	}
	if u.Tags != nil {
		fields["Tags"] = JoinTags(u.Tags)
	}
	return fields
}

// NewTransaction is a row to append to a transactions sheet.
type NewTransaction struct {
	Date        string   `json:"date" validate:"required,notblank"`
	Description string   `json:"description" validate:"required,notblank,max=500"`
	Amount      string   `json:"amount" validate:"required,decimal"`
	Account     string   `json:"account" validate:"required,notblank,max=255"`
	Category    string   `json:"category" validate:"max=255"`
	Note        string   `json:"note" validate:"max=500"`
	Tags        []string `json:"tags" validate:"omitempty,dive,max=50"`
}

// JoinTags renders a tag list the way it is stored in a sheet cell.
func JoinTags(tags []string) string {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	return strings.Join(clean, ", ")
}

// validationError converts validator output into the domain error.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &domain.ValidationError{Reason: err.Error()}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return &domain.ValidationError{Reason: strings.Join(msgs, "; ")}
}
