package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/warp/pocket-ledger/finance"
	"github.com/warp/pocket-ledger/store"
)

const maxBodyBytes = 1 << 20

// BindError reports a request body that could not be decoded or validated.
type BindError struct {
	Message  string
	Problems []string
}

func (e *BindError) Error() string {
	if len(e.Problems) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Problems, "; ")
}

// newValidator builds the validator shared by all handlers.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Amounts compare as numbers in gt/gte tags.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if a, ok := field.Interface().(finance.Amount); ok {
			f, _ := a.Float64()
			return f
		}
		return nil
	}, finance.Amount{})

	mustRegister(v, "username", func(fl validator.FieldLevel) bool {
		return store.ValidateUserName(fl.Field().String()) == nil
	})
	mustRegister(v, "movementtype", func(fl validator.FieldLevel) bool {
		t, err := finance.ParseMovementType(fl.Field().String())
		return err == nil && t != finance.MovementUntyped
	})
	mustRegister(v, "notag", func(fl validator.FieldLevel) bool {
		return !strings.Contains(fl.Field().String(), store.TagSeparator)
	})
	v.RegisterStructValidation(validateMovementAccounts, MovementInput{})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// validateMovementAccounts enforces which accounts each movement type names.
func validateMovementAccounts(sl validator.StructLevel) {
	in := sl.Current().Interface().(MovementInput)
	needOrigin, needDestination := false, false
	switch finance.MovementType(in.Type) {
	case finance.MovementIncome:
		needDestination = true
	case finance.MovementExpense:
		needOrigin = true
	case finance.MovementTransfer, finance.MovementInvestment:
		needOrigin, needDestination = true, true
	}
	if needOrigin && in.Origin == "" {
		sl.ReportError(in.Origin, "origin", "Origin", "required_for_type", in.Type)
	}
	if needDestination && in.Destination == "" {
		sl.ReportError(in.Destination, "destination", "Destination", "required_for_type", in.Type)
	}
}

// bindAndValidate decodes the JSON body into T and validates it.
func bindAndValidate[T any](w http.ResponseWriter, r *http.Request, v *validator.Validate) (*T, error) {
	var input T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&input); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &BindError{Message: "Request body is empty"}
		}
		return nil, &BindError{Message: "Invalid request body", Problems: []string{err.Error()}}
	}
	if err := v.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, &BindError{Message: "Validation failed", Problems: []string{err.Error()}}
		}
		problems := make([]string, len(verrs))
		for i, fe := range verrs {
			problems[i] = describe(fe)
		}
		return nil, &BindError{Message: "Validation failed", Problems: problems}
	}
	return &input, nil
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_without":
		return fmt.Sprintf("%s is required when %s is empty", field, strings.ToLower(fe.Param()))
	case "required_for_type":
		return fmt.Sprintf("%s is required for %s movements", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "datetime":
		return field + " must be in YYYY-MM-DD format"
	case "movementtype":
		names := make([]string, len(finance.MovementTypes))
		for i, t := range finance.MovementTypes {
			names[i] = string(t)
		}
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(names, ", "))
	case "notag":
		return fmt.Sprintf("%s must not contain %q", field, store.TagSeparator)
	case "username":
		return field + " must be a plain name without path separators"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
