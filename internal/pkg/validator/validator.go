package validator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate struct fields
func Validate(v interface{}) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"": err.Error()}
	}

	errs := make(map[string]string)
	for _, fe := range verrs {
		errs[fe.Namespace()] = fe.Tag()
	}
	return errs
}

// Check is Validate folded into a single error, fields sorted for stable output.
func Check(v interface{}) error {
	errs := Validate(v)
	if len(errs) == 0 {
		return nil
	}
	fields := make([]string, 0, len(errs))
	for field, tag := range errs {
		fields = append(fields, fmt.Sprintf("%s (%s)", field, tag))
	}
	sort.Strings(fields)
	return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
}
