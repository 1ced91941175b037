package catalog

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"storefront-catalog-service/internal/domain"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// NewValidator returns a validator that reports fields by their JSON names
// and knows the "slug" rule.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	return v
}

// validationError converts validator output into a domain.ValidationError.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return domain.NewValidationError("invalid fields", fields...)
}

// patch collects the columns of a partial update.
type patch struct {
	validate *validator.Validate
	values   map[string]any
	invalid  []string
}

func newPatch(v *validator.Validate) *patch {
	return &patch{validate: v, values: make(map[string]any)}
}

func (p *patch) reject(field string) { p.invalid = append(p.invalid, field) }

// text sets a non-nullable string column.
func (p *patch) text(field string, o domain.Optional[string], rules string) {
	if !o.Set {
		return
	}
	if o.Null || p.validate.Var(o.Value, rules) != nil {
		p.reject(field)
		return
	}
	p.values[field] = o.Value
}

// nullableText sets a string column that null clears.
func (p *patch) nullableText(field string, o domain.Optional[string], rules string) {
	if !o.Set {
		return
	}
	if o.Null {
		p.values[field] = nil
		return
	}
	if rules != "" && p.validate.Var(o.Value, rules) != nil {
		p.reject(field)
		return
	}
	p.values[field] = o.Value
}

// id sets a positive foreign key column.
func (p *patch) id(field string, o domain.Optional[int64]) {
	if !o.Set {
		return
	}
	if o.Null || o.Value <= 0 {
		p.reject(field)
		return
	}
	p.values[field] = o.Value
}

func (p *patch) flag(field string, o domain.Optional[bool]) {
	if !o.Set {
		return
	}
	if o.Null {
		p.reject(field)
		return
	}
	p.values[field] = o.Value
}

// list sets an array column; null stores an empty array.
func (p *patch) list(field string, o domain.Optional[[]string]) {
	if !o.Set {
		return
	}
	if o.Null || o.Value == nil {
		p.values[field] = []string{}
		return
	}
	if p.validate.Var(o.Value, "dive,required") != nil {
		p.reject(field)
		return
	}
	p.values[field] = o.Value
}

func (p *patch) result() (map[string]any, error) {
	if len(p.invalid) > 0 {
		return nil, domain.NewValidationError("invalid fields", p.invalid...)
	}
	if len(p.values) == 0 {
		return nil, domain.NewValidationError("no fields to update")
	}
	return p.values, nil
}
