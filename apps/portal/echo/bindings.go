package echoportal

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
)

// Form field names match the JSON names the backend expects, so validation errors key the inputs directly.
type (
	LoginForm struct {
		Email    string `form:"email" json:"email" validate:"required,email"`
		Password string `form:"password" json:"password" validate:"required"`
		Next     string `form:"next" json:"-"`
	}

	PasswordResetForm struct {
		Email string `form:"email" json:"email" validate:"required,email"`
	}

	CampusForm struct {
		Name    string `form:"name" json:"name" validate:"required,max=120"`
		Address string `form:"address" json:"address,omitempty" validate:"max=250"`
		Phone   string `form:"phone" json:"phone,omitempty" validate:"max=30"`
	}

	ClassForm struct {
		Name    string `form:"name" json:"name" validate:"required,max=60"`
		Section string `form:"section" json:"section,omitempty" validate:"max=30"`
		Campus  string `form:"-" json:"campus,omitempty"`
	}

	ScoreForm struct {
		Exam    string  `form:"-" json:"examId"`
		Student string  `form:"studentId" json:"studentId" validate:"required"`
		Score   float64 `form:"score" json:"score" validate:"min=0,max=100"`
	}
)

var errInvalidForm = errors.New("invalid form data")

// bindForm binds the request into form. Malformed input is reported as a validation error.
func bindForm(ctx echo.Context, form interface{}) error {
	if err := ctx.Bind(form); err != nil {
		var herr *echo.HTTPError
		if errors.As(err, &herr) {
			return core.NewValidationError(errInvalidForm)
		}
		return errors.Wrap(err, "binding form")
	}
	return nil
}

func (f *LoginForm) Validate() error {
	f.Email = core.CleanString(f.Email, true /* lower */)
	return core.ValidateStruct(f)
}

func (f *PasswordResetForm) Validate() error {
	f.Email = core.CleanString(f.Email, true /* lower */)
	return core.ValidateStruct(f)
}

func (f *CampusForm) Validate() error {
	f.Name = core.CleanString(f.Name)
	f.Address = core.CleanString(f.Address)
	f.Phone = core.CleanString(f.Phone)
	return core.ValidateStruct(f)
}

func (f *ClassForm) Validate() error {
	f.Name = core.CleanString(f.Name)
	f.Section = core.CleanString(f.Section)
	return core.ValidateStruct(f)
}

func (f *ScoreForm) Validate() error {
	f.Student = core.CleanString(f.Student)
	return core.ValidateStruct(f)
}

// formErrors splits err into field errors and a general message. Any other error is returned.
func formErrors(err error) (map[string]string, string, error) {
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		return nil, "", err
	}
	if len(vErr.Fields) == 0 {
		return nil, vErr.Error(), nil
	}
	return vErr.FieldMap(), "", nil
}
