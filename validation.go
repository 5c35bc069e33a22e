package accounts

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// ValidateStringEquals builds an ozzo rule asserting the value matches want.
// Used to check password confirmations.
func ValidateStringEquals(want string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != want {
			return errors.New("values must match")
		}
		return nil
	}
}

// RegisterPayload is the validated shape of a registration request.
type RegisterPayload struct {
	Email                string
	Password             string
	PasswordConfirmation string
	Name                 string
	LastName             string
	MiddleName           string
	Phone                string
	Properties           map[string]any
}

// RegisterPayloadFromCredentials lifts the scalar credential map into a
// typed payload. Unknown keys are kept as properties.
func RegisterPayloadFromCredentials(creds Credentials) RegisterPayload {
	p := RegisterPayload{
		Email:                creds["email"],
		Password:             creds["password"],
		PasswordConfirmation: creds["password_confirmation"],
		Name:                 creds["name"],
		LastName:             creds["last_name"],
		MiddleName:           creds["middle_name"],
		Phone:                creds["phone"],
	}

	for key, value := range creds {
		switch key {
		case "email", "password", "password_confirmation", "name", "last_name", "middle_name", "phone":
		default:
			if p.Properties == nil {
				p.Properties = map[string]any{}
			}
			p.Properties[key] = value
		}
	}

	return p
}

func (r RegisterPayload) Validate() error {
	rules := []*validation.FieldRules{
		validation.Field(&r.Email, validation.Required, validation.Length(6, 255), is.Email),
		validation.Field(&r.Password, validation.Length(4, 255)),
	}

	if r.PasswordConfirmation != "" || r.Password != "" {
		rules = append(rules, validation.Field(
			&r.PasswordConfirmation,
			validation.By(ValidateStringEquals(r.Password)),
		))
	}

	return validation.ValidateStruct(&r, rules...)
}

// User builds an unsaved user record from the payload. Password defaults and
// hashing happen at persistence time.
func (r RegisterPayload) User() *User {
	u := &User{
		Email:                r.Email,
		Password:             r.Password,
		PasswordConfirmation: r.PasswordConfirmation,
		Name:                 r.Name,
		LastName:             r.LastName,
		MiddleName:           r.MiddleName,
	}

	if r.Phone != "" {
		u.SetPhone(r.Phone)
	}

	if len(r.Properties) > 0 {
		u.SetProperty(r.Properties)
	}

	return u
}

// AuthenticatePayload validates the credential pair for a login attempt.
type AuthenticatePayload struct {
	Email    string
	Password string
}

func (a AuthenticatePayload) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Email, validation.Required),
		validation.Field(&a.Password, validation.Required),
	)
}

// firstFieldError flattens an ozzo validation.Errors map into a single
// (field, message) pair for Result reporting.
func firstFieldError(err error) (string, string) {
	verrs, ok := err.(validation.Errors)
	if !ok {
		return "", err.Error()
	}

	for _, field := range []string{"Email", "Password", "PasswordConfirmation"} {
		if ferr, ok := verrs[field]; ok {
			return fieldTag(field), ferr.Error()
		}
	}

	for field, ferr := range verrs {
		return fieldTag(field), ferr.Error()
	}

	return "", err.Error()
}

func fieldTag(field string) string {
	switch field {
	case "Email":
		return "email"
	case "Password":
		return "password"
	case "PasswordConfirmation":
		return "password_confirmation"
	}
	return field
}
