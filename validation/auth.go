package validation

import "strings"

type CredentialsInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6,max=128"`
	DisplayName string `json:"displayName" validate:"omitempty,max=100"`
}

// Credentials validates a register/login payload, lower-casing the email.
func (v *Validator) Credentials(in CredentialsInput) (CredentialsInput, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.DisplayName = cleanText(in.DisplayName)
	if err := v.check(in); err != nil {
		return CredentialsInput{}, err
	}
	return in, nil
}
