package employee

import "time"

type Employee struct {
	ID                    string     `json:"id"`
	Name                  string     `json:"name"`
	FullName              string     `json:"fullName"`
	DateOfBirth           *time.Time `json:"dob,omitempty"`
	Email                 string     `json:"email"`
	Pronouns              string     `json:"pronouns"`
	Department            string     `json:"department"`
	Title                 string     `json:"title"`
	TShirtSize            string     `json:"tshirtSize"`
	EmergencyContactName  string     `json:"emergencyContactName"`
	EmergencyContactPhone string     `json:"emergencyContactPhone"`
	Signature             string     `json:"signature,omitempty"`
	LastLogged            *time.Time `json:"lastLogged,omitempty"`
}

// DisplayName prefers the full name, then the short name, then the id.
func (e Employee) DisplayName() string {
	switch {
	case e.FullName != "":
		return e.FullName
	case e.Name != "":
		return e.Name
	default:
		return e.ID
	}
}

// Profile is the set of fields an employee may edit about themselves.
type Profile struct {
	FullName              string     `json:"fullName" validate:"max=200"`
	DateOfBirth           *time.Time `json:"-"`
	Email                 string     `json:"email" validate:"omitempty,email,max=254"`
	Pronouns              string     `json:"pronouns" validate:"max=50"`
	Department            string     `json:"department" validate:"max=100"`
	Title                 string     `json:"title" validate:"max=100"`
	TShirtSize            string     `json:"tshirtSize" validate:"omitempty,oneof=XS S M L XL XXL XXXL"`
	EmergencyContactName  string     `json:"emergencyContactName" validate:"max=200"`
	EmergencyContactPhone string     `json:"emergencyContactPhone" validate:"max=50"`
}
