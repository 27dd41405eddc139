package domain

import (
	"strings"
	"time"
)

// Sex captures the self-reported sex of a patient.
type Sex string

// Sex values accepted by the registration form. SexUnspecified is synthesized for
// rows persisted before the sex column existed.
const (
	SexMale           Sex = "Male"
	SexFemale         Sex = "Female"
	SexOther          Sex = "Other"
	SexPreferNotToSay Sex = "PreferNotToSay"
	SexUnspecified    Sex = "unspecified"
)

var sexAliases = map[string]Sex{
	"male":              SexMale,
	"m":                 SexMale,
	"masculino":         SexMale,
	"female":            SexFemale,
	"f":                 SexFemale,
	"femenino":          SexFemale,
	"other":             SexOther,
	"otro":              SexOther,
	"prefernottosay":    SexPreferNotToSay,
	"prefer not to say": SexPreferNotToSay,
	"prefiero no decir": SexPreferNotToSay,
	"unspecified":       SexUnspecified,
	"":                  SexUnspecified,
}

// ParseSex maps user input or legacy stored values onto a Sex constant.
// Matching ignores case and surrounding whitespace.
func ParseSex(raw string) (Sex, bool) {
	sex, ok := sexAliases[strings.ToLower(strings.TrimSpace(raw))]
	return sex, ok
}

// Valid reports whether s is one of the known constants.
func (s Sex) Valid() bool {
	switch s {
	case SexMale, SexFemale, SexOther, SexPreferNotToSay, SexUnspecified:
		return true
	}
	return false
}

// PatientRecord is one registration entry. The store is append-only per visit, so
// several records may share an IDNumber.
type PatientRecord struct {
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	IDNumber     string    `json:"id_number"`
	Age          int       `json:"age"`
	Sex          Sex       `json:"sex"`
	FamilyGroup  string    `json:"family_group"`
	Street       string    `json:"street"`
	HouseNumber  string    `json:"house_number"`
	Pathology    string    `json:"pathology"`
	Medications  string    `json:"medications"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Fields holds the user-editable values of a record.
type Fields struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	IDNumber    string `json:"id_number"`
	Age         int    `json:"age"`
	Sex         Sex    `json:"sex"`
	FamilyGroup string `json:"family_group"`
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
	Pathology   string `json:"pathology"`
	Medications string `json:"medications"`
}

// Fields returns the editable subset of the record.
func (r PatientRecord) Fields() Fields {
	return Fields{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		IDNumber:    r.IDNumber,
		Age:         r.Age,
		Sex:         r.Sex,
		FamilyGroup: r.FamilyGroup,
		Street:      r.Street,
		HouseNumber: r.HouseNumber,
		Pathology:   r.Pathology,
		Medications: r.Medications,
	}
}

// Apply overwrites every editable field of r with f. RegisteredAt is untouched.
// An empty sex is stored as SexUnspecified.
func (r *PatientRecord) Apply(f Fields) {
	r.FirstName = f.FirstName
	r.LastName = f.LastName
	r.IDNumber = f.IDNumber
	r.Age = f.Age
	r.Sex = f.Sex
	if r.Sex == "" {
		r.Sex = SexUnspecified
	}
	r.FamilyGroup = f.FamilyGroup
	r.Street = f.Street
	r.HouseNumber = f.HouseNumber
	r.Pathology = f.Pathology
	r.Medications = f.Medications
}

// NewPatientRecord builds a record from form values stamped with registeredAt.
func NewPatientRecord(f Fields, registeredAt time.Time) PatientRecord {
	var r PatientRecord
	r.Apply(f)
	r.RegisteredAt = registeredAt
	return r
}

// CloneRecords returns a copy of records that can be mutated independently.
func CloneRecords(records []PatientRecord) []PatientRecord {
	if records == nil {
		return nil
	}
	out := make([]PatientRecord, len(records))
	copy(out, records)
	return out
}
