package enums

import "fmt"

// PatientStatus tracks whether a patient record is in active use.
type PatientStatus string

const (
	PatientStatusActive   PatientStatus = "active"
	PatientStatusInactive PatientStatus = "inactive"
)

var validPatientStatuses = []PatientStatus{
	PatientStatusActive,
	PatientStatusInactive,
}

// String implements fmt.Stringer.
func (s PatientStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s PatientStatus) IsValid() bool {
	for _, candidate := range validPatientStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePatientStatus converts raw input into a PatientStatus.
func ParsePatientStatus(value string) (PatientStatus, error) {
	for _, candidate := range validPatientStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid patient status %q", value)
}
