package enums

import "fmt"

// BaseFeeStatus tracks whether a clinic's flat recurring platform fee is paid up.
type BaseFeeStatus string

const (
	BaseFeeStatusPending   BaseFeeStatus = "pending"
	BaseFeeStatusActive    BaseFeeStatus = "active"
	BaseFeeStatusUnpaid    BaseFeeStatus = "unpaid"
	BaseFeeStatusSuspended BaseFeeStatus = "suspended"
)

var validBaseFeeStatuses = []BaseFeeStatus{
	BaseFeeStatusPending,
	BaseFeeStatusActive,
	BaseFeeStatusUnpaid,
	BaseFeeStatusSuspended,
}

// String implements fmt.Stringer.
func (s BaseFeeStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s BaseFeeStatus) IsValid() bool {
	for _, candidate := range validBaseFeeStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseBaseFeeStatus converts raw input into a BaseFeeStatus.
func ParseBaseFeeStatus(value string) (BaseFeeStatus, error) {
	for _, candidate := range validBaseFeeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid base fee status %q", value)
}
