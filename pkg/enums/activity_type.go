package enums

import "fmt"

// ActivityType maps to the activity_type enum in Postgres. The set is closed;
// dashboards render each type differently.
type ActivityType string

const (
	ActivityTypeNewSignup             ActivityType = "new_signup"
	ActivityTypePaymentSuccess        ActivityType = "payment_success"
	ActivityTypePaymentFailed         ActivityType = "payment_failed"
	ActivityTypeBaseFeePaid           ActivityType = "base_fee_paid"
	ActivityTypeSubscriptionCancelled ActivityType = "subscription_cancelled"
)

var validActivityTypes = []ActivityType{
	ActivityTypeNewSignup,
	ActivityTypePaymentSuccess,
	ActivityTypePaymentFailed,
	ActivityTypeBaseFeePaid,
	ActivityTypeSubscriptionCancelled,
}

// IsValid reports whether the value matches the canonical activity enum.
func (t ActivityType) IsValid() bool {
	for _, candidate := range validActivityTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseActivityType converts raw input into an ActivityType.
func ParseActivityType(value string) (ActivityType, error) {
	for _, candidate := range validActivityTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid activity type %q", value)
}
