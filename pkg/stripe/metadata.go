package stripe

// Metadata keys attached to checkout sessions and propagated by Stripe onto
// the subscriptions they create. The webhook reconciler correlates events
// back to local rows through these.
const (
	MetadataPurpose   = "purpose"
	MetadataPatientID = "patient_id"
	MetadataClinicID  = "clinic_id"
	MetadataPlanID    = "plan_id"
	MetadataUserID    = "user_id"

	PurposePlanSubscription = "plan_subscription"
	PurposeClinicBaseFee    = "clinic_base_fee"
)
