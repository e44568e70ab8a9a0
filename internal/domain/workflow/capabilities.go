package workflow

// Schema versions at which optional workflow tables became available
const (
	SchemaVersionAssignments = 2
	SchemaVersionSignatures  = 3
)

// Capabilities describes which optional side effects the backing store supports.
// It is fixed when the engine is constructed.
type Capabilities struct {
	AssignmentTracking bool `json:"assignment_tracking"`
	SignatureRecords   bool `json:"signature_records"`
	RejectionTracking  bool `json:"rejection_tracking"`
}

// CapabilitiesForSchema derives capabilities from an applied schema version
func CapabilitiesForSchema(version int) Capabilities {
	return Capabilities{
		AssignmentTracking: version >= SchemaVersionAssignments,
		SignatureRecords:   version >= SchemaVersionSignatures,
		RejectionTracking:  version >= SchemaVersionSignatures,
	}
}

// FullCapabilities enables every optional side effect
func FullCapabilities() Capabilities {
	return Capabilities{
		AssignmentTracking: true,
		SignatureRecords:   true,
		RejectionTracking:  true,
	}
}
