package domain

// Capability names an Office 365 service category whose concrete endpoint is
// resolved through the discovery service.
type Capability string

const (
	// CapabilityMail is the Exchange Online mail service.
	CapabilityMail Capability = "Mail"
	// CapabilityCalendar is the Exchange Online calendar service.
	CapabilityCalendar Capability = "Calendar"
	// CapabilityContacts is the Exchange Online contacts service.
	CapabilityContacts Capability = "Contacts"
	// CapabilityMyFiles is the OneDrive for Business files service.
	CapabilityMyFiles Capability = "MyFiles"
)

// ServiceDescriptor describes one discovered Office 365 service.
type ServiceDescriptor struct {
	// Capability is the logical capability name, e.g. "Mail".
	Capability Capability
	// ServiceName is the display name reported by discovery (optional).
	ServiceName string
	// EndpointURI is the REST root for the service.
	EndpointURI string
	// ResourceID is the OAuth resource audience for the service.
	ResourceID string
}
