package domain

// Notification resource states used by the provider's push protocol.
const (
	// ResourceStateSync is the handshake sent when a channel is created.
	ResourceStateSync = "sync"

	// ResourceStateExists signals that the watched resource has changes.
	ResourceStateExists = "exists"
)

// Notification is an inbound push notification from the calendar provider.
// The three correlation fields arrive as request headers on the webhook
// endpoint.
type Notification struct {
	// ChannelID correlates with the registered webhook channel.
	ChannelID string

	// ResourceID correlates with the provider-assigned resource.
	ResourceID string

	// ResourceState discriminates handshake from change notifications.
	ResourceState string
}

// Valid reports whether both correlation identifiers are present.
// An invalid notification is rejected before any connection lookup.
func (n *Notification) Valid() bool {
	return n.ChannelID != "" && n.ResourceID != ""
}

// IsHandshake reports whether this is the channel-creation confirmation.
func (n *Notification) IsHandshake() bool {
	return n.ResourceState == ResourceStateSync
}

// DispatchOutcome describes what the webhook dispatcher did with a
// notification. The HTTP response to the provider is success-shaped for all
// outcomes except rejection; the distinction exists for observability.
type DispatchOutcome int

const (
	// DispatchRejected means validation failed; no lookup was performed.
	DispatchRejected DispatchOutcome = iota
	// DispatchHandshake means the notification was a setup confirmation.
	DispatchHandshake
	// DispatchUnknownChannel means no connected channel matched.
	DispatchUnknownChannel
	// DispatchDeduplicated means a recent sync made this one redundant.
	DispatchDeduplicated
	// DispatchTriggered means a background sync was started.
	DispatchTriggered
)

// String returns the outcome name for logs.
func (o DispatchOutcome) String() string {
	switch o {
	case DispatchRejected:
		return "rejected"
	case DispatchHandshake:
		return "handshake"
	case DispatchUnknownChannel:
		return "unknown-channel"
	case DispatchDeduplicated:
		return "deduplicated"
	case DispatchTriggered:
		return "triggered"
	default:
		return "unknown"
	}
}
