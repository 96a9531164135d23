// Package channel holds the thin protocol clients for each delivery channel.
// Every adapter normalizes its provider's response shape into Result so the
// delivery engine never inspects provider-specific fields.
package channel

// Result is the normalized outcome of one adapter call.
type Result struct {
	Success    bool
	ProviderID string
	// ErrorReason carries the channel-specific failure reason when Success is
	// false.
	ErrorReason string
	// Permanent marks failures that retrying cannot change: missing channel
	// credentials or a malformed payload. The delivery engine fails these
	// fast instead of rescheduling.
	Permanent bool
}

func Sent(providerID string) Result {
	return Result{Success: true, ProviderID: providerID}
}

func Failed(reason string) Result {
	return Result{ErrorReason: reason}
}

func FailedPermanently(reason string) Result {
	return Result{ErrorReason: reason, Permanent: true}
}
