package terminal

import "github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/model"

// Delegate receives terminal-level status notifications. The terminal never
// extends the delegate's lifetime beyond its own and consumes no return
// values; callbacks run on the terminal's dispatch goroutine.
type Delegate interface {
	// DidChangeConnectionStatus fires on every connection state transition.
	DidChangeConnectionStatus(status model.ConnectionStatus)
	// DidChangePaymentStatus fires whenever terminal payment readiness
	// changes.
	DidChangePaymentStatus(status model.PaymentStatus)
}

// UpdateDelegate is notified when a reader software update is available.
// Beginning or canceling the installation is the host's decision; the
// update transport is outside this SDK.
type UpdateDelegate interface {
	ReaderUpdateAvailable(update *model.ReaderSoftwareUpdate)
}
