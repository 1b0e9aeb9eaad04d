package model

import "strings"

// ConnectionStatus is the terminal's reader connection state. It is owned by
// the connection manager; NotConnected is the zero value.
type ConnectionStatus int

const (
	// ConnectionStatusNotConnected means no reader session exists.
	ConnectionStatusNotConnected ConnectionStatus = iota
	// ConnectionStatusConnecting means a session is being established.
	ConnectionStatusConnecting
	// ConnectionStatusConnected means a reader session is live.
	ConnectionStatusConnected
)

// String returns an unlocalized display string, e.g. "Not Connected".
func (s ConnectionStatus) String() string {
	switch s {
	case ConnectionStatusNotConnected:
		return "Not Connected"
	case ConnectionStatusConnecting:
		return "Connecting"
	case ConnectionStatusConnected:
		return "Connected"
	}
	return "Unknown"
}

// PaymentStatus is the terminal-level payment readiness, derived from the
// connection status and whether a reader operation is currently in flight.
type PaymentStatus int

const (
	// PaymentStatusNotReady means no reader is connected.
	PaymentStatusNotReady PaymentStatus = iota
	// PaymentStatusReady means a reader is connected and idle.
	PaymentStatusReady
	// PaymentStatusProcessingPayment means a reader operation is in flight.
	PaymentStatusProcessingPayment
)

// String returns an unlocalized display string, e.g. "Not Ready".
func (s PaymentStatus) String() string {
	switch s {
	case PaymentStatusNotReady:
		return "Not Ready"
	case PaymentStatusReady:
		return "Ready"
	case PaymentStatusProcessingPayment:
		return "Processing Payment"
	}
	return "Unknown"
}

// PaymentIntentStatus is the processing stage of a payment intent, mirroring
// the backend's wire representation.
type PaymentIntentStatus string

const (
	// IntentStatusRequiresPaymentMethod: the intent needs a payment method
	// collected by a reader.
	IntentStatusRequiresPaymentMethod PaymentIntentStatus = "requires_payment_method"
	// IntentStatusRequiresConfirmation: a payment method has been collected
	// and the intent is ready to confirm.
	IntentStatusRequiresConfirmation PaymentIntentStatus = "requires_confirmation"
	// IntentStatusRequiresCapture: the payment is authorized; the backend
	// capture step (outside this SDK) settles it.
	IntentStatusRequiresCapture PaymentIntentStatus = "requires_capture"
	// IntentStatusCanceled: the intent was canceled and cannot be reused.
	IntentStatusCanceled PaymentIntentStatus = "canceled"
	// IntentStatusUnknown: the authoritative status could not be determined
	// (e.g. a confirm request timed out). Hosts should retrieve the intent
	// rather than assume any outcome.
	IntentStatusUnknown PaymentIntentStatus = "unknown"
)

// DeviceType identifies a reader hardware model.
type DeviceType int

const (
	// DeviceTypeChipper2X is the BBPOS Chipper 2X BT mobile reader.
	DeviceTypeChipper2X DeviceType = iota
	// DeviceTypeSimulated is the in-process simulated reader.
	DeviceTypeSimulated
)

// String returns an unlocalized display string for the device type.
func (d DeviceType) String() string {
	switch d {
	case DeviceTypeChipper2X:
		return "Chipper 2X"
	case DeviceTypeSimulated:
		return "Simulated Reader"
	}
	return "Unknown"
}

// ReaderInputOptions is a bitmask of the card entry methods a reader is
// currently accepting.
type ReaderInputOptions int

const (
	// ReaderInputOptionNone means the reader is not accepting input.
	ReaderInputOptionNone ReaderInputOptions = 0
	// ReaderInputOptionSwipe accepts magstripe swipes.
	ReaderInputOptionSwipe ReaderInputOptions = 1 << iota
	// ReaderInputOptionInsert accepts chip inserts.
	ReaderInputOptionInsert
	// ReaderInputOptionTap accepts contactless taps.
	ReaderInputOptionTap
)

// String returns an unlocalized display string joining the accepted entry
// methods, e.g. "Swipe / Insert".
func (o ReaderInputOptions) String() string {
	var parts []string
	if o&ReaderInputOptionSwipe != 0 {
		parts = append(parts, "Swipe")
	}
	if o&ReaderInputOptionInsert != 0 {
		parts = append(parts, "Insert")
	}
	if o&ReaderInputOptionTap != 0 {
		parts = append(parts, "Tap")
	}
	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, " / ")
}

// ReaderInputPrompt is an instruction for the cardholder emitted by the
// reader during a collect/read operation.
type ReaderInputPrompt int

const (
	// ReaderInputPromptRetryCard asks the cardholder to retry the same card.
	ReaderInputPromptRetryCard ReaderInputPrompt = iota
	// ReaderInputPromptInsertCard asks for a chip insert.
	ReaderInputPromptInsertCard
	// ReaderInputPromptInsertOrSwipeCard asks for a chip insert or swipe.
	ReaderInputPromptInsertOrSwipeCard
	// ReaderInputPromptSwipeCard asks for a magstripe swipe.
	ReaderInputPromptSwipeCard
	// ReaderInputPromptRemoveCard asks the cardholder to remove the card.
	ReaderInputPromptRemoveCard
	// ReaderInputPromptMultipleContactlessCardsDetected reports that more
	// than one contactless card was presented.
	ReaderInputPromptMultipleContactlessCardsDetected
	// ReaderInputPromptTryAnotherReadMethod asks for a different entry method.
	ReaderInputPromptTryAnotherReadMethod
	// ReaderInputPromptTryAnotherCard asks for a different card.
	ReaderInputPromptTryAnotherCard
)

// String returns an unlocalized display string, e.g. "Retry Card".
func (p ReaderInputPrompt) String() string {
	switch p {
	case ReaderInputPromptRetryCard:
		return "Retry Card"
	case ReaderInputPromptInsertCard:
		return "Insert Card"
	case ReaderInputPromptInsertOrSwipeCard:
		return "Insert or Swipe Card"
	case ReaderInputPromptSwipeCard:
		return "Swipe Card"
	case ReaderInputPromptRemoveCard:
		return "Remove Card"
	case ReaderInputPromptMultipleContactlessCardsDetected:
		return "Multiple Contactless Cards Detected"
	case ReaderInputPromptTryAnotherReadMethod:
		return "Try Another Read Method"
	case ReaderInputPromptTryAnotherCard:
		return "Try Another Card"
	}
	return "Unknown"
}

// InputEventKind distinguishes the two kinds of reader input notifications.
type InputEventKind int

const (
	// InputEventOptions carries the entry methods the reader now accepts.
	InputEventOptions InputEventKind = iota
	// InputEventPrompt carries an instruction for the cardholder.
	InputEventPrompt
)

// InputEvent is a low-level hardware notification emitted by a reader
// session during collect/read operations. Events are forwarded verbatim to
// the host's input delegate while the operation is in flight and dropped
// once it settles.
type InputEvent struct {
	Kind    InputEventKind
	Options ReaderInputOptions
	Prompt  ReaderInputPrompt
}
