package notify

import "fmt"

// DeliveryError is one failed delivery to one recipient. Recorded on
// the notification row and surfaced in the run outcome; never blocks
// other recipients.
type DeliveryError struct {
	Channel   string
	Recipient string
	Err       error
}

// Error returns the error message.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery to %s failed: %v", e.Channel, e.Recipient, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}
