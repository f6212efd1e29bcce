// internal/domain/otp/record.go
package otp

// Record is the structured form of the topmost row of the live SMS table.
// It is produced by Extract and consumed immediately by the dedup check and formatter.
type Record struct {
	RegionLabel string // First line of the number cell, e.g. "IVORY COAST 2304"
	PhoneNumber string // Second line of the number cell; empty if the cell had one line
	ServiceID   string // SID column
	MessageText string // Raw SMS body
	OTP         string // 4-8 digits, empty when no pattern matched
}

// HasOTP reports whether a passcode was found in the message text.
// Records without one are never stored or dispatched.
func (r *Record) HasOTP() bool {
	return r != nil && r.OTP != ""
}
