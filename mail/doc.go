// Package mail holds the message model, placeholder substitution and two
// senders used by the account pipeline: an SMTP sender and a zap-backed log
// sender for development.
//
// Templates use [key] placeholders. [Replace] substitutes them
// case-insensitively and derives [fname] and [lname] from [name].
package mail
