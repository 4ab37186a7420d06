// Package limits centralizes the field-length constants the rest of the
// messenger core validates against: nickname, status message, friend
// request payload, message payload, file chunk, and file-slot counts.
// Keeping them in one place means the roster, dispatcher, and file engine
// can never disagree about a boundary.
package limits
