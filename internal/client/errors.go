package client

import (
	"errors"
	"fmt"
)

// NetworkError reports a transport failure or a non-success response.
type NetworkError struct {
	Method     string
	Path       string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: HTTP error! status: %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ValidationError is raised before any request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ErrNotAcknowledged is returned when the server answers without success:true.
var ErrNotAcknowledged = errors.New("server did not acknowledge the request")

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// FollowUpError reports a failure that happened after the server accepted a
// mutation, such as the reload or an attachment upload that follows it.
type FollowUpError struct {
	Err error
}

func (e *FollowUpError) Error() string {
	return fmt.Sprintf("saved, but follow-up failed: %v", e.Err)
}

func (e *FollowUpError) Unwrap() error {
	return e.Err
}

// Committed reports whether the mutation behind err reached the server.
func Committed(err error) bool {
	var target *FollowUpError
	return err == nil || errors.As(err, &target)
}

func followUp(err error) error {
	if err == nil {
		return nil
	}
	var target *FollowUpError
	if errors.As(err, &target) {
		return err
	}
	return &FollowUpError{Err: err}
}
