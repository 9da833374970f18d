package predict

import "fmt"

// ServiceError is a non-2xx answer from the prediction service.
type ServiceError struct {
	StatusCode int
	Status     string
	Body       string
	RequestID  string
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("prediction service error: status=%d", e.StatusCode)
	if e.RequestID != "" {
		msg += " request_id=" + e.RequestID
	}
	if e.Body != "" {
		msg += " body=" + e.Body
	}
	return msg
}

// UnreachableError indicates the prediction service could not be contacted.
type UnreachableError struct {
	URL string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("prediction service unreachable at %s: %v", e.URL, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }
