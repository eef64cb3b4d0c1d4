package mattermost

import "fmt"

// NotFoundError is returned when the API answers 404: the channel,
// post, or file the request referenced does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("mattermost: not found: %s", e.Path)
}

// RequestError is returned for any non-success status other than 404.
// It carries the raw response body for diagnosis.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("mattermost: HTTP %d: %s", e.StatusCode, e.Body)
}

// MalformedResponseError is returned when the API answers with a
// success status but the body lacks a field the client needs, e.g. an
// upload response with an empty file_infos array.
type MalformedResponseError struct {
	Field string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("mattermost: malformed response: missing %s", e.Field)
}
