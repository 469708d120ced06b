package awscommon

import (
	"errors"

	"github.com/aws/smithy-go"
)

// ErrorCode returns the AWS error code carried by err, or "" when err is
// not an API error (e.g. a transport failure).
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
