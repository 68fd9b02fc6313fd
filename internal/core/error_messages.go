package core

// error_messages.go maps technical failures to messages with a support code.
//
// Upload rejections already carry their own wording (*BadInputData). The
// table below covers everything else that can reach a user: action API
// failures, transport problems and request limits.
//
// # Codes
//
//	CKAN001 - Not authorized for the dataset or organization
//	CKAN002 - Dataset, resource or organization not found
//	CKAN003 - Data portal rejected the request
//	CKAN004 - Data portal unreachable
//	CKAN005 - Data portal connection interrupted
//	CKAN006 - Data portal timed out
//	FILE001 - Workbook over the size limit
//	FILE002 - File is not an Excel workbook
//	FILE004 - No file selected
//	TBL001  - Unknown dataset type or resource
//	ORG001  - User belongs to no organization
//	UPL004  - Request cancelled
//	UPL005  - Request timed out
//	RATE001 - Too many requests
//	ERR000  - Anything else; check the logs for the technical error
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgNotAuthorized = UserMessage{
		Message: "You are not authorized to perform this action",
		Action:  "Ask an administrator of your organization for access",
		Code:    "CKAN001",
	}
	msgNotFound = UserMessage{
		Message: "The requested dataset or resource was not found",
		Action:  "Check the address and try again",
		Code:    "CKAN002",
	}
	msgTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Remove unused sheets or split the records over several uploads",
		Code:    "FILE001",
	}
)

var errorPatterns = []errorPattern{
	// Action API errors, as reported by the ckan client.
	{pattern: "authorization error", msg: msgNotAuthorized},
	{pattern: "not authorized", msg: msgNotAuthorized},
	{pattern: "not found error", msg: msgNotFound},
	{
		pattern: "validation error",
		msg: UserMessage{
			Message: "The data portal rejected the request",
			Action:  "Review the submitted values and try again",
			Code:    "CKAN003",
		},
	},

	// Transport
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to reach the data portal",
			Action:  "Please try again in a few moments",
			Code:    "CKAN004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Connection to the data portal was interrupted",
			Action:  "Please try again",
			Code:    "CKAN005",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try uploading a smaller file or check your connection",
			Code:    "UPL005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "The data portal took too long to answer",
			Action:  "Try uploading a smaller file or try again later",
			Code:    "CKAN006",
		},
	},

	// Files
	{pattern: "file too large", msg: msgTooLarge},
	{pattern: "request body too large", msg: msgTooLarge},
	{
		pattern: "not a valid zip",
		msg: UserMessage{
			Message: "File is not an Excel workbook",
			Action:  "Save the file as .xlsx and upload it again",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select an Excel file to upload",
			Code:    "FILE004",
		},
	},

	// Schema and organizations
	{
		pattern: "schema not found",
		msg: UserMessage{
			Message: "Unknown dataset type or resource",
			Action:  "Verify the address is correct",
			Code:    "TBL001",
		},
	},
	{
		pattern: "no organizations found",
		msg: UserMessage{
			Message: "You are not a member of any organization",
			Action:  "Ask an administrator to add you to your organization",
			Code:    "ORG001",
		},
	},

	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
// This is the fallback for unexpected errors. Support staff should check
// application logs for the original technical error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	msg := MapError(err) // err from ckan: "resource_show: Not Found Error: ..."
//	// msg.Code == "CKAN002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
//
// Example output: "Request timed out (Code: UPL005). Try uploading a smaller file or check your connection"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
// Use this to decide whether to show the raw error or the mapped user message.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}
