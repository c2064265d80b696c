package openai

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Amund211/docprompt/internal/domain"
)

type apiErrorResponse struct {
	Error *struct {
		Message string  `json:"message"`
		Type    string  `json:"type"`
		Param   *string `json:"param"`
		Code    *string `json:"code"`
	} `json:"error"`
}

// errorFromResponse maps a non-2xx response to an error.
//
// handle is the file id sent in the request, if any. A rejection that refers
// to it wraps domain.ErrFileHandleRejected.
func errorFromResponse(statusCode int, data []byte, handle domain.FileHandle) error {
	message := ""
	var param, code string

	var parsed apiErrorResponse
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error != nil {
		message = parsed.Error.Message
		if parsed.Error.Param != nil {
			param = *parsed.Error.Param
		}
		if parsed.Error.Code != nil {
			code = *parsed.Error.Code
		}
	}

	description := fmt.Sprintf("openai API returned status %d", statusCode)
	if message != "" {
		description = fmt.Sprintf("%s: %s", description, message)
	}

	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", domain.ErrTemporarilyUnavailable, description)
	case http.StatusBadRequest, http.StatusNotFound:
		if handle != "" && refersToFile(handle, message, param, code) {
			return fmt.Errorf("%w: %s", domain.ErrFileHandleRejected, description)
		}
	}

	return fmt.Errorf("%s", description)
}

func refersToFile(handle domain.FileHandle, message, param, code string) bool {
	if strings.Contains(message, string(handle)) {
		return true
	}
	if strings.HasSuffix(param, "file_id") {
		return true
	}
	return code == "file_not_found"
}
