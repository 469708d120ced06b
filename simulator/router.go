package simulator

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// AWSRouter dispatches AWS JSON protocol calls. Every call is a POST whose
// X-Amz-Target header names the operation, e.g.
// "Logs_20140328.GetLogEvents".
type AWSRouter struct {
	handlers map[string]http.HandlerFunc
}

func NewAWSRouter() *AWSRouter {
	return &AWSRouter{handlers: map[string]http.HandlerFunc{}}
}

func (r *AWSRouter) Register(target string, handler http.HandlerFunc) {
	r.handlers[target] = handler
}

func (r *AWSRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	target := req.Header.Get("X-Amz-Target")
	if req.Method != http.MethodPost || target == "" {
		AWSError(w, "MissingAction", "expected a POST with an X-Amz-Target header", http.StatusBadRequest)
		return
	}
	if h, ok := r.handlers[target]; ok {
		h(w, req)
		return
	}
	AWSErrorf(w, "UnknownOperationException", http.StatusBadRequest, "operation %s is not simulated", target)
}

// AWSError writes an AWS-style JSON error response.
//
//	{"__type": "SomeException", "message": "details"}
func AWSError(w http.ResponseWriter, code string, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/x-amz-json-1.1")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"__type":  code,
		"message": message,
	})
}

// AWSErrorf writes an AWS-style error with a formatted message.
func AWSErrorf(w http.ResponseWriter, code string, statusCode int, format string, args ...any) {
	AWSError(w, code, fmt.Sprintf(format, args...), statusCode)
}

// ReadJSON reads and decodes a JSON request body into the given value.
func ReadJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/x-amz-json-1.1")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
