package simulator

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// X-Amz-Target values served for CloudWatch Logs.
const (
	TargetCreateLogGroup  = "Logs_20140328.CreateLogGroup"
	TargetCreateLogStream = "Logs_20140328.CreateLogStream"
	TargetPutLogEvents    = "Logs_20140328.PutLogEvents"
	TargetGetLogEvents    = "Logs_20140328.GetLogEvents"
)

type LogGroup struct {
	LogGroupName string `json:"logGroupName"`
	Arn          string `json:"arn"`
	CreationTime int64  `json:"creationTime"`
}

// LogEvent is a stored event. A nil Message is served without a message
// field, which real CloudWatch never does but clients must tolerate.
type LogEvent struct {
	Timestamp     int64   `json:"timestamp"`
	Message       *string `json:"message,omitempty"`
	IngestionTime int64   `json:"ingestionTime"`
}

func logGroupArn(name string) string {
	return fmt.Sprintf("arn:aws:logs:%s:%s:log-group:%s", region, accountID, name)
}

func eventsKey(group, stream string) string {
	return group + ":" + stream
}

func (s *Simulator) registerCloudWatchLogs() {
	s.router.Register(TargetCreateLogGroup, s.handleCreateLogGroup)
	s.router.Register(TargetCreateLogStream, s.handleCreateLogStream)
	s.router.Register(TargetPutLogEvents, s.handlePutLogEvents)
	s.router.Register(TargetGetLogEvents, s.handleGetLogEvents)
}

func (s *Simulator) ensureLogGroup(name string) {
	if _, ok := s.logGroups.Get(name); ok {
		return
	}
	s.logGroups.Put(name, LogGroup{
		LogGroupName: name,
		Arn:          logGroupArn(name),
		CreationTime: time.Now().UnixMilli(),
	})
}

// AppendLogEvents appends raw events to a stream, creating the group and
// stream as needed.
func (s *Simulator) AppendLogEvents(group, stream string, events ...LogEvent) {
	s.ensureLogGroup(group)
	key := eventsKey(group, stream)
	if !s.logEvents.Update(key, func(existing *[]LogEvent) {
		*existing = append(*existing, events...)
	}) {
		s.logEvents.Put(key, append([]LogEvent(nil), events...))
	}
}

// PutLogLines appends one event per line, timestamped now.
func (s *Simulator) PutLogLines(group, stream string, lines ...string) {
	now := time.Now().UnixMilli()
	events := make([]LogEvent, 0, len(lines))
	for _, line := range lines {
		msg := line
		events = append(events, LogEvent{Timestamp: now, Message: &msg, IngestionTime: now})
	}
	s.AppendLogEvents(group, stream, events...)
}

// FailGetLogEvents makes the next n GetLogEvents calls return an API error.
func (s *Simulator) FailGetLogEvents(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getLogsErrors = n
}

func (s *Simulator) handleCreateLogGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LogGroupName string `json:"logGroupName"`
	}
	if err := ReadJSON(r, &req); err != nil {
		AWSError(w, "InvalidParameterException", "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.LogGroupName == "" {
		AWSError(w, "InvalidParameterException", "logGroupName is required", http.StatusBadRequest)
		return
	}
	if _, exists := s.logGroups.Get(req.LogGroupName); exists {
		AWSErrorf(w, "ResourceAlreadyExistsException", http.StatusBadRequest,
			"The specified log group already exists: %s", req.LogGroupName)
		return
	}
	s.ensureLogGroup(req.LogGroupName)
	WriteJSON(w, http.StatusOK, map[string]any{})
}

func (s *Simulator) handleCreateLogStream(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LogGroupName  string `json:"logGroupName"`
		LogStreamName string `json:"logStreamName"`
	}
	if err := ReadJSON(r, &req); err != nil {
		AWSError(w, "InvalidParameterException", "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.LogGroupName == "" || req.LogStreamName == "" {
		AWSError(w, "InvalidParameterException", "logGroupName and logStreamName are required", http.StatusBadRequest)
		return
	}
	if _, ok := s.logGroups.Get(req.LogGroupName); !ok {
		AWSErrorf(w, "ResourceNotFoundException", http.StatusBadRequest,
			"The specified log group does not exist: %s", req.LogGroupName)
		return
	}
	key := eventsKey(req.LogGroupName, req.LogStreamName)
	if _, exists := s.logEvents.Get(key); exists {
		AWSErrorf(w, "ResourceAlreadyExistsException", http.StatusBadRequest,
			"The specified log stream already exists: %s", req.LogStreamName)
		return
	}
	s.logEvents.Put(key, []LogEvent{})
	WriteJSON(w, http.StatusOK, map[string]any{})
}

func (s *Simulator) handlePutLogEvents(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LogGroupName  string `json:"logGroupName"`
		LogStreamName string `json:"logStreamName"`
		LogEvents     []struct {
			Timestamp int64  `json:"timestamp"`
			Message   string `json:"message"`
		} `json:"logEvents"`
	}
	if err := ReadJSON(r, &req); err != nil {
		AWSError(w, "InvalidParameterException", "Invalid request body", http.StatusBadRequest)
		return
	}
	key := eventsKey(req.LogGroupName, req.LogStreamName)
	if _, ok := s.logEvents.Get(key); !ok {
		AWSErrorf(w, "ResourceNotFoundException", http.StatusBadRequest,
			"The specified log stream does not exist: %s", req.LogStreamName)
		return
	}

	now := time.Now().UnixMilli()
	events := make([]LogEvent, 0, len(req.LogEvents))
	for _, e := range req.LogEvents {
		msg := e.Message
		events = append(events, LogEvent{Timestamp: e.Timestamp, Message: &msg, IngestionTime: now})
	}
	s.AppendLogEvents(req.LogGroupName, req.LogStreamName, events...)

	WriteJSON(w, http.StatusOK, map[string]any{
		"nextSequenceToken": strconv.FormatInt(now, 10),
	})
}

func (s *Simulator) handleGetLogEvents(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LogGroupName  string `json:"logGroupName"`
		LogStreamName string `json:"logStreamName"`
		Limit         int    `json:"limit"`
		StartFromHead *bool  `json:"startFromHead"`
		NextToken     string `json:"nextToken"`
	}
	if err := ReadJSON(r, &req); err != nil {
		AWSError(w, "InvalidParameterException", "Invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	fail := s.getLogsErrors > 0
	if fail {
		s.getLogsErrors--
	}
	s.mu.Unlock()
	if fail {
		AWSError(w, "InvalidOperationException", "simulated GetLogEvents failure", http.StatusBadRequest)
		return
	}

	if req.LogGroupName == "" || req.LogStreamName == "" {
		AWSError(w, "InvalidParameterException", "logGroupName and logStreamName are required", http.StatusBadRequest)
		return
	}

	events, ok := s.logEvents.Get(eventsKey(req.LogGroupName, req.LogStreamName))
	if !ok {
		AWSErrorf(w, "ResourceNotFoundException", http.StatusBadRequest,
			"The specified log stream does not exist: %s", req.LogStreamName)
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10000
	}
	fromHead := req.StartFromHead != nil && *req.StartFromHead

	// Tokens are "f/<index>" and "b/<index>" into the event slice.
	start := 0
	if !fromHead && len(events) > limit {
		start = len(events) - limit
	}
	if strings.HasPrefix(req.NextToken, "f/") {
		if n, err := strconv.Atoi(strings.TrimPrefix(req.NextToken, "f/")); err == nil && n >= 0 && n <= len(events) {
			start = n
		}
	}
	end := start + limit
	if end > len(events) {
		end = len(events)
	}
	page := events[start:end]
	if page == nil {
		page = []LogEvent{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"events":            page,
		"nextForwardToken":  fmt.Sprintf("f/%d", end),
		"nextBackwardToken": fmt.Sprintf("b/%d", start),
	})
}
