// Package simulator is an in-process stand-in for the subset of the ECS and
// CloudWatch Logs JSON APIs used by ecs-oneshot. Serve it with httptest and
// point the SDK clients at it through awscommon.Config.EndpointURL.
package simulator

import (
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

const (
	region    = "us-east-1"
	accountID = "123456789012"
)

// Simulator holds all simulated resources. The zero value is not usable; call New.
type Simulator struct {
	router *AWSRouter
	logger zerolog.Logger

	clusters  *StateStore[Cluster]
	taskDefs  *StateStore[TaskDefinition]
	tasks     *StateStore[Task]
	logGroups *StateStore[LogGroup]
	logEvents *StateStore[[]LogEvent]

	mu             sync.Mutex
	revisions      map[string]int // family -> latest revision
	statusScript   []string
	taskOutput     []string
	runFailure     string
	describeErrors int
	getLogsErrors  int
	calls          map[string]int
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger logs every request at debug level.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Simulator) { s.logger = logger }
}

// New creates a simulator with a "default" cluster.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		router:       NewAWSRouter(),
		logger:       zerolog.Nop(),
		clusters:     NewStateStore[Cluster](),
		taskDefs:     NewStateStore[TaskDefinition](),
		tasks:        NewStateStore[Task](),
		logGroups:    NewStateStore[LogGroup](),
		logEvents:    NewStateStore[[]LogEvent](),
		revisions:    make(map[string]int),
		statusScript: append([]string(nil), DefaultStatusScript...),
		calls:        make(map[string]int),
	}
	for _, o := range opts {
		o(s)
	}
	s.registerECS()
	s.registerCloudWatchLogs()
	s.CreateCluster("default")
	return s
}

// ServeHTTP implements http.Handler.
func (s *Simulator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.URL.Path == "/health" {
		w.WriteHeader(http.StatusOK)
		return
	}
	target := r.Header.Get("X-Amz-Target")
	s.mu.Lock()
	s.calls[target]++
	s.mu.Unlock()
	s.logger.Debug().Str("target", target).Msg("request")
	s.router.ServeHTTP(w, r)
}

// Calls returns how many requests reached the given X-Amz-Target,
// e.g. "AmazonEC2ContainerServiceV20141113.DescribeTasks".
func (s *Simulator) Calls(target string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[target]
}
