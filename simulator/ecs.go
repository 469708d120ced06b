package simulator

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// X-Amz-Target values served for ECS.
const (
	TargetCreateCluster          = "AmazonEC2ContainerServiceV20141113.CreateCluster"
	TargetRegisterTaskDefinition = "AmazonEC2ContainerServiceV20141113.RegisterTaskDefinition"
	TargetRunTask                = "AmazonEC2ContainerServiceV20141113.RunTask"
	TargetDescribeTasks          = "AmazonEC2ContainerServiceV20141113.DescribeTasks"
)

// DefaultStatusScript is the lastStatus sequence a new task walks through,
// one step per DescribeTasks call. The last value repeats.
var DefaultStatusScript = []string{"PROVISIONING", "PENDING", "RUNNING", "STOPPED"}

type Cluster struct {
	ClusterArn  string `json:"clusterArn"`
	ClusterName string `json:"clusterName"`
	Status      string `json:"status"`
}

type KeyValuePair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type LogConfiguration struct {
	LogDriver string            `json:"logDriver"`
	Options   map[string]string `json:"options,omitempty"`
}

type ContainerDefinition struct {
	Name             string            `json:"name"`
	Image            string            `json:"image"`
	Essential        *bool             `json:"essential,omitempty"`
	Command          []string          `json:"command,omitempty"`
	LogConfiguration *LogConfiguration `json:"logConfiguration,omitempty"`
}

type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type TaskDefinition struct {
	TaskDefinitionArn       string                `json:"taskDefinitionArn"`
	Family                  string                `json:"family"`
	Revision                int                   `json:"revision"`
	ContainerDefinitions    []ContainerDefinition `json:"containerDefinitions"`
	Cpu                     string                `json:"cpu,omitempty"`
	Memory                  string                `json:"memory,omitempty"`
	NetworkMode             string                `json:"networkMode,omitempty"`
	RequiresCompatibilities []string              `json:"requiresCompatibilities,omitempty"`
	Tags                    []Tag                 `json:"tags,omitempty"`
	Status                  string                `json:"status"`
}

type TaskContainer struct {
	ContainerArn string `json:"containerArn"`
	Name         string `json:"name"`
	LastStatus   string `json:"lastStatus"`
}

type Failure struct {
	Arn    string `json:"arn,omitempty"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// AwsVpcConfiguration mirrors the awsvpc network placement of a RunTask call.
type AwsVpcConfiguration struct {
	Subnets        []string `json:"subnets"`
	SecurityGroups []string `json:"securityGroups"`
	AssignPublicIp string   `json:"assignPublicIp"`
}

// RunTaskRequest is the decoded RunTask body, kept on each task so tests
// can assert what was submitted.
type RunTaskRequest struct {
	Cluster              string `json:"cluster"`
	TaskDefinition       string `json:"taskDefinition"`
	Count                int    `json:"count"`
	LaunchType           string `json:"launchType"`
	EnableECSManagedTags bool   `json:"enableECSManagedTags"`
	PropagateTags        string `json:"propagateTags,omitempty"`
	Tags                 []Tag  `json:"tags,omitempty"`
	NetworkConfiguration *struct {
		AwsvpcConfiguration *AwsVpcConfiguration `json:"awsvpcConfiguration"`
	} `json:"networkConfiguration"`
}

type Task struct {
	TaskArn           string          `json:"taskArn"`
	TaskDefinitionArn string          `json:"taskDefinitionArn"`
	ClusterArn        string          `json:"clusterArn"`
	LastStatus        string          `json:"lastStatus"`
	DesiredStatus     string          `json:"desiredStatus"`
	LaunchType        string          `json:"launchType,omitempty"`
	Containers        []TaskContainer `json:"containers"`
	Tags              []Tag           `json:"tags,omitempty"`
	CreatedAt         int64           `json:"createdAt"`

	ID      string         `json:"-"`
	Request RunTaskRequest `json:"-"`
	script  []string
	step    int
}

func ecsArn(resourceType, id string) string {
	return fmt.Sprintf("arn:aws:ecs:%s:%s:%s/%s", region, accountID, resourceType, id)
}

// lastSegment strips an ARN down to its final path element.
func lastSegment(ref string) string {
	if strings.HasPrefix(ref, "arn:") {
		parts := strings.Split(ref, "/")
		return parts[len(parts)-1]
	}
	return ref
}

func newTaskID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *Simulator) registerECS() {
	s.router.Register(TargetCreateCluster, s.handleCreateCluster)
	s.router.Register(TargetRegisterTaskDefinition, s.handleRegisterTaskDefinition)
	s.router.Register(TargetRunTask, s.handleRunTask)
	s.router.Register(TargetDescribeTasks, s.handleDescribeTasks)
}

// CreateCluster adds an ACTIVE cluster.
func (s *Simulator) CreateCluster(name string) Cluster {
	c := Cluster{
		ClusterArn:  ecsArn("cluster", name),
		ClusterName: name,
		Status:      "ACTIVE",
	}
	s.clusters.Put(name, c)
	return c
}

// RegisterTaskDefinition stores td under the next revision of its family
// and returns the stored copy.
func (s *Simulator) RegisterTaskDefinition(td TaskDefinition) TaskDefinition {
	s.mu.Lock()
	s.revisions[td.Family]++
	revision := s.revisions[td.Family]
	s.mu.Unlock()

	td.Revision = revision
	td.TaskDefinitionArn = ecsArn("task-definition", fmt.Sprintf("%s:%d", td.Family, revision))
	td.Status = "ACTIVE"
	s.taskDefs.Put(fmt.Sprintf("%s:%d", td.Family, revision), td)
	return td
}

// ScriptStatuses replaces the lastStatus sequence used by tasks started
// after this call.
func (s *Simulator) ScriptStatuses(statuses ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusScript = append([]string(nil), statuses...)
}

// SetTaskOutput sets the lines written to the awslogs stream of every
// container of tasks started after this call.
func (s *Simulator) SetTaskOutput(lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskOutput = append([]string(nil), lines...)
}

// FailNextRunTask makes the next RunTask return reason as a failure entry
// and launch nothing.
func (s *Simulator) FailNextRunTask(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runFailure = reason
}

// FailDescribeTasks makes the next n DescribeTasks calls return an API error.
func (s *Simulator) FailDescribeTasks(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.describeErrors = n
}

// Task returns a started task by ID.
func (s *Simulator) Task(id string) (Task, bool) {
	return s.tasks.Get(id)
}

func (s *Simulator) handleCreateCluster(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClusterName string `json:"clusterName"`
	}
	if err := ReadJSON(r, &req); err != nil {
		AWSError(w, "InvalidParameterException", "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ClusterName == "" {
		req.ClusterName = "default"
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"cluster": s.CreateCluster(req.ClusterName),
	})
}

func (s *Simulator) handleRegisterTaskDefinition(w http.ResponseWriter, r *http.Request) {
	var td TaskDefinition
	if err := ReadJSON(r, &td); err != nil {
		AWSError(w, "InvalidParameterException", "Invalid request body", http.StatusBadRequest)
		return
	}
	if td.Family == "" {
		AWSError(w, "InvalidParameterException", "Family is required", http.StatusBadRequest)
		return
	}
	if len(td.ContainerDefinitions) == 0 {
		AWSError(w, "InvalidParameterException", "At least one container definition is required", http.StatusBadRequest)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"taskDefinition": s.RegisterTaskDefinition(td),
	})
}

func (s *Simulator) resolveTaskDefinition(ref string) (TaskDefinition, bool) {
	key := lastSegment(ref)
	if !strings.Contains(key, ":") {
		s.mu.Lock()
		rev, ok := s.revisions[key]
		s.mu.Unlock()
		if !ok {
			return TaskDefinition{}, false
		}
		key = fmt.Sprintf("%s:%d", key, rev)
	}
	return s.taskDefs.Get(key)
}

func (s *Simulator) handleRunTask(w http.ResponseWriter, r *http.Request) {
	var req RunTaskRequest
	if err := ReadJSON(r, &req); err != nil {
		AWSError(w, "InvalidParameterException", "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TaskDefinition == "" {
		AWSError(w, "InvalidParameterException", "taskDefinition is required", http.StatusBadRequest)
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}
	if req.Cluster == "" {
		req.Cluster = "default"
	}

	clusterName := lastSegment(req.Cluster)
	cluster, ok := s.clusters.Get(clusterName)
	if !ok {
		AWSErrorf(w, "ClusterNotFoundException", http.StatusBadRequest,
			"Cluster not found: %s", req.Cluster)
		return
	}

	td, ok := s.resolveTaskDefinition(req.TaskDefinition)
	if !ok {
		AWSErrorf(w, "ClientException", http.StatusBadRequest,
			"Unable to describe task definition: %s", req.TaskDefinition)
		return
	}

	s.mu.Lock()
	runFailure := s.runFailure
	s.runFailure = ""
	script := append([]string(nil), s.statusScript...)
	output := append([]string(nil), s.taskOutput...)
	s.mu.Unlock()

	if runFailure != "" {
		WriteJSON(w, http.StatusOK, map[string]any{
			"tasks":    []Task{},
			"failures": []Failure{{Arn: cluster.ClusterArn, Reason: runFailure}},
		})
		return
	}
	if len(script) == 0 {
		script = DefaultStatusScript
	}

	var tasks []Task
	for i := 0; i < req.Count; i++ {
		taskID := newTaskID()

		var containers []TaskContainer
		for _, cd := range td.ContainerDefinitions {
			containers = append(containers, TaskContainer{
				ContainerArn: ecsArn("container", uuid.NewString()),
				Name:         cd.Name,
				LastStatus:   script[0],
			})
		}

		// Request tags first, then inherited from the task definition.
		taskTags := append([]Tag(nil), req.Tags...)
		if req.PropagateTags == "TASK_DEFINITION" {
			taskTags = append(taskTags, td.Tags...)
		}
		if req.EnableECSManagedTags {
			taskTags = append(taskTags, Tag{Key: "aws:ecs:clusterName", Value: clusterName})
		}

		task := Task{
			TaskArn:           ecsArn("task", clusterName+"/"+taskID),
			TaskDefinitionArn: td.TaskDefinitionArn,
			ClusterArn:        cluster.ClusterArn,
			LastStatus:        script[0],
			DesiredStatus:     "RUNNING",
			LaunchType:        req.LaunchType,
			Containers:        containers,
			Tags:              taskTags,
			CreatedAt:         time.Now().Unix(),
			ID:                taskID,
			Request:           req,
			script:            script,
		}
		s.tasks.Put(taskID, task)
		tasks = append(tasks, task)

		s.writeTaskLogs(td, taskID, output)
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"tasks":    tasks,
		"failures": []Failure{},
	})
}

// writeTaskLogs fills the awslogs stream "<prefix>/<container>/<task-id>"
// of every container that uses the awslogs driver.
func (s *Simulator) writeTaskLogs(td TaskDefinition, taskID string, lines []string) {
	if len(lines) == 0 {
		return
	}
	for _, cd := range td.ContainerDefinitions {
		if cd.LogConfiguration == nil || cd.LogConfiguration.LogDriver != "awslogs" {
			continue
		}
		group := cd.LogConfiguration.Options["awslogs-group"]
		prefix := cd.LogConfiguration.Options["awslogs-stream-prefix"]
		if group == "" || prefix == "" {
			continue
		}
		s.PutLogLines(group, fmt.Sprintf("%s/%s/%s", prefix, cd.Name, taskID), lines...)
	}
}

func (s *Simulator) handleDescribeTasks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cluster string   `json:"cluster"`
		Tasks   []string `json:"tasks"`
	}
	if err := ReadJSON(r, &req); err != nil {
		AWSError(w, "InvalidParameterException", "Invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	fail := s.describeErrors > 0
	if fail {
		s.describeErrors--
	}
	s.mu.Unlock()
	if fail {
		AWSError(w, "ClientException", "simulated DescribeTasks failure", http.StatusBadRequest)
		return
	}

	if req.Cluster == "" {
		req.Cluster = "default"
	}
	clusterArn := ecsArn("cluster", lastSegment(req.Cluster))

	tasks := []Task{}
	failures := []Failure{}
	for _, ref := range req.Tasks {
		taskID := lastSegment(ref)
		var task Task
		found := s.tasks.Update(taskID, func(t *Task) {
			if t.ClusterArn != clusterArn {
				return
			}
			idx := t.step
			if idx >= len(t.script) {
				idx = len(t.script) - 1
			}
			t.LastStatus = t.script[idx]
			for j := range t.Containers {
				t.Containers[j].LastStatus = t.LastStatus
			}
			if t.LastStatus == "STOPPED" {
				t.DesiredStatus = "STOPPED"
			}
			t.step++
			task = *t
		})
		if !found || task.TaskArn == "" {
			failures = append(failures, Failure{Arn: ref, Reason: "MISSING"})
			continue
		}
		tasks = append(tasks, task)
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"tasks":    tasks,
		"failures": failures,
	})
}
