package ecs

import "strings"

// ParseTaskID extracts the task ID from a fully-qualified task ARN of the
// form
//
//	arn:aws:ecs:<region>:<account>:task/<cluster>/<task-id>
//
// The ARN is split on "/<cluster>/" and the element after the first
// occurrence is the ID. cluster may be a name or a cluster ARN, in which
// case the name after "cluster/" is used. ok is false when the delimiter is
// absent or the ID would be empty.
func ParseTaskID(taskARN, cluster string) (id string, ok bool) {
	name := clusterName(cluster)
	if name == "" {
		return "", false
	}
	parts := strings.Split(taskARN, "/"+name+"/")
	if len(parts) < 2 || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func clusterName(cluster string) string {
	if strings.HasPrefix(cluster, "arn:") {
		if i := strings.Index(cluster, ":cluster/"); i >= 0 {
			return cluster[i+len(":cluster/"):]
		}
	}
	return cluster
}
