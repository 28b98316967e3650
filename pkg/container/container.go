// Package container detects whether the crawl process is running inside a
// container, so logging defaults (pretty console output vs. plain
// structured lines for a log aggregator) can switch without an explicit
// config flag. Consulted once, at startup, by main.go's logging setup.
package container

import (
	"os"
	"strings"
)

// IsContainerised reports whether the process appears to be running in
// a container, probing the usual signals in cheapest-first order.
func IsContainerised() bool {
	return hasDockerEnvFile() || isInContainerCGroup() || isInKubernetesPod()
}

// Docker drops /.dockerenv into every container it starts.
func hasDockerEnvFile() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}

// PID 1's cgroup path names the runtime when containerised.
func isInContainerCGroup() bool {
	data, err := os.ReadFile("/proc/1/cgroup")
	if err != nil {
		return false
	}
	content := string(data)
	return strings.Contains(content, "docker") ||
		strings.Contains(content, "containerd") ||
		strings.Contains(content, "kubepods")
}

// Kubernetes injects KUBERNETES_SERVICE_HOST into every pod.
func isInKubernetesPod() bool {
	return os.Getenv("KUBERNETES_SERVICE_HOST") != ""
}
