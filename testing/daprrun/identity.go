package daprrun

// Identity names a run. It is used as the dapr app id, so the start, list and stop
// commands of one logical run all refer to the same sidecar, and a rerun of the same test
// finds and replaces its own stale sidecar.
func Identity(testName, serviceName string) string {
	if serviceName == "" {
		return testName
	}
	return testName + "_" + serviceName
}
