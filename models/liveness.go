package models

type LivenessReport struct {
	Database          bool
	AgentConfigured   bool
	GenerationEnabled bool
}
