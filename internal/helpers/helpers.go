package helpers

// Stage constants define the possible deployment/runtime environments.
const (
	StageProduction  = "production"
	StageDevelopment = "development"
	StageTest        = "test"
)

// IsValidStage checks if the provided stage string is one of the defined valid stages.
func IsValidStage(stage string) bool {
	switch stage {
	case StageProduction, StageDevelopment, StageTest:
		return true
	default:
		return false
	}
}
