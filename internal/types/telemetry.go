package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricPipelineRun        = "CelebrationPipelineRun"
	MetricPeopleCelebrated   = "PeopleCelebrated"
	MetricPeopleFiltered     = "PeopleFiltered"
	MetricImagesSent         = "ImagesSent"
	MetricGenerationDuration = "GenerationDuration"
	MetricRaceCondition      = "RaceConditionDetected"
	MetricRaceConditionAlert = "RaceConditionAlert"
	MetricExternalAPIFailure = "ExternalAPIFailure"

	// Dimension Keys
	DimMode     = "Mode"
	DimResult   = "Result"
	DimReason   = "Reason"
	DimAction   = "Action"
	DimProvider = "Provider"

	// Metric Namespace
	MetricNamespace = "BirthdayBot"
)
