package analysis

// DefaultRecommendation is returned for any (metric, severity) pair without
// a specific entry.
const DefaultRecommendation = "Monitor and investigate further"

type recommendationKey struct {
	metric   string
	severity Severity
}

var recommendations = map[recommendationKey]string{
	{MetricPH, SeverityHigh}:            "Check for industrial contamination or limestone dissolution",
	{MetricPH, SeverityMedium}:          "Monitor pH levels closely, consider water treatment if persistent",
	{MetricTurbidity, SeverityHigh}:     "Possible sediment contamination or runoff. Avoid consumption until cleared.",
	{MetricTurbidity, SeverityMedium}:   "Increased particle matter detected. Monitor for changes.",
	{MetricTemperature, SeverityHigh}:   "Elevated temperature may indicate thermal pollution or climate impact",
	{MetricTemperature, SeverityMedium}: "Warmer than optimal. Monitor for ecological stress.",
}

// Recommend returns the action suggested for an issue.
func Recommend(metric string, severity Severity) string {
	if rec, ok := recommendations[recommendationKey{metric, severity}]; ok {
		return rec
	}
	return DefaultRecommendation
}
