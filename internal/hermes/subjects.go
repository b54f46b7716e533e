package hermes

const (
	SubjectRunRequest = "equilibrium.run.request"

	StreamName   = "EQUILIBRIUM_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

func SubjectRunCompleted(runID string) string  { return "equilibrium.run." + runID + ".completed" }
func SubjectRunFailed(requestID string) string { return "equilibrium.run." + requestID + ".failed" }

// Catalog lifecycle subjects
func SubjectCatalogReloaded() string { return "equilibrium.catalog.reloaded" }
