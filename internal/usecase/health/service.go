package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component failed.
	Degraded Status = "degraded"
	// Unhealthy indicates model storage is unusable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckLoaded and CheckUnloaded describe the word table; neither is a failure.
	CheckLoaded   CheckResult = "loaded"
	CheckUnloaded CheckResult = "unloaded"
)

// Check names.
const (
	CheckStorage  = "storage"
	CheckCache    = "cache"
	CheckWord2Vec = "word2vec"
)

// Report aggregates health check results.
type Report struct {
	Status     Status                 `json:"status"`
	Checks     map[string]CheckResult `json:"checks"`
	Dimensions int                    `json:"dimensions,omitempty"`
}

// Service coordinates health checks.
type Service struct {
	storage Pinger
	cache   Pinger
	words   WordTable
}

// New creates a Service. cache and words can be nil.
func New(storage Pinger, cache Pinger, words WordTable) *Service {
	return &Service{storage: storage, cache: cache, words: words}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if err := s.storage.Ping(ctx); err != nil {
		checks[CheckStorage] = CheckError
		status = Unhealthy
	} else {
		checks[CheckStorage] = CheckOK
	}

	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			checks[CheckCache] = CheckError
			if status == Healthy {
				status = Degraded
			}
		} else {
			checks[CheckCache] = CheckOK
		}
	}

	var dims int
	if s.words != nil {
		if s.words.Loaded() {
			checks[CheckWord2Vec] = CheckLoaded
			dims = s.words.Dimensions()
		} else {
			checks[CheckWord2Vec] = CheckUnloaded
		}
	}

	return Report{Status: status, Checks: checks, Dimensions: dims}
}
