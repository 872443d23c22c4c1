package models

// SiteSummary is the latest known state of one configured site.
type SiteSummary struct {
	Name    string       `json:"name"`
	BaseURL string       `json:"baseUrl,omitempty"`
	Status  HealthStatus `json:"status"`
	Circuit string       `json:"circuit,omitempty"`

	LastRunID *string    `json:"lastRunId,omitempty"`
	LastRunAt *Timestamp `json:"lastRunAt,omitempty"`
	Passed    int        `json:"passed"`
	Failed    int        `json:"failed"`

	// FailedProbes names the probes that failed in the last run.
	FailedProbes []string `json:"failedProbes,omitempty"`
}

// SiteList is the response of GET /v1/sites.
type SiteList struct {
	Items []SiteSummary `json:"items"`
	Total int           `json:"total"`
}

// SweepAccepted is returned when a sweep has been started.
type SweepAccepted struct {
	Sites     []string  `json:"sites"`
	StartedAt Timestamp `json:"startedAt"`
}
