package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus is the operator view of the prober itself.
type SystemStatus struct {
	Status HealthStatus    `json:"status"`
	Time   Timestamp       `json:"time"`
	Sweep  SweepStatus     `json:"sweep"`
	Sites  []CircuitStatus `json:"sites"`
}

// SweepStatus summarises sweep activity since start.
type SweepStatus struct {
	TotalSweeps       int64      `json:"totalSweeps"`
	SiteRuns          int64      `json:"siteRuns"`
	HealthyRuns       int64      `json:"healthyRuns"`
	UnhealthyRuns     int64      `json:"unhealthyRuns"`
	PublishFailures   int64      `json:"publishFailures"`
	LastSweepAt       *Timestamp `json:"lastSweepAt,omitempty"`
	LastSweepDuration string     `json:"lastSweepDuration,omitempty"`
	InProgress        bool       `json:"inProgress"`
}

// CircuitStatus is the transport health of one site.
type CircuitStatus struct {
	Site          string       `json:"site"`
	Status        HealthStatus `json:"status"`
	Circuit       string       `json:"circuit"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}
