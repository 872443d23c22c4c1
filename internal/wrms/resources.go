package wrms

// REST resources exposed under /wp-json/<namespace>/v1/.
const (
	ResourceStatus  = "status"
	ResourceHealth  = "health"
	ResourcePlugins = "plugins"
	ResourceUpdates = "updates"

	// resourceMissing is requested by the not-found probe and must not exist.
	resourceMissing = "non-existent"
)

// SiteStatus is the body of the status resource.
type SiteStatus struct {
	WordPressVersion string `json:"wordpress_version"`
	PHPVersion       string `json:"php_version"`
	SiteURL          string `json:"site_url"`
	SiteName         string `json:"site_name,omitempty"`
	MySQLVersion     string `json:"mysql_version,omitempty"`
	ActiveTheme      string `json:"active_theme,omitempty"`
	Multisite        bool   `json:"is_multisite,omitempty"`
	PluginVersion    string `json:"plugin_version,omitempty"`
	Timestamp        string `json:"timestamp,omitempty"`
}

// HealthReport is the body of the health resource.
type HealthReport struct {
	Status string                 `json:"status"`
	Checks map[string]HealthCheck `json:"checks,omitempty"`
}

// HealthCheck is one named check inside a HealthReport.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Healthy reports whether the site considers itself healthy.
func (h *HealthReport) Healthy() bool {
	return h.Status == "ok" || h.Status == "good" || h.Status == "healthy"
}

// Plugin is an installed plugin as listed by the plugins resource.
type Plugin struct {
	Name            string `json:"name"`
	Slug            string `json:"slug,omitempty"`
	Version         string `json:"version"`
	Active          bool   `json:"active"`
	UpdateAvailable bool   `json:"update_available"`
	NewVersion      string `json:"new_version,omitempty"`
}

// PluginList is the body of the plugins resource.
type PluginList struct {
	Plugins []Plugin `json:"plugins"`
}

// Updates is the body of the updates resource.
type Updates struct {
	Core    *CoreUpdate `json:"core,omitempty"`
	Plugins []Update    `json:"plugins"`
	Themes  []Update    `json:"themes"`
}

// CoreUpdate describes a pending WordPress core update.
type CoreUpdate struct {
	CurrentVersion string `json:"current_version"`
	NewVersion     string `json:"new_version"`
}

// Update describes a pending plugin or theme update.
type Update struct {
	Name           string `json:"name"`
	CurrentVersion string `json:"current_version"`
	NewVersion     string `json:"new_version"`
}

// Pending returns the total number of pending updates.
func (u *Updates) Pending() int {
	n := len(u.Plugins) + len(u.Themes)
	if u.Core != nil {
		n++
	}
	return n
}
