package domain

// Application is a single tracked job application in the read model.
type Application struct {
	ID      string `json:"id"`
	Company string `json:"company"`
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Notes   string `json:"notes,omitempty"`
	Status  Status `json:"status"`
	Order   int    `json:"order"`
}

// Settings represents user configurable board options.
type Settings struct {
	ApplicationsPerStatus int  `json:"applicationsPerStatus"`
	ShowClosed            bool `json:"showClosedApplications"`
}
