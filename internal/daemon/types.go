package daemon

// HealthResponse representa el estado de salud del servicio.
type HealthResponse struct {
	Status  string        `json:"status"`
	Catalog CatalogStatus `json:"catalog"`
	Queue   QueueStatus   `json:"queue"`
	Worker  WorkerStatus  `json:"worker"`
	Sockets int           `json:"sockets"`
	Build   BuildInfo     `json:"build"`
	Uptime  int           `json:"uptime_seconds"`
}

// CatalogStatus resume el contenido de la base de datos.
type CatalogStatus struct {
	Games      int `json:"games"`
	Categories int `json:"categories"`
	Users      int `json:"users"`
}

// QueueStatus representa el estado de la cola de empaquetado.
type QueueStatus struct {
	Current     int     `json:"current"`
	Capacity    int     `json:"capacity"`
	Utilization float64 `json:"utilization"`
}

// WorkerStatus representa el estado del trabajador de empaquetado.
type WorkerStatus struct {
	Running       bool  `json:"running"`
	JobsProcessed int64 `json:"jobs_processed"`
	JobsFailed    int64 `json:"jobs_failed"`
}

// BuildInfo contiene información sobre la compilación del servicio.
type BuildInfo struct {
	Env  string `json:"env"`
	Date string `json:"date"`
	Time string `json:"time"`
}
