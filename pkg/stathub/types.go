package stathub

// Metric is one catalog entry in StatHub's metric dictionary.
type Metric struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Frequency   string `json:"frequency,omitempty"`
	Description string `json:"description,omitempty"`
}

// Entity is one catalog entry in StatHub's entity dictionary (a country,
// company, team — whatever population the provider tracks metrics for).
type Entity struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Group  string `json:"group,omitempty"`
	Region string `json:"region,omitempty"`
}

// Observation is a single measured value of one metric for one entity in
// one period.
type Observation struct {
	MetricID string  `json:"metric_id"`
	EntityID string  `json:"entity_id"`
	Period   string  `json:"period"`
	Value    float64 `json:"value"`
}
