package model

// Status is the reachability verdict for a single target.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// ProbeTarget is one server to probe, tagged with its owning club and
// country. It is built by the inventory flattener and never mutated after.
type ProbeTarget struct {
	ID          string `json:"id"`
	Address     string `json:"ip"`
	Name        string `json:"name"`
	Club        string `json:"club"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	Virtual     bool   `json:"virtual,omitempty"`
}

// ProbeOutcome is the verdict for one target in one scan.
type ProbeOutcome struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	// Tier names the technique that decided the outcome.
	Tier string `json:"tier,omitempty"`
}

// Online reports whether the outcome is online.
func (o ProbeOutcome) Online() bool {
	return o.Status == StatusOnline
}
