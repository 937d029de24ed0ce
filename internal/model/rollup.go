package model

// ClubRollup counts targets of one club.
type ClubRollup struct {
	Club    string `json:"club"`
	Total   int    `json:"total"`
	Offline int    `json:"offline"`
}

// Online is the implied online count.
func (c ClubRollup) Online() int {
	return c.Total - c.Offline
}

// CountryRollup counts targets of one country and breaks them down by club.
type CountryRollup struct {
	Country     string       `json:"country"`
	CountryCode string       `json:"country_code"`
	Virtual     bool         `json:"virtual,omitempty"`
	Total       int          `json:"total"`
	Offline     int          `json:"offline"`
	Clubs       []ClubRollup `json:"clubs"`
}

// Online is the implied online count.
func (c CountryRollup) Online() int {
	return c.Total - c.Offline
}
