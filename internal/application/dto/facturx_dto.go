package dto

// ProfileQuery selects the Factur-X profile; EN16931 when empty.
type ProfileQuery struct {
	Profile string `query:"profile"`
}

// ValidationResponse is returned when a document passes the Schematron.
type ValidationResponse struct {
	Valid   bool   `json:"valid"`
	Profile string `json:"profile"`
}

// PortalsResponse lists the configured submission portals.
type PortalsResponse struct {
	Portals []string `json:"portals"`
}
