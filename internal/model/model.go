package model

// ContactRecord is the contact card extracted from free text for the signature builder.
// Every field is always present in the JSON output. Unknown values are empty strings.
type ContactRecord struct {
	Name         string `json:"name"`
	JobTitle     string `json:"job_title"`
	Email        string `json:"email"`
	PhoneDisplay string `json:"phone_display"`
	PhoneE164    string `json:"phone_e164"`
	LinkedIn     string `json:"linkedin"`
	Website      string `json:"website"`
}
