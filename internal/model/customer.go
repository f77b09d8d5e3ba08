package model

// Customer is the optional signed-in identity supplied by the auth
// collaborator.  Guests have no Customer; billing fields are then typed in
// by hand.
type Customer struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Region string `json:"region,omitempty"`
}
