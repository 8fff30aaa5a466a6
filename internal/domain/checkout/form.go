// Package checkout models the checkout form and validates it before an order
// is submitted.
package checkout

import "strings"

// Contact details collected at checkout.
type Contact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Address is the shipping address. Street maps to the "address" form field.
type Address struct {
	Name   string `json:"name"`
	Street string `json:"address"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// Form is one checkout session's input.
type Form struct {
	Contact Contact
	Address Address
	Payment Payment
}

// State is a state the store ships to.
type State struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// States lists the supported shipping states.
var States = []State{
	{Code: "TN", Name: "Tamil Nadu"},
	{Code: "KA", Name: "Karnataka"},
	{Code: "KL", Name: "Kerala"},
}

// SupportedState reports whether code is a state the store ships to.
func SupportedState(code string) bool {
	for _, s := range States {
		if strings.EqualFold(s.Code, code) {
			return true
		}
	}
	return false
}

// Bank is a net banking option offered in the form.
type Bank struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Banks lists net banking options shown to the user. Any non-empty bank is
// accepted by validation.
var Banks = []Bank{
	{Code: "sbi", Name: "State Bank of India"},
	{Code: "hdfc", Name: "HDFC Bank"},
	{Code: "icici", Name: "ICICI Bank"},
	{Code: "axis", Name: "Axis Bank"},
}
