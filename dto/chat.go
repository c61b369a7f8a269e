package dto

import "github.com/answerhive/answerhive_api/model"

// ChatRequest is the widget's turn submission. VisitorID is the device
// fingerprint; the blocklist middleware rejects chat POSTs without one
// before this struct is ever bound.
type ChatRequest struct {
	UserInput         string `json:"user_input" validate:"required"`
	UniqueIdentifier  string `json:"unique_identifier" validate:"required,max=255"`
	VisitorID         string `json:"visitor_id"`
	AdminAccountEmail string `json:"admin_account_email" validate:"required,email"`
}

func (r ChatRequest) Validate() error {
	return validate.Struct(r)
}

// ChatResponse is the flat body the widget consumes, not the admin envelope.
type ChatResponse struct {
	CleanedResponse  string   `json:"cleaned_response"`
	PotentialQueries []string `json:"potential_queries,omitempty"`
}

type ChatErrorResponse struct {
	Error string `json:"error"`
}

type LastMessagesResponse struct {
	Messages []model.QueryAndResponse `json:"messages"`
}
