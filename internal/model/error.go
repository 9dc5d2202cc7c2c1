package model

// ValidationError is the error shape every handler maps to a 4xx JSON
// body. Param names the offending request field when there is one.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
}

func (e *ValidationError) Error() string {
	return e.Message
}
