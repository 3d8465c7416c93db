package delivery

// BatchRequest asks the gateway to deliver one message body to a batch of
// recipients from a single sender number.
type BatchRequest struct {
	From       string   `json:"from"`
	Message    string   `json:"message"`
	LinkURL    string   `json:"linkUrl,omitempty"`
	CallNumber string   `json:"callNumber,omitempty"`
	MediaRef   string   `json:"mediaRef,omitempty"`
	Recipients []string `json:"recipients"`
}

// BatchResponse reports the gateway's delivery outcome for one batch.
type BatchResponse struct {
	Delivered int      `json:"delivered"`
	Failed    []string `json:"failed,omitempty"`
	Error     string   `json:"error,omitempty"`
}
