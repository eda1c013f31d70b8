package dto

// ResizeRequest is the body of POST /resize.
type ResizeRequest struct {
	ImageData   string   `json:"image_data"`
	MotionLevel *float64 `json:"motion_level"`
}

// ResizeResponse carries the base64 JPEG produced by the resize endpoint.
type ResizeResponse struct {
	ProcessedImage string `json:"processed_image"`
}

// ErrorResponse is the JSON error body shared by API handlers.
type ErrorResponse struct {
	Error string `json:"error"`
}
