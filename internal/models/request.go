package models

type LocationQueryRequest struct {
	Query string `json:"query" example:"Obuasi"`
}

// DevicePositionRequest is a position reported by the device's GPS.
type DevicePositionRequest struct {
	Lat *float64 `json:"lat" binding:"required" example:"6.2024"`
	Lng *float64 `json:"lng" binding:"required" example:"-1.6712"`
}

type ConnectWalletRequest struct {
	Address string `json:"address" binding:"required" example:"0x52908400098527886E0F7030069857D2E4169EE7"`
}

// ErrorResponse is the body of every non-2xx response. Code is set when the
// client can act on it, e.g. a validation code or a submission error code.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}
