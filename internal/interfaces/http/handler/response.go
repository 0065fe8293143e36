package handler

import "github.com/erp/marketsync/internal/interfaces/http/dto"

// APIResponse is the typed form of dto.Response, used by tests to decode payloads
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}
