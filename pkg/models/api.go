package models

import "whatsapp-assistant/internal/intent"

// ParseIntentRequest is the body of POST /api/intent/parse
type ParseIntentRequest struct {
	Message string          `json:"message"`
	Context *intent.Context `json:"context,omitempty"`
}

// ParseIntentResponse wraps a parse result with its timing
type ParseIntentResponse struct {
	*intent.Result
	ExecutionTimeMs int64 `json:"execution_time_ms"`
}

// GenerateDocumentRequest is the body of POST /api/documents/generate
type GenerateDocumentRequest struct {
	DocumentType   string `json:"document_type" binding:"required"`
	TenantID       string `json:"tenant_id" binding:"required"`
	DocumentID     string `json:"document_id,omitempty"`
	DocumentNumber string `json:"document_number,omitempty"`
}

type GenerateDocumentResponse struct {
	Success        bool   `json:"success"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	URL            string `json:"url"`
	Filename       string `json:"filename"`
}

// ErrorResponse is returned by every endpoint on failure
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SenderMappingRequest creates a sender mapping
type SenderMappingRequest struct {
	TenantID    string  `json:"tenant_id" binding:"required"`
	UserID      string  `json:"user_id" binding:"required"`
	PhoneNumber string  `json:"phone_number" binding:"required"`
	Role        string  `json:"role" binding:"required"`
	DisplayName string  `json:"display_name"`
	IsActive    *bool   `json:"is_active"`
	EmployeeID  *string `json:"employee_id"`
	BranchID    *string `json:"branch_id"`
}

// SenderMappingUpdate changes only the fields that are present
type SenderMappingUpdate struct {
	Role        *string `json:"role"`
	DisplayName *string `json:"display_name"`
	IsActive    *bool   `json:"is_active"`
	EmployeeID  *string `json:"employee_id"`
	BranchID    *string `json:"branch_id"`
}

// Page is the envelope for paginated lists
type Page struct {
	Data   interface{} `json:"data"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}
