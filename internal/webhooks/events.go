package webhooks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qri-io/jsonschema"
)

// Event types delivered by the identity provider.
const (
	EventOrganizationCreated = "organization.created"
	EventOrganizationUpdated = "organization.updated"
	EventOrganizationDeleted = "organization.deleted"
	EventUserCreated         = "user.created"
	EventUserUpdated         = "user.updated"
	EventSessionCreated      = "session.created"
)

// Envelope is the outer webhook shape. Data is decoded into the typed
// payload matching Type after schema validation.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// OrganizationPayload carries organization lifecycle events.
type OrganizationPayload struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logo_url,omitempty"`
}

// UserPayload carries user and session events.
type UserPayload struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id,omitempty"` // session events reference the user indirectly
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// ProviderUserID returns the provider-side user id regardless of event shape.
func (p UserPayload) ProviderUserID() string {
	if p.UserID != "" {
		return p.UserID
	}
	return p.ID
}

// envelopeSchema rejects malformed envelopes before any handler runs.
const envelopeSchema = `{
	"type": "object",
	"required": ["type", "data"],
	"properties": {
		"type": {
			"type": "string",
			"enum": [
				"organization.created",
				"organization.updated",
				"organization.deleted",
				"user.created",
				"user.updated",
				"session.created"
			]
		},
		"data": {"type": "object"}
	}
}`

func compileEnvelopeSchema() (*jsonschema.Schema, error) {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(envelopeSchema), rs); err != nil {
		return nil, fmt.Errorf("compile envelope schema: %w", err)
	}
	return rs, nil
}

// parseEnvelope validates raw against the envelope schema and decodes it.
func parseEnvelope(ctx context.Context, rs *jsonschema.Schema, raw []byte) (*Envelope, error) {
	errs, err := rs.ValidateBytes(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("validate envelope: %w", err)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid envelope: %s", errs[0].Error())
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	return &env, nil
}
