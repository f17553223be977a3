package analytics

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"quicksend/internal/domain"
	"quicksend/internal/domain/models"
	"quicksend/internal/httputil"
)

// Normalize turns a raw request body into a storable row.
// Text fields are truncated to the catalog limits, the event name must be in
// the catalog, and props gain a geo_country from the request headers unless
// the caller already set one.
func (c *Catalog) Normalize(body []byte, headers http.Header) (*models.EventRow, error) {
	var in models.IncomingEvent
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, domain.NewIngestError(domain.KindInvalidJSON, fmt.Errorf("empty body"))
	}
	if err := json.Unmarshal(body, &in); err != nil {
		// valid JSON that is not an object carries no event name
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, domain.NewIngestError(domain.KindInvalidEvent, err)
		}
		return nil, domain.NewIngestError(domain.KindInvalidJSON, err)
	}

	eventName, _ := in.EventName.Truncate(c.Limits.EventName)
	if err := validation.Validate(eventName,
		validation.Required,
		validation.By(c.listedEvent),
	); err != nil {
		return nil, domain.NewIngestError(domain.KindInvalidEvent, fmt.Errorf("event_name %q: %w", eventName, err))
	}

	installationID, _ := in.InstallationID.Truncate(c.Limits.InstallationID)
	if err := validation.Validate(installationID, validation.Required); err != nil {
		return nil, domain.NewIngestError(domain.KindMissingInstallationID, fmt.Errorf("installation_id: %w", err))
	}

	props := models.ParseProps(in.Props)
	if country, ok := GeoCountry(headers, c.GeoHeaders); ok && !props.Has(models.GeoCountryProp) {
		props = props.WithString(models.GeoCountryProp, country)
	}

	size, err := props.EncodedLen()
	if err != nil {
		return nil, domain.NewIngestError(domain.KindInvalidJSON, fmt.Errorf("props: %w", err))
	}
	if size > c.Limits.Props {
		return nil, domain.NewIngestError(domain.KindPropsTooLarge, fmt.Errorf("props is %d characters, limit %d", size, c.Limits.Props))
	}

	return &models.EventRow{
		EventName:      eventName,
		InstallationID: installationID,
		SessionID:      optional(in.SessionID, c.Limits.SessionID),
		AppVersion:     optional(in.AppVersion, c.Limits.AppVersion),
		Platform:       optional(in.Platform, c.Limits.Platform),
		IsFrozen:       parseBool(in.IsFrozen),
		Props:          props,
	}, nil
}

// listedEvent is the validation rule form of Allowed
func (c *Catalog) listedEvent(value interface{}) error {
	name, _ := value.(string)
	if !c.Allowed(name) {
		return errors.New("must be a listed event")
	}
	return nil
}

func optional(v httputil.LooseString, max int) *string {
	s, ok := v.Truncate(max)
	if !ok {
		return nil
	}
	return &s
}

// parseBool keeps true/false and maps anything else to nil
func parseBool(raw json.RawMessage) *bool {
	var b bool
	switch string(bytes.TrimSpace(raw)) {
	case "true":
		b = true
	case "false":
		b = false
	default:
		return nil
	}
	return &b
}
