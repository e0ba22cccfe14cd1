package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"

	"github.com/iBurnApp/iBurn-iOS/internal/model"
)

// timeLayouts are tried in order for feed timestamps.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Stats counts what a parse call kept and discarded.
type Stats struct {
	Total              int
	Skipped            int
	Merged             int
	DroppedOccurrences int
}

// Parser provides pure []byte -> model struct conversion.
// It has zero external dependencies beyond a logger and a validator.
type Parser struct {
	logger   *slog.Logger
	validate *validator.Validate

	year int
	loc  *time.Location
}

// NewParser creates a parser. year fills records that carry none; loc is
// used for timestamps without an offset.
func NewParser(logger *slog.Logger, year int, loc *time.Location) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{
		logger:   logger,
		validate: validator.New(),
		year:     year,
		loc:      loc,
	}
}

// splitRecords decodes the top-level array without decoding its elements.
func splitRecords(data []byte) ([]json.RawMessage, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error unmarshalling record list: %w", err)
	}
	return raw, nil
}

// record is implemented by the feed record types.
type record interface {
	normalize()
}

// decodeRecord unmarshals, trims and validates one record.
func (p *Parser) decodeRecord(raw json.RawMessage, dst record) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("error unmarshalling record: %w", err)
	}
	dst.normalize()
	if err := p.validate.Struct(dst); err != nil {
		return errors.New(describeValidation(err))
	}
	return nil
}

func (p *Parser) skip(kind string, index int, err error) {
	p.logger.Debug("Skipping invalid record", "kind", kind, "index", index, "error", err)
}

func (p *Parser) yearOr(year int) int {
	if year == 0 {
		return p.year
	}
	return year
}

// parseTime accepts ISO8601 with or without offset.
func (p *Parser) parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// describeValidation turns validator errors into "field: tag" pairs.
func describeValidation(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}
	parts := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", field, e.Param()))
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func encodeImages(images []model.Image) datatypes.JSON {
	kept := images[:0:0]
	for _, img := range images {
		if img.ThumbnailURL != "" || img.GalleryRef != "" {
			kept = append(kept, img)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	data, err := json.Marshal(kept)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}

func dataObject(uid, title string, year int, description, url, email, hometown, locationString string) model.DataObject {
	return model.DataObject{
		UID:            strings.TrimSpace(uid),
		Year:           year,
		Title:          strings.TrimSpace(title),
		Description:    strings.TrimSpace(description),
		URL:            strings.TrimSpace(url),
		ContactEmail:   strings.TrimSpace(email),
		Hometown:       strings.TrimSpace(hometown),
		LocationString: strings.TrimSpace(locationString),
	}
}
