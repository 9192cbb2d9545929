package service

import (
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/keeper-crm/keeper-back/internal/db"
)

var ErrMissingColumns = errors.New("header is missing required columns")

var importColumns = []string{
	"first_name", "last_name", "email", "phone", "company",
	"position", "location", "url", "connected_on", "notes",
}

// ImportHeader is the canonical header row, served as the import template.
func ImportHeader() []string {
	out := make([]string, len(importColumns))
	copy(out, importColumns)
	return out
}

var requiredColumns = []string{
	"first_name", "last_name", "company", "position", "location",
}

type (
	ImportSummary struct {
		Imported int `json:"imported"`
		Skipped  int `json:"skipped"`
		Failed   int `json:"failed"`
	}

	Importer struct {
		db        *gorm.DB
		logger    *zap.SugaredLogger
		batchSize int
	}
)

func NewImporter(g *gorm.DB, l *zap.SugaredLogger, batchSize int) *Importer {
	return &Importer{
		db:        g,
		logger:    l,
		batchSize: batchSize,
	}
}

// Import reads a delimited file with a header row. Rows missing a required
// field are skipped, never fatal. Inserts go out in fixed-size batches with
// independent success/failure per batch.
func (s *Importer) Import(user *db.User, r io.Reader) (*ImportSummary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	summary := ImportSummary{}
	batch := make([]db.Contact, 0, s.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		res := s.db.Create(&batch)
		if res.Error != nil {
			summary.Failed += len(batch)
			s.logger.Warnw("import batch failed", "size", len(batch), "error", res.Error)
		} else {
			summary.Imported += len(batch)
		}
		batch = make([]db.Contact, 0, s.batchSize)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			summary.Skipped++
			s.logger.Warnw("skip malformed row", "error", err)
			continue
		}

		contact, ok := rowToContact(record, cols, user.ID, now)
		if !ok {
			summary.Skipped++
			continue
		}

		batch = append(batch, contact)
		if len(batch) >= s.batchSize {
			flush()
		}
	}
	flush()

	return &summary, nil
}

func mapHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range requiredColumns {
		if _, ok := cols[required]; !ok {
			return nil, errors.Wrap(ErrMissingColumns, required)
		}
	}
	return cols, nil
}

func rowToContact(record []string, cols map[string]int, userID uint64, now time.Time) (db.Contact, bool) {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	for _, required := range requiredColumns {
		if field(required) == "" {
			return db.Contact{}, false
		}
	}

	// connected_on parses as YYYY-MM-DD or defaults to the import date.
	connectedOn := now
	if raw := field("connected_on"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			connectedOn = parsed
		}
	}

	return db.Contact{
		FirstName:   field("first_name"),
		LastName:    field("last_name"),
		Email:       optional(field("email")),
		Phone:       optional(field("phone")),
		Company:     field("company"),
		Position:    field("position"),
		Location:    field("location"),
		URL:         optional(field("url")),
		Notes:       optional(field("notes")),
		ConnectedOn: &connectedOn,
		UserID:      userID,
	}, true
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
