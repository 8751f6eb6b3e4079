package recipient

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
)

// ErrNoRecipients is returned when the source file exists but yields
// no usable records. An empty source is a configuration mistake, not a
// successful run over zero recipients.
var ErrNoRecipients = errors.New("no valid recipients in source file")

var validate = validator.New()

// Loader reads recipient rows using a configured column layout.
type Loader struct {
	columns []string
	logger  *slog.Logger
}

// NewLoader creates a loader. The columns slice maps file position to
// field name and must already be validated as a permutation of the
// known fields.
func NewLoader(columns []string, logger *slog.Logger) *Loader {
	return &Loader{
		columns: append([]string(nil), columns...),
		logger:  logger,
	}
}

// Load parses the file at path into recipients. A malformed row (wrong
// field count, invalid address) is skipped with a warning and does not
// fail the load. A missing or empty file is a fatal error.
func (l *Loader) Load(path string) ([]Recipient, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open recipient file: %w", err)
	}
	defer f.Close()

	return l.load(f)
}

func (l *Loader) load(r io.Reader) ([]Recipient, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		recipients    []Recipient
		skipped       int
		layoutChecked bool
		line          int
	)

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			skipped++
			l.logger.Warn("skipping unparsable row", "line", line, "error", err)
			continue
		}

		if len(row) != len(l.columns) {
			skipped++
			l.logger.Warn("skipping row with wrong field count",
				"line", line,
				"fields", len(row),
				"want", len(l.columns),
			)
			continue
		}

		rec := l.assemble(row)

		if !layoutChecked {
			conclusive, err := l.checkLayout(row, rec)
			if err != nil {
				return nil, 0, err
			}
			layoutChecked = conclusive
		}

		if err := validate.Var(rec.Email, "required,email"); err != nil {
			skipped++
			l.logger.Warn("skipping row with invalid email", "line", line)
			continue
		}

		recipients = append(recipients, rec)
	}

	if len(recipients) == 0 {
		return nil, skipped, ErrNoRecipients
	}

	return recipients, skipped, nil
}

// assemble maps a positional row onto a Recipient using the layout.
func (l *Loader) assemble(row []string) Recipient {
	var rec Recipient
	for i, col := range l.columns {
		switch col {
		case "email":
			rec.Email = row[i]
		case "first_name":
			rec.FirstName = row[i]
		case "company":
			rec.Company = row[i]
		}
	}
	return rec
}

// checkLayout sanity-checks the configured column order against the
// first complete row. Collaborator exports disagree on field order, so
// a layout mismatch should fail the whole load with a pointed message
// instead of silently skipping every row.
func (l *Loader) checkLayout(row []string, rec Recipient) (bool, error) {
	if validate.Var(rec.Email, "required,email") == nil {
		return true, nil
	}

	for i, val := range row {
		if l.columns[i] == "email" {
			continue
		}
		if validate.Var(val, "required,email") == nil {
			return false, fmt.Errorf(
				"first row has an email address in the %q column but not in the %q column; recipients.columns likely lists fields in the wrong order",
				l.columns[i], "email")
		}
	}

	// First row is just a bad record; let a later row decide.
	return false, nil
}
