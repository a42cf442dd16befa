package invoice

import (
	"encoding/csv"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"invoicepost/internal/models"
)

// The billing source prefixes every detail response with three lines of
// header/metadata before the first tabular block.
const preambleLines = 3

// Markers used to locate the embedded training sub-section inside a mixed
// detail response.
const (
	autonomousMarker = "Autonomous"
	trainingMarker   = "Training"
)

// Row is one record of a detail table, keyed by column name.
type Row map[string]string

// ParseDetails splits raw invoice detail text into row records. The three-line
// preamble is discarded unconditionally. When the text carries both an
// autonomous/assisted table and a training table (the "Autonomous" marker may
// sit in the preamble), the body is split at the first "Training" marker; the
// training block starts with a section title line so its real header is the
// second line.
func ParseDetails(details string) ([]Row, error) {
	parts := strings.SplitN(details, "\n", preambleLines+1)
	if len(parts) < preambleLines+1 {
		return nil, fmt.Errorf("%w: detail text shorter than the %d-line preamble", ErrParse, preambleLines)
	}
	body := parts[preambleLines]

	if strings.Contains(details, autonomousMarker) && strings.Contains(body, trainingMarker) {
		cut := strings.Index(body, trainingMarker)
		usage, err := parseBlock(body[:cut], 0)
		if err != nil {
			return nil, err
		}
		training, err := parseBlock(body[cut:], 1)
		if err != nil {
			return nil, err
		}
		return append(usage, training...), nil
	}

	return parseBlock(body, 0)
}

// parseBlock decodes one tabular block. titleLines counts section-title lines
// to drop before the header row.
func parseBlock(text string, titleLines int) ([]Row, error) {
	for i := 0; i < titleLines; i++ {
		idx := strings.Index(text, "\n")
		if idx < 0 {
			return nil, fmt.Errorf("%w: block ends inside its section title", ErrParse)
		}
		text = text[idx+1:]
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty tabular block", ErrParse)
	}

	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[strings.TrimSpace(name)] = i
	}
	if _, ok := index[models.FieldSessionType]; !ok {
		return nil, fmt.Errorf("%w: block has no %q column", ErrParse, models.FieldSessionType)
	}
	if _, ok := index[models.FieldFinalAmount]; !ok {
		return nil, fmt.Errorf("%w: block has no %q column", ErrParse, models.FieldFinalAmount)
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(index))
		for name, i := range index {
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SessionsFromRows maps parsed rows to typed sessions. Rows with an
// unrecognised session type are dropped silently (the source occasionally
// emits labels we do not bill, e.g. maintenance); rows failing validation are
// dropped with a warning. Neither aborts the group.
func SessionsFromRows(rows []Row, logger *zap.Logger) []models.Session {
	sessions := make([]models.Session, 0, len(rows))
	for _, row := range rows {
		category, ok := models.CategoryForLabel(row[models.FieldSessionType])
		if !ok {
			logger.Debug("dropping unrecognised session type",
				zap.String("session_type", row[models.FieldSessionType]),
			)
			continue
		}

		var (
			session models.Session
			err     error
		)
		if category == models.CategoryTraining {
			session, err = models.NewTrainingSession(row)
		} else {
			session, err = models.NewUsageSession(row)
		}
		if err != nil {
			logger.Warn("dropping malformed session row", zap.Error(err))
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions
}

// GroupCode returns the directory code of the group that owns the parsed
// rows. It comes from the detail rows rather than the roster because split
// and compound codes do not map to a directory entry.
func GroupCode(rows []Row) (string, error) {
	for _, row := range rows {
		if code := row[models.FieldGroup]; code != "" {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: no %q column value in any detail row", ErrParse, models.FieldGroup)
}
