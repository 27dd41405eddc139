// Package tabular implements the delimited-text format the patient collection is
// persisted and exported in.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"medicopro/pkg/domain"
)

// ContentType is the MIME type of encoded tables.
const ContentType = "text/csv"

// TimestampLayout is the layout registered_at is written with.
const TimestampLayout = time.RFC3339Nano

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var errInvalidUTF8 = errors.New("invalid utf-8 byte sequence")

// Table is a decoded, migrated collection.
type Table struct {
	// Version is the schema revision detected from the header.
	Version int
	// Missing lists canonical columns that were synthesized from defaults.
	Missing []string
	Records []domain.PatientRecord
}

// Encode writes the header and one row per record in canonical column order.
func Encode(w io.Writer, records []domain.PatientRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(domain.ColumnNames()); err != nil {
		return err
	}
	for _, r := range records {
		if err := writer.Write(encodeRecord(r)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Marshal encodes records into a byte slice.
func Marshal(records []domain.PatientRecord) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := Encode(buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeRecord(r domain.PatientRecord) []string {
	sex := r.Sex
	if sex == "" {
		sex = domain.SexUnspecified
	}
	return []string{
		r.FirstName,
		r.LastName,
		r.IDNumber,
		strconv.Itoa(r.Age),
		string(sex),
		r.FamilyGroup,
		r.Street,
		r.HouseNumber,
		r.Pathology,
		r.Medications,
		FormatTimestamp(r.RegisteredAt),
	}
}

// Decode reads a stored table. It tries UTF-8 first and falls back to Latin-1.
// When neither decoding yields a well-formed table a *domain.DecodeError is
// returned. Value parse failures return a *domain.ParseError. Naive timestamps
// are interpreted in loc (time.Local when nil).
func Decode(source string, data []byte, loc *time.Location) (Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return Table{Version: domain.CurrentSchemaVersion}, nil
	}
	rows, err := readRows(data)
	if err != nil {
		attempts := []error{fmt.Errorf("utf-8: %w", err)}
		latin, convErr := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if convErr != nil {
			attempts = append(attempts, fmt.Errorf("latin-1: %w", convErr))
			return Table{}, &domain.DecodeError{Source: source, Attempts: attempts}
		}
		rows, err = readRows(latin)
		if err != nil {
			attempts = append(attempts, fmt.Errorf("latin-1: %w", err))
			return Table{}, &domain.DecodeError{Source: source, Attempts: attempts}
		}
	}
	return Migrate(rows, loc)
}

// DecodeRecords applies the collection load contract on top of Decode.
func DecodeRecords(source string, data []byte, loc *time.Location) ([]domain.PatientRecord, error) {
	return Records(Decode(source, data, loc))
}

// Records turns a Decode result into the collection a backend returns: an
// undecodable payload yields an empty, non-nil collection together with the
// *domain.DecodeError, and a parse failure yields no collection at all.
func Records(table Table, err error) ([]domain.PatientRecord, error) {
	if err != nil {
		if domain.IsDegraded(err) {
			return []domain.PatientRecord{}, err
		}
		return nil, err
	}
	if table.Records == nil {
		return []domain.PatientRecord{}, nil
	}
	return table.Records, nil
}

func readRows(data []byte) ([][]string, error) {
	if !utf8.Valid(data) {
		return nil, errInvalidUTF8
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.ReuseRecord = false
	return reader.ReadAll()
}
