package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// nullText creates a pgtype.Text with empty string handling
func nullText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// textValue unwraps a nullable text column to an empty string
func textValue(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

// nullUUID converts an optional uuid to its pgtype representation
func nullUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

// uuidValue unwraps a nullable uuid column
func uuidValue(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}

// nullTime converts an optional timestamp to its pgtype representation
func nullTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

// timeValue unwraps a nullable timestamp column
func timeValue(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	ts := t.Time
	return &ts
}

// decimalToNumeric converts decimal.Decimal to pgtype.Numeric
func decimalToNumeric(d decimal.Decimal) (pgtype.Numeric, error) {
	n := pgtype.Numeric{}
	if err := n.Scan(d.String()); err != nil {
		return n, fmt.Errorf("convert decimal: %w", err)
	}
	return n, nil
}

// numericToDecimal converts pgtype.Numeric to decimal.Decimal
func numericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	var dec decimal.Decimal
	str, err := n.MarshalJSON()
	if err != nil {
		return dec, fmt.Errorf("marshal numeric: %w", err)
	}
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}
	return decimal.NewFromString(string(str))
}
