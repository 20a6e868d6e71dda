package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
)

// UnsignedLong is a 64-bit identifier with unsigned semantics. It is stored in
// signed BIGINT columns by bit pattern, so values above math.MaxInt64 survive a
// round trip through the database as negative integers.
type UnsignedLong uint64

// ParseUnsignedLong parses a base-10 unsigned 64-bit value
func ParseUnsignedLong(s string) (UnsignedLong, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid unsigned long %q: %w", s, err)
	}
	return UnsignedLong(v), nil
}

// String returns the decimal representation
func (u UnsignedLong) String() string {
	return strconv.FormatUint(uint64(u), 10)
}

// Value implements driver.Valuer
func (u UnsignedLong) Value() (driver.Value, error) {
	return int64(u), nil
}

// Scan implements sql.Scanner
func (u *UnsignedLong) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*u = 0
	case int64:
		*u = UnsignedLong(uint64(v))
	case []byte:
		return u.scanString(string(v))
	case string:
		return u.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into UnsignedLong", src)
	}
	return nil
}

func (u *UnsignedLong) scanString(s string) error {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		*u = UnsignedLong(uint64(i))
		return nil
	}
	parsed, err := ParseUnsignedLong(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// MarshalJSON encodes the value as a decimal string
func (u UnsignedLong) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON accepts either a decimal string or a bare JSON number
func (u *UnsignedLong) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		s = string(data)
	}
	parsed, err := ParseUnsignedLong(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// UnsignedLongPtr returns a pointer to the given value
func UnsignedLongPtr(v uint64) *UnsignedLong {
	u := UnsignedLong(v)
	return &u
}
