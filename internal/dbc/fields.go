package dbc

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"

	"github.com/saudedigital/siasus-pa/internal/models"
)

// decodeRecord slices one decompressed record (deletion flag already
// stripped) into field values per the layout descriptor.
func decodeRecord(raw []byte, fields []models.Field, decoder *encoding.Decoder) ([]string, error) {
	row := make([]string, len(fields))
	offset := 0
	for i, field := range fields {
		if offset+field.Width > len(raw) {
			return nil, fmt.Errorf("record shorter than declared field widths")
		}
		value, err := coerceValue(field, raw[offset:offset+field.Width], decoder)
		if err != nil {
			return nil, err
		}
		row[i] = value
		offset += field.Width
	}
	return row, nil
}

// coerceValue converts the raw fixed-width bytes of one field to its UTF-8
// text representation. Character data is converted from ISO-8859-1 and
// stripped of padding; numeric data is descaled per the declared decimal
// count; dates stay as their raw YYYYMMDD text.
func coerceValue(field models.Field, raw []byte, decoder *encoding.Decoder) (string, error) {
	switch field.Type {
	case 'C':
		decoded, err := decoder.Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("failed to decode text field %s: %w", field.Name, err)
		}
		return strings.TrimSpace(string(decoded)), nil
	case 'N', 'F':
		return coerceNumeric(field, raw)
	case 'D', 'L':
		return strings.TrimSpace(string(raw)), nil
	default:
		return strings.TrimSpace(string(raw)), nil
	}
}

func coerceNumeric(field models.Field, raw []byte) (string, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", nil
	}

	if strings.Contains(text, ".") {
		value, err := strconv.ParseFloat(text, 64)
		if err != nil {
			// Unparseable numerics degrade to empty, mirroring how the
			// dissemination files mark absent values with blanks.
			return "", nil
		}
		if field.Decimals > 0 {
			return strconv.FormatFloat(value, 'f', field.Decimals, 64), nil
		}
		return strconv.FormatFloat(value, 'f', -1, 64), nil
	}

	value, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return "", nil
	}
	if field.Decimals > 0 {
		// No decimal point in the stored text: the declared decimal count
		// shifts the integer right by that many places.
		return strconv.FormatFloat(float64(value)/math.Pow10(field.Decimals), 'f', field.Decimals, 64), nil
	}
	return strconv.FormatInt(value, 10), nil
}
