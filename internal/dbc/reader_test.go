package dbc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/encoding/charmap"

	"github.com/saudedigital/siasus-pa/internal/models"
)

type testField struct {
	name     string
	typ      byte
	width    int
	decimals int
}

func buildHeader(fields []testField, recordCount int) []byte {
	recordSize := 1
	for _, f := range fields {
		recordSize += f.width
	}
	headerSize := headerPrefixSize + descriptorSize*len(fields) + 1

	header := make([]byte, headerSize)
	header[0] = versionByte
	binary.LittleEndian.PutUint32(header[4:8], uint32(recordCount))
	binary.LittleEndian.PutUint16(header[8:10], uint16(headerSize))
	binary.LittleEndian.PutUint16(header[10:12], uint16(recordSize))

	offset := headerPrefixSize
	for _, f := range fields {
		copy(header[offset:offset+11], f.name)
		header[offset+11] = f.typ
		header[offset+16] = byte(f.width)
		header[offset+17] = byte(f.decimals)
		offset += descriptorSize
	}
	header[offset] = headerTerminator
	return header
}

// encodeRow lays one record out at fixed widths: text left-aligned, numerics
// right-aligned, all converted to ISO-8859-1.
func encodeRow(fields []testField, values []string, deleted bool) []byte {
	encoder := charmap.ISO8859_1.NewEncoder()

	var record bytes.Buffer
	if deleted {
		record.WriteByte(deletedFlag)
	} else {
		record.WriteByte(activeFlag)
	}

	for i, f := range fields {
		encoded, err := encoder.Bytes([]byte(values[i]))
		if err != nil {
			encoded = []byte(values[i])
		}
		padded := make([]byte, f.width)
		for j := range padded {
			padded[j] = ' '
		}
		if f.typ == 'N' || f.typ == 'F' {
			copy(padded[f.width-len(encoded):], encoded)
		} else {
			copy(padded, encoded)
		}
		record.Write(padded)
	}
	return record.Bytes()
}

func buildDBC(t *testing.T, fields []testField, payload []byte, recordCount int) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(buildHeader(fields, recordCount))

	writer, err := flate.NewWriter(&buf, flate.DefaultCompression)
	assert.NoError(t, err)
	_, err = writer.Write(payload)
	assert.NoError(t, err)
	assert.NoError(t, writer.Close())

	return buf.Bytes()
}

var paFields = []testField{
	{name: "PA_PROC_ID", typ: 'C', width: 10},
	{name: "PA_CMP", typ: 'D', width: 6},
	{name: "PA_QTDAPR", typ: 'N', width: 8},
	{name: "PA_VALAPR", typ: 'N', width: 10, decimals: 2},
}

func TestDecodeBytes(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		var payload bytes.Buffer
		payload.Write(encodeRow(paFields, []string{"0301060029", "202301", "3", "12.50"}, false))
		payload.Write(encodeRow(paFields, []string{"0301070050", "202301", "12", "199.90"}, false))

		table, err := DecodeBytes(buildDBC(t, paFields, payload.Bytes(), 2))

		assert.NoError(t, err)
		assert.Equal(t, []string{"PA_PROC_ID", "PA_CMP", "PA_QTDAPR", "PA_VALAPR"}, table.FieldNames())
		assert.Equal(t, [][]string{
			{"0301060029", "202301", "3", "12.50"},
			{"0301070050", "202301", "12", "199.90"},
		}, table.Rows)
		assert.Zero(t, table.DroppedRows)
	})

	t.Run("NumericDecimalShift", func(t *testing.T) {
		fields := []testField{{name: "VALOR", typ: 'N', width: 8, decimals: 2}}
		payload := encodeRow(fields, []string{"12345"}, false)

		table, err := DecodeBytes(buildDBC(t, fields, payload, 1))

		assert.NoError(t, err)
		// No decimal point stored: 12345 with two declared decimals is 123.45.
		assert.Equal(t, "123.45", table.Rows[0][0])
	})

	t.Run("TextEncodingConverted", func(t *testing.T) {
		fields := []testField{{name: "MUNICIPIO", typ: 'C', width: 20}}
		payload := encodeRow(fields, []string{"SÃO JOSÉ"}, false)

		table, err := DecodeBytes(buildDBC(t, fields, payload, 1))

		assert.NoError(t, err)
		assert.Equal(t, "SÃO JOSÉ", table.Rows[0][0])
	})

	t.Run("BlankNumericBecomesEmpty", func(t *testing.T) {
		fields := []testField{{name: "IDADE", typ: 'N', width: 4}}
		payload := encodeRow(fields, []string{""}, false)

		table, err := DecodeBytes(buildDBC(t, fields, payload, 1))

		assert.NoError(t, err)
		assert.Equal(t, "", table.Rows[0][0])
	})

	t.Run("DeletedRowSkipped", func(t *testing.T) {
		var payload bytes.Buffer
		payload.Write(encodeRow(paFields, []string{"0301060029", "202301", "3", "12.50"}, false))
		payload.Write(encodeRow(paFields, []string{"0301060030", "202301", "1", "5.00"}, true))

		table, err := DecodeBytes(buildDBC(t, paFields, payload.Bytes(), 2))

		assert.NoError(t, err)
		assert.Len(t, table.Rows, 1)
		assert.Zero(t, table.DroppedRows)
	})

	t.Run("TruncatedTrailingRowDropped", func(t *testing.T) {
		var payload bytes.Buffer
		payload.Write(encodeRow(paFields, []string{"0301060029", "202301", "3", "12.50"}, false))
		full := encodeRow(paFields, []string{"0301060030", "202301", "1", "5.00"}, false)
		payload.Write(full[:len(full)-paFields[3].width]) // short by one field width

		table, err := DecodeBytes(buildDBC(t, paFields, payload.Bytes(), 2))

		assert.NoError(t, err)
		assert.Len(t, table.Rows, 1)
		assert.Equal(t, 1, table.DroppedRows)
	})

	t.Run("EOFMarkerIsNotARow", func(t *testing.T) {
		var payload bytes.Buffer
		payload.Write(encodeRow(paFields, []string{"0301060029", "202301", "3", "12.50"}, false))
		payload.WriteByte(eofMarker)

		table, err := DecodeBytes(buildDBC(t, paFields, payload.Bytes(), 1))

		assert.NoError(t, err)
		assert.Len(t, table.Rows, 1)
		assert.Zero(t, table.DroppedRows)
	})

	t.Run("BadVersionByte", func(t *testing.T) {
		data := buildDBC(t, paFields, nil, 0)
		data[0] = 0x7F

		_, err := DecodeBytes(data)

		assertCorrupt(t, err)
	})

	t.Run("RecordSizeMismatch", func(t *testing.T) {
		data := buildDBC(t, paFields, nil, 0)
		binary.LittleEndian.PutUint16(data[10:12], 999)

		_, err := DecodeBytes(data)

		assertCorrupt(t, err)
	})

	t.Run("UndecompressablePayload", func(t *testing.T) {
		data := buildHeader(paFields, 1)
		data = append(data, []byte("this is not a deflate stream")...)

		_, err := DecodeBytes(data)

		assertCorrupt(t, err)
	})

	t.Run("FileTooShort", func(t *testing.T) {
		_, err := DecodeBytes([]byte{versionByte, 0x01})

		assertCorrupt(t, err)
	})
}

func TestDecode(t *testing.T) {
	t.Run("ReadsFromDisk", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "PAAC2301.dbc")
		payload := encodeRow(paFields, []string{"0301060029", "202301", "3", "12.50"}, false)
		assert.NoError(t, os.WriteFile(path, buildDBC(t, paFields, payload, 1), 0o644))

		table, err := Decode(path)

		assert.NoError(t, err)
		assert.Len(t, table.Rows, 1)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Decode(filepath.Join(t.TempDir(), "absent.dbc"))

		assertCorrupt(t, err)
	})
}

func assertCorrupt(t *testing.T, err error) {
	t.Helper()
	assert.Error(t, err)
	var appErr *models.AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.ErrCorruptArchive, appErr.Kind)
}
