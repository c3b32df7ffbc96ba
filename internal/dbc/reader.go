// Package dbc decodes the compressed tabular container used by the DATASUS
// dissemination archive. A file carries a DBF-style header describing the
// fixed-width column layout, followed by a DEFLATE-compressed payload with
// the encoded rows.
package dbc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/flate"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/saudedigital/siasus-pa/internal/models"
)

const (
	versionByte      = 0x03
	headerPrefixSize = 32
	descriptorSize   = 32
	headerTerminator = 0x0D
	eofMarker        = 0x1A

	deletedFlag = '*'
	activeFlag  = ' '
)

// Decode reads and decodes one local .dbc file into a table of rows.
func Decode(path string) (*models.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewAppError(models.ErrCorruptArchive, fmt.Errorf("failed to read %s: %w", path, err))
	}
	return DecodeBytes(data)
}

// DecodeBytes decodes an in-memory .dbc image. Rows whose encoded length
// falls short of the declared record size are dropped and counted; a
// malformed header or an undecompressable payload fails the whole file.
func DecodeBytes(data []byte) (*models.Table, error) {
	fields, headerSize, recordSize, err := parseHeader(data)
	if err != nil {
		return nil, models.NewAppError(models.ErrCorruptArchive, err)
	}

	payload, err := inflate(data[headerSize:])
	if err != nil {
		return nil, models.NewAppError(models.ErrCorruptArchive, fmt.Errorf("failed to decompress record payload: %w", err))
	}

	table := &models.Table{Fields: fields}
	decoder := charmap.ISO8859_1.NewDecoder()

	for offset := 0; offset < len(payload); offset += recordSize {
		end := offset + recordSize
		if end > len(payload) {
			remainder := payload[offset:]
			if len(remainder) == 1 && remainder[0] == eofMarker {
				break
			}
			table.DroppedRows++
			break
		}

		record := payload[offset:end]
		if record[0] == deletedFlag {
			continue
		}

		row, err := decodeRecord(record[1:], fields, decoder)
		if err != nil {
			table.DroppedRows++
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// parseHeader validates the container header and returns the column layout,
// the offset where the compressed payload starts and the encoded row size.
func parseHeader(data []byte) ([]models.Field, int, int, error) {
	if len(data) < headerPrefixSize {
		return nil, 0, 0, fmt.Errorf("file too short for header: %d bytes", len(data))
	}
	if data[0] != versionByte {
		return nil, 0, 0, fmt.Errorf("unexpected version byte 0x%02X", data[0])
	}

	headerSize := int(binary.LittleEndian.Uint16(data[8:10]))
	recordSize := int(binary.LittleEndian.Uint16(data[10:12]))
	if headerSize < headerPrefixSize+descriptorSize+1 || headerSize > len(data) {
		return nil, 0, 0, fmt.Errorf("header size %d out of bounds", headerSize)
	}

	decoder := charmap.ISO8859_1.NewDecoder()
	var fields []models.Field
	widthSum := 0

	offset := headerPrefixSize
	for {
		if offset >= headerSize {
			return nil, 0, 0, fmt.Errorf("field descriptor area missing terminator")
		}
		if data[offset] == headerTerminator {
			break
		}
		if offset+descriptorSize > headerSize {
			return nil, 0, 0, fmt.Errorf("truncated field descriptor at offset %d", offset)
		}

		field, err := parseDescriptor(data[offset:offset+descriptorSize], decoder)
		if err != nil {
			return nil, 0, 0, err
		}
		fields = append(fields, field)
		widthSum += field.Width
		offset += descriptorSize
	}

	if len(fields) == 0 {
		return nil, 0, 0, fmt.Errorf("layout descriptor declares no fields")
	}
	// Each encoded record is one deletion-flag byte plus its fields.
	if widthSum+1 != recordSize {
		return nil, 0, 0, fmt.Errorf("declared record size %d does not match field widths %d", recordSize, widthSum+1)
	}

	return fields, headerSize, recordSize, nil
}

func parseDescriptor(raw []byte, decoder *encoding.Decoder) (models.Field, error) {
	nameBytes := bytes.TrimRight(raw[0:11], "\x00 ")
	decodedName, err := decoder.Bytes(nameBytes)
	if err != nil || len(decodedName) == 0 {
		return models.Field{}, fmt.Errorf("unreadable field name in descriptor")
	}

	fieldType := raw[11]
	switch fieldType {
	case 'C', 'N', 'D', 'L', 'F':
	default:
		return models.Field{}, fmt.Errorf("unknown type tag %q for field %s", fieldType, decodedName)
	}

	width := int(raw[16])
	if width == 0 {
		return models.Field{}, fmt.Errorf("zero width for field %s", decodedName)
	}

	return models.Field{
		Name:     string(decodedName),
		Type:     fieldType,
		Width:    width,
		Decimals: int(raw[17]),
	}, nil
}

func inflate(compressed []byte) ([]byte, error) {
	reader := flate.NewReader(bytes.NewReader(compressed))
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	return payload, nil
}
