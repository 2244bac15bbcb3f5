// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package outbox

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// DefaultSeparator joins punch lines inside a batch.
const DefaultSeparator = "#"

// ErrEmptyBatch is returned when there is nothing to encode.
var ErrEmptyBatch = errors.New("punch batch is empty")

// Batch is a set of pending entries ready for upload.
type Batch struct {
	IDs     []string
	Payload string
}

// BuildBatch encodes the lines of entries for officeID.
func BuildBatch(officeID int, entries []*Entry, separator string) (*Batch, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyBatch
	}

	ids := make([]string, 0, len(entries))
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
		lines = append(lines, e.Line)
	}

	payload, err := EncodeBatch(officeID, lines, separator)
	if err != nil {
		return nil, err
	}
	return &Batch{IDs: ids, Payload: payload}, nil
}

// EncodeBatch returns "{officeID}.{base64(gzip(lines joined by separator))}".
func EncodeBatch(officeID int, lines []string, separator string) (string, error) {
	if len(lines) == 0 {
		return "", ErrEmptyBatch
	}
	if separator == "" {
		separator = DefaultSeparator
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", fmt.Errorf("create gzip writer: %w", err)
	}
	if _, err := io.WriteString(zw, strings.Join(lines, separator)); err != nil {
		return "", fmt.Errorf("compress batch: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("flush gzip writer: %w", err)
	}

	return strconv.Itoa(officeID) + "." + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeBatch is the inverse of EncodeBatch.
func DecodeBatch(payload, separator string) (officeID int, lines []string, err error) {
	if separator == "" {
		separator = DefaultSeparator
	}

	office, encoded, ok := strings.Cut(payload, ".")
	if !ok {
		return 0, nil, errors.New("batch payload has no office prefix")
	}
	officeID, err = strconv.Atoi(office)
	if err != nil {
		return 0, nil, fmt.Errorf("parse office id: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return 0, nil, fmt.Errorf("decode base64: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return 0, nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer zr.Close()

	text, err := io.ReadAll(zr)
	if err != nil {
		return 0, nil, fmt.Errorf("decompress batch: %w", err)
	}
	if len(text) == 0 {
		return officeID, nil, nil
	}
	return officeID, strings.Split(string(text), separator), nil
}
