package series

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"fgi-strategy-lab/internal/domain"
)

// Load errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported series format")
	ErrBadHeader         = errors.New("csv header must be timestamp,price,sentiment")
)

// Load reads a series from disk. The format is chosen by extension: .csv
// expects a timestamp,price,sentiment header, .json expects an array of
// sample objects. The loaded series is validated before returning.
func Load(path string) (domain.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open series: %w", err)
	}
	defer f.Close()

	var s domain.Series
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		s, err = readCSV(f)
	case ".json":
		s, err = readJSON(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func readCSV(r io.Reader) (domain.Series, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) != 3 ||
		!strings.EqualFold(strings.TrimSpace(header[0]), "timestamp") ||
		!strings.EqualFold(strings.TrimSpace(header[1]), "price") ||
		!strings.EqualFold(strings.TrimSpace(header[2]), "sentiment") {
		return nil, fmt.Errorf("%w: got %v", ErrBadHeader, header)
	}

	var s domain.Series
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		ts, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: bad timestamp %q: %w", line, rec[0], err)
		}
		price, err := decimal.NewFromString(rec[1])
		if err != nil {
			return nil, fmt.Errorf("csv line %d: bad price %q: %w", line, rec[1], err)
		}
		sentiment, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: bad sentiment %q: %w", line, rec[2], err)
		}

		s = append(s, domain.Sample{Timestamp: ts, Price: price, Sentiment: sentiment})
	}
	return s, nil
}

func readJSON(r io.Reader) (domain.Series, error) {
	var s domain.Series
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode json series: %w", err)
	}
	return s, nil
}
