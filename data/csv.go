package data

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/Baxlan/burnet/ml"
)

// LoadCSV reads a labeled dataset from a CSV file. The header row names the
// columns; the first nbInputs columns are features and the remaining ones
// are outputs. The output column names are returned as labels.
func LoadCSV(path string, nbInputs int) (ml.Dataset, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot open dataset")
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot parse dataset")
	}
	if len(records) < 2 {
		return nil, nil, errors.New("dataset needs a header row and at least one sample")
	}

	header := records[0]
	if nbInputs < 1 || nbInputs >= len(header) {
		return nil, nil, errors.Errorf("nbInputs must be within [1, %d), got %d", len(header), nbInputs)
	}
	labels := append([]string(nil), header[nbInputs:]...)

	dataset := make(ml.Dataset, 0, len(records)-1)
	for line, record := range records[1:] {
		if len(record) != len(header) {
			return nil, nil, errors.Errorf("line %d has %d fields, expected %d", line+2, len(record), len(header))
		}
		sample := ml.Sample{
			Inputs:  make([]float64, nbInputs),
			Outputs: make([]float64, len(header)-nbInputs),
		}
		for i, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "line %d column %q", line+2, header[i])
			}
			if i < nbInputs {
				sample.Inputs[i] = v
			} else {
				sample.Outputs[i-nbInputs] = v
			}
		}
		dataset = append(dataset, sample)
	}
	return dataset, labels, nil
}
